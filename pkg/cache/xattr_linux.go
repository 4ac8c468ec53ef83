//go:build linux

package cache

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const xattrFingerprintName = "user.directord.fingerprint"

// SetFingerprintXattr stamps path with its content fingerprint as a POSIX
// extended attribute, the fast path for CACHEFILE/transfer idempotence
// checks: a later pass can confirm the file is already correct by reading
// one xattr instead of re-hashing the whole file.
func SetFingerprintXattr(path, fingerprint string) error {
	err := unix.Setxattr(path, xattrFingerprintName, []byte(fingerprint), 0)
	if err != nil {
		return fmt.Errorf("cache: setxattr %s: %w", path, err)
	}
	return nil
}

// GetFingerprintXattr reads back a fingerprint stamped by
// SetFingerprintXattr. ok is false when the attribute is absent or the
// filesystem does not support extended attributes (ENOTSUP/EOPNOTSUPP),
// signaling the caller to fall back to re-hashing the file.
func GetFingerprintXattr(path string) (fingerprint string, ok bool, err error) {
	buf := make([]byte, 128)
	n, err := unix.Getxattr(path, xattrFingerprintName, buf)
	if err != nil {
		if err == unix.ENODATA || err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: getxattr %s: %w", path, err)
	}
	return string(buf[:n]), true, nil
}
