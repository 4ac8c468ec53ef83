//go:build !linux

package cache

import (
	"fmt"
	"os"
)

// sidecarSuffix names the metadata file used on platforms without
// extended-attribute support (or where the target filesystem rejects them).
const sidecarSuffix = ".directord-fingerprint"

// SetFingerprintXattr falls back to a sidecar file next to path, since
// non-Linux targets in this fleet are not guaranteed POSIX xattr support.
func SetFingerprintXattr(path, fingerprint string) error {
	if err := os.WriteFile(path+sidecarSuffix, []byte(fingerprint), 0o600); err != nil {
		return fmt.Errorf("cache: writing fingerprint sidecar for %s: %w", path, err)
	}
	return nil
}

// GetFingerprintXattr reads the sidecar file written by SetFingerprintXattr.
func GetFingerprintXattr(path string) (fingerprint string, ok bool, err error) {
	data, err := os.ReadFile(path + sidecarSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: reading fingerprint sidecar for %s: %w", path, err)
	}
	return string(data), true, nil
}
