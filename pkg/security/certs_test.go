package security

import (
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadCertToFile(t *testing.T) {
	certDir := t.TempDir()

	ca := newTestCA(t)
	cert, err := ca.IssueNodeCertificate("test-node", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	require.NoError(t, SaveCertToFile(cert, certDir))
	require.FileExists(t, filepath.Join(certDir, "node.crt"))
	require.FileExists(t, filepath.Join(certDir, "node.key"))

	loadedCert, err := LoadCertFromFile(certDir)
	require.NoError(t, err)
	require.Equal(t, cert.Leaf.Subject.CommonName, loadedCert.Leaf.Subject.CommonName)
}

func TestSaveLoadCACertToFile(t *testing.T) {
	certDir := t.TempDir()

	ca := newTestCA(t)
	require.NoError(t, SaveCACertToFile(ca.GetRootCACert(), certDir))
	require.FileExists(t, filepath.Join(certDir, "ca.crt"))

	loadedCACert, err := LoadCACertFromFile(certDir)
	require.NoError(t, err)
	require.True(t, loadedCACert.Equal(ca.rootCert))
}

func TestCertExists(t *testing.T) {
	dir := t.TempDir()
	require.False(t, CertExists(dir))

	certPath := filepath.Join(dir, "node.crt")
	keyPath := filepath.Join(dir, "node.key")
	caPath := filepath.Join(dir, "ca.crt")

	require.NoError(t, os.WriteFile(certPath, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(keyPath, []byte("key"), 0o600))
	require.NoError(t, os.WriteFile(caPath, []byte("ca"), 0o600))
	require.True(t, CertExists(dir))

	require.NoError(t, os.Remove(keyPath))
	require.False(t, CertExists(dir))
}

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		needsRot bool
	}{
		{"expiring in 1 day", time.Now().Add(24 * time.Hour), true},
		{"expiring in 29 days", time.Now().Add(29 * 24 * time.Hour), true},
		{"expiring in 31 days", time.Now().Add(31 * 24 * time.Hour), false},
		{"expiring in 60 days", time.Now().Add(60 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: tt.notAfter}
			require.Equal(t, tt.needsRot, CertNeedsRotation(cert))
		})
	}

	require.True(t, CertNeedsRotation(nil))
}

func TestGetCertExpiry(t *testing.T) {
	expected := time.Now().Add(90 * 24 * time.Hour)
	cert := &x509.Certificate{NotAfter: expected}
	require.True(t, expected.Equal(GetCertExpiry(cert)))
	require.True(t, GetCertExpiry(nil).IsZero())
}

func TestGetCertTimeRemaining(t *testing.T) {
	expected := 45 * 24 * time.Hour
	cert := &x509.Certificate{NotAfter: time.Now().Add(expected)}
	require.InDelta(t, expected, GetCertTimeRemaining(cert), float64(time.Second))
	require.Zero(t, GetCertTimeRemaining(nil))
}

func TestValidateCertChain(t *testing.T) {
	ca := newTestCA(t)
	cert, err := ca.IssueNodeCertificate("test-node", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	require.NoError(t, ValidateCertChain(cert.Leaf, ca.rootCert))
	require.Error(t, ValidateCertChain(nil, ca.rootCert))
	require.Error(t, ValidateCertChain(cert.Leaf, nil))
}

func TestGetCertInfo(t *testing.T) {
	ca := newTestCA(t)
	cert, err := ca.IssueNodeCertificate("test-node", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	info := GetCertInfo(cert.Leaf)
	require.Equal(t, "worker-test-node", info["subject"])
	require.Equal(t, "Directord Root CA", info["issuer"])
	require.Equal(t, false, info["is_ca"])

	nilInfo := GetCertInfo(nil)
	require.Contains(t, nilInfo, "error")
}

func TestGetCertDir(t *testing.T) {
	tests := []struct {
		nodeType string
		nodeID   string
	}{
		{"coordinator", "node1"},
		{"worker", "node2"},
	}

	for _, tt := range tests {
		t.Run(tt.nodeType+"-"+tt.nodeID, func(t *testing.T) {
			certDir, err := GetCertDir(tt.nodeType, tt.nodeID)
			require.NoError(t, err)
			require.Equal(t, tt.nodeType+"-"+tt.nodeID, filepath.Base(certDir))
		})
	}
}

func TestGetCLICertDir(t *testing.T) {
	certDir, err := GetCLICertDir()
	require.NoError(t, err)
	require.Equal(t, "cli", filepath.Base(certDir))
}

func TestRemoveCerts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node.crt"), []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node.key"), []byte("key"), 0o600))

	require.NoError(t, RemoveCerts(dir))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}
