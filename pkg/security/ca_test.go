package security

import (
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCA(t *testing.T) *CertAuthority {
	t.Helper()
	ca, err := NewCertAuthority("")
	require.NoError(t, err)
	require.NoError(t, ca.Initialize())
	return ca
}

func TestInitializeCA(t *testing.T) {
	ca := newTestCA(t)

	require.True(t, ca.IsInitialized())
	require.NotNil(t, ca.rootCert)
	require.NotNil(t, ca.rootKey)
	require.True(t, ca.rootCert.IsCA)
	require.WithinDuration(t, time.Now().Add(rootCAValidity), ca.rootCert.NotAfter, time.Hour)
}

func TestSaveLoadCAPlain(t *testing.T) {
	dir := t.TempDir()

	ca1 := newTestCA(t)
	require.NoError(t, ca1.SaveToFile(dir))

	ca2, err := NewCertAuthority("")
	require.NoError(t, err)
	require.NoError(t, ca2.LoadFromFile(dir))

	require.True(t, ca1.rootCert.Equal(ca2.rootCert))
	require.Equal(t, 0, ca1.rootKey.N.Cmp(ca2.rootKey.N))
}

func TestSaveLoadCAEncrypted(t *testing.T) {
	dir := t.TempDir()

	ca1, err := NewCertAuthority("correct horse battery staple")
	require.NoError(t, err)
	require.NoError(t, ca1.Initialize())
	require.NoError(t, ca1.SaveToFile(dir))

	ca2, err := NewCertAuthority("correct horse battery staple")
	require.NoError(t, err)
	require.NoError(t, ca2.LoadFromFile(dir))
	require.True(t, ca1.rootCert.Equal(ca2.rootCert))

	ca3, err := NewCertAuthority("wrong password")
	require.NoError(t, err)
	require.Error(t, ca3.LoadFromFile(dir))
}

func TestIssueNodeCertificate(t *testing.T) {
	ca := newTestCA(t)

	tests := []struct {
		name   string
		nodeID string
		role   string
	}{
		{"coordinator certificate", "node1", "coordinator"},
		{"worker certificate", "node2", "worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ca.IssueNodeCertificate(tt.nodeID, tt.role, []string{}, []net.IP{})
			require.NoError(t, err)
			require.NotNil(t, cert.Leaf)
			require.Equal(t, tt.role+"-"+tt.nodeID, cert.Leaf.Subject.CommonName)
			require.WithinDuration(t, time.Now().Add(nodeCertValidity), cert.Leaf.NotAfter, time.Hour)
			require.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
			require.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
		})
	}
}

func TestIssueClientCertificate(t *testing.T) {
	ca := newTestCA(t)

	clientID := "operator@workstation"
	cert, err := ca.IssueClientCertificate(clientID)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	require.Equal(t, "cli-"+clientID, cert.Leaf.Subject.CommonName)
	require.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
	require.NotContains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
}

func TestVerifyCertificate(t *testing.T) {
	ca := newTestCA(t)

	cert, err := ca.IssueNodeCertificate("test-node", "worker", []string{}, []net.IP{})
	require.NoError(t, err)
	require.NoError(t, ca.VerifyCertificate(cert.Leaf))
}

func TestGetRootCACert(t *testing.T) {
	ca := newTestCA(t)

	rootCertDER := ca.GetRootCACert()
	require.NotEmpty(t, rootCertDER)
}

func TestCertCache(t *testing.T) {
	ca := newTestCA(t)

	nodeID := "test-node"
	_, err := ca.IssueNodeCertificate(nodeID, "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	cached, exists := ca.GetCachedCert(nodeID)
	require.True(t, exists)
	require.Equal(t, "worker-"+nodeID, cached.Cert.Subject.CommonName)
}
