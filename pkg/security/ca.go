package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CertAuthority issues and verifies the node/client certificates the
// coordinator and worker dial and serve with when the transport's TLS layer
// is enabled (config.TLSCertFile/TLSKeyFile/TLSCAFile, under any AuthMode). When built with a passphrase, the root private key is
// encrypted at rest with SecretsManager; node and client keys issued from
// it are never persisted by the CA itself, so they stay plaintext PEM on
// whatever disk path the caller chooses to write them to.
type CertAuthority struct {
	rootCert  *x509.Certificate
	rootKey   *rsa.PrivateKey
	secrets   *SecretsManager
	certCache map[string]*CachedCert
	mu        sync.RWMutex
}

// CachedCert is an issued certificate retained in memory for reuse.
type CachedCert struct {
	Cert      *x509.Certificate
	Key       *rsa.PrivateKey
	IssuedAt  time.Time
	ExpiresAt time.Time
}

const (
	// Root CA validity: 10 years
	rootCAValidity = 10 * 365 * 24 * time.Hour
	// Node certificate validity: 90 days
	nodeCertValidity = 90 * 24 * time.Hour
	// Root CA key size: 4096 bits (long-lived, high security)
	rootKeySize = 4096
	// Node key size: 2048 bits (shorter-lived, faster)
	nodeKeySize = 2048
)

// NewCertAuthority creates an uninitialized certificate authority. Call
// Initialize to mint a new root, or LoadFromFile to resume an existing one.
// passphrase, if non-empty, encrypts the root private key at rest.
func NewCertAuthority(passphrase string) (*CertAuthority, error) {
	ca := &CertAuthority{
		certCache: make(map[string]*CachedCert),
	}
	if passphrase != "" {
		secrets, err := NewSecretsManagerFromPassword(passphrase)
		if err != nil {
			return nil, fmt.Errorf("deriving CA key encryption key: %w", err)
		}
		ca.secrets = secrets
	}
	return ca, nil
}

// Initialize generates a new root CA certificate.
func (ca *CertAuthority) Initialize() error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	rootKey, err := rsa.GenerateKey(rand.Reader, rootKeySize)
	if err != nil {
		return fmt.Errorf("failed to generate root key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Directord Fleet"},
			CommonName:   "Directord Root CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(rootCAValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            1,
		MaxPathLenZero:        false,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &rootKey.PublicKey, rootKey)
	if err != nil {
		return fmt.Errorf("failed to create root certificate: %w", err)
	}

	rootCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("failed to parse root certificate: %w", err)
	}

	ca.rootCert = rootCert
	ca.rootKey = rootKey

	return nil
}

// LoadFromFile loads the CA's root certificate and key from certDir,
// previously written by SaveToFile.
func (ca *CertAuthority) LoadFromFile(certDir string) error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	caCert, err := LoadCACertFromFile(certDir)
	if err != nil {
		return fmt.Errorf("loading CA certificate: %w", err)
	}

	keyBytes, err := os.ReadFile(filepath.Join(certDir, "ca.key"))
	if err != nil {
		return fmt.Errorf("reading CA key: %w", err)
	}
	if ca.secrets != nil {
		keyBytes, err = ca.secrets.DecryptSecret(keyBytes)
		if err != nil {
			return fmt.Errorf("decrypting CA key: %w", err)
		}
	} else {
		block, _ := pem.Decode(keyBytes)
		if block == nil {
			return fmt.Errorf("decoding CA key PEM")
		}
		keyBytes = block.Bytes
	}

	rootKey, err := x509.ParsePKCS1PrivateKey(keyBytes)
	if err != nil {
		return fmt.Errorf("parsing CA key: %w", err)
	}

	ca.rootCert = caCert
	ca.rootKey = rootKey
	return nil
}

// SaveToFile writes the CA's root certificate (plain PEM, ca.crt) and
// private key (ca.key, encrypted with SecretsManager when a passphrase was
// configured, plain PKCS1 PEM otherwise) to certDir.
func (ca *CertAuthority) SaveToFile(certDir string) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return fmt.Errorf("CA not initialized")
	}

	if err := SaveCACertToFile(ca.rootCert.Raw, certDir); err != nil {
		return err
	}

	keyDER := x509.MarshalPKCS1PrivateKey(ca.rootKey)
	var out []byte
	if ca.secrets != nil {
		encrypted, err := ca.secrets.EncryptSecret(keyDER)
		if err != nil {
			return fmt.Errorf("encrypting CA key: %w", err)
		}
		out = encrypted
	} else {
		out = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyDER})
	}

	if err := os.WriteFile(filepath.Join(certDir, "ca.key"), out, 0o600); err != nil {
		return fmt.Errorf("writing CA key: %w", err)
	}
	return nil
}

// IssueNodeCertificate issues a certificate for a coordinator or worker
// identity.
func (ca *CertAuthority) IssueNodeCertificate(nodeID, role string, dnsNames []string, ipAddresses []net.IP) (*tls.Certificate, error) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return nil, fmt.Errorf("CA not initialized")
	}

	nodeKey, err := rsa.GenerateKey(rand.Reader, nodeKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate node key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Directord Fleet"},
			CommonName:   fmt.Sprintf("%s-%s", role, nodeID),
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(nodeCertValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, &nodeKey.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create node certificate: %w", err)
	}

	nodeCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse node certificate: %w", err)
	}

	tlsCert := &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  nodeKey,
		Leaf:        nodeCert,
	}

	ca.cacheCertificate(nodeID, nodeCert, nodeKey)

	return tlsCert, nil
}

// IssueClientCertificate issues a certificate for a CLI client (exec,
// orchestrate, manage subcommands dialing a TLS-authenticated coordinator).
func (ca *CertAuthority) IssueClientCertificate(clientID string) (*tls.Certificate, error) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil || ca.rootKey == nil {
		return nil, fmt.Errorf("CA not initialized")
	}

	clientKey, err := rsa.GenerateKey(rand.Reader, nodeKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate client key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Directord Fleet"},
			CommonName:   fmt.Sprintf("cli-%s", clientID),
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(nodeCertValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.rootCert, &clientKey.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create client certificate: %w", err)
	}

	clientCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client certificate: %w", err)
	}

	tlsCert := &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  clientKey,
		Leaf:        clientCert,
	}

	ca.cacheCertificate(clientID, clientCert, clientKey)

	return tlsCert, nil
}

// VerifyCertificate verifies a certificate against the root CA.
func (ca *CertAuthority) VerifyCertificate(cert *x509.Certificate) error {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil {
		return fmt.Errorf("CA not initialized")
	}

	roots := x509.NewCertPool()
	roots.AddCert(ca.rootCert)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed: %w", err)
	}

	return nil
}

// GetRootCACert returns the root CA certificate in DER format.
func (ca *CertAuthority) GetRootCACert() []byte {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	if ca.rootCert == nil {
		return nil
	}

	return ca.rootCert.Raw
}

// IsInitialized returns true if the CA is initialized.
func (ca *CertAuthority) IsInitialized() bool {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	return ca.rootCert != nil && ca.rootKey != nil
}

func (ca *CertAuthority) cacheCertificate(id string, cert *x509.Certificate, key *rsa.PrivateKey) {
	ca.certCache[id] = &CachedCert{
		Cert:      cert,
		Key:       key,
		IssuedAt:  cert.NotBefore,
		ExpiresAt: cert.NotAfter,
	}
}

// GetCachedCert retrieves a previously issued certificate by id.
func (ca *CertAuthority) GetCachedCert(id string) (*CachedCert, bool) {
	ca.mu.RLock()
	defer ca.mu.RUnlock()

	cert, exists := ca.certCache[id]
	return cert, exists
}
