/*
Package security provides the certificate authority and at-rest encryption
Directord uses to secure coordinator/worker/client traffic.

# Certificate Authority

CertAuthority holds a self-signed root (RSA 4096, 10-year validity) and
issues short-lived node and client leaf certificates (RSA 2048, 90-day
validity) from it:

	ca, _ := security.NewCertAuthority(passphrase)
	ca.Initialize()
	ca.SaveToFile(certDir)

	nodeCert, _ := ca.IssueNodeCertificate(nodeID, "worker", dnsNames, ips)
	clientCert, _ := ca.IssueClientCertificate(clientID)

Node certificates carry both ClientAuth and ServerAuth extended key usage
since a worker both dials the coordinator and serves its own backend
channel; client certificates (for exec/orchestrate/manage) carry only
ClientAuth.

Issued leaves are retained in memory by node or client id (GetCachedCert).
Each Issue call still mints a fresh key pair and replaces the earlier
entry for that id; the cache is not consulted when issuing.

# Persistence

LoadFromFile/SaveToFile read and write ca.crt (plain PEM) and ca.key
alongside each other in a certificate directory. When NewCertAuthority is
given a non-empty passphrase, ca.key is AES-256-GCM-encrypted with a key
derived from it via SecretsManager; an empty passphrase stores the key as
plain PKCS1 PEM. Node and client keys returned by IssueNodeCertificate and
IssueClientCertificate are never persisted by the CA itself — callers
write them wherever pkg/transport's TLS layer expects to find them
(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSCAFile).

# Secrets

SecretsManager is a standalone AES-256-GCM byte encryptor, constructed
either from a raw 32-byte key or from a password hashed with SHA-256. It
has no dependency on the CA and can be reused anywhere a payload needs
authenticated encryption at rest.
*/
package security
