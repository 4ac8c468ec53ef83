package transport

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/box"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/directord/directord/pkg/config"
)

// AuthMode selects how channels authenticate connecting workers: no
// authentication, a shared pre-shared secret, or a per-worker NaCl box
// keypair (the Go analogue of CurveZMQ's mutual-curve authentication).
type AuthMode string

const (
	AuthNone         AuthMode = "none"
	AuthSharedSecret AuthMode = "shared-secret"
	AuthCurveKeypair AuthMode = "curve-keypair"
)

const (
	metaIdentity   = "x-directord-identity"
	metaSharedKey  = "x-directord-shared-key"
	metaCurveToken = "x-directord-curve-token"

	coordinatorIdentity = "coordinator"
)

type curveKeys struct {
	publicKey  *[32]byte
	privateKey *[32]byte
	peers      map[string]*[32]byte
}

// Authenticator builds the gRPC server and dial options for the configured
// AuthMode, optionally layered under TLS when certificate paths are set.
type Authenticator struct {
	mode      AuthMode
	sharedKey string
	curve     *curveKeys
	tlsCert   *tls.Certificate
	tlsCAPool *x509.CertPool
}

// NewAuthenticator builds an Authenticator from configuration.
func NewAuthenticator(cfg *config.Config) (*Authenticator, error) {
	a := &Authenticator{mode: AuthMode(cfg.AuthMode)}
	switch a.mode {
	case "", AuthNone:
		a.mode = AuthNone
	case AuthSharedSecret:
		if cfg.SharedKey == "" {
			return nil, fmt.Errorf("transport: auth_mode=%s requires shared_key", AuthSharedSecret)
		}
		a.sharedKey = cfg.SharedKey
	case AuthCurveKeypair:
		keys, err := loadCurveKeys(cfg)
		if err != nil {
			return nil, fmt.Errorf("transport: loading curve keys: %w", err)
		}
		a.curve = keys
	default:
		return nil, fmt.Errorf("transport: unknown auth_mode %q", cfg.AuthMode)
	}

	if cfg.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: loading TLS keypair: %w", err)
		}
		a.tlsCert = &cert
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("transport: reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: no certificates found in %s", cfg.TLSCAFile)
		}
		a.tlsCAPool = pool
	}
	return a, nil
}

func loadCurveKeys(cfg *config.Config) (*curveKeys, error) {
	if cfg.SecretKeysDir == "" || cfg.PublicKeysDir == "" {
		return nil, fmt.Errorf("auth_mode=%s requires secret_keys_dir and public_keys_dir", AuthCurveKeypair)
	}
	priv, err := readKeyFile(filepath.Join(cfg.SecretKeysDir, "directord.key_secret"))
	if err != nil {
		return nil, err
	}
	pub, err := readKeyFile(filepath.Join(cfg.SecretKeysDir, "directord.key"))
	if err != nil {
		return nil, err
	}

	peers := make(map[string]*[32]byte)
	entries, err := os.ReadDir(cfg.PublicKeysDir)
	if err != nil {
		return nil, fmt.Errorf("reading public_keys_dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		identity := strings.TrimSuffix(entry.Name(), ".key")
		key, err := readKeyFile(filepath.Join(cfg.PublicKeysDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		peers[identity] = key
	}
	return &curveKeys{publicKey: pub, privateKey: priv, peers: peers}, nil
}

func readKeyFile(path string) (*[32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file %s: %w", path, err)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("key file %s must hold exactly 32 raw bytes, got %d", path, len(data))
	}
	var out [32]byte
	copy(out[:], data)
	return &out, nil
}

// ServerOptions returns the grpc.ServerOption list enforcing this
// Authenticator's mode and, if configured, TLS.
func (a *Authenticator) ServerOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{grpc.ChainStreamInterceptor(a.streamInterceptor())}
	if a.tlsCert != nil {
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{*a.tlsCert},
			ClientCAs:    a.tlsCAPool,
			ClientAuth:   tls.VerifyClientCertIfGiven,
			MinVersion:   tls.VersionTLS13,
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	} else {
		opts = append(opts, grpc.Creds(insecure.NewCredentials()))
	}
	return opts
}

// DialOptions returns the grpc.DialOption list a worker with the given
// selfIdentity uses to authenticate to the coordinator.
func (a *Authenticator) DialOptions(selfIdentity string) []grpc.DialOption {
	var opts []grpc.DialOption
	if a.tlsCAPool != nil {
		tlsCfg := &tls.Config{RootCAs: a.tlsCAPool, MinVersion: tls.VersionTLS13}
		if a.tlsCert != nil {
			tlsCfg.Certificates = []tls.Certificate{*a.tlsCert}
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	switch a.mode {
	case AuthSharedSecret:
		opts = append(opts, grpc.WithPerRPCCredentials(sharedKeyCreds{key: a.sharedKey}))
	case AuthCurveKeypair:
		opts = append(opts, grpc.WithPerRPCCredentials(&curvePerRPCCreds{
			identity:     selfIdentity,
			keys:         a.curve,
			peerIdentity: coordinatorIdentity,
		}))
	}
	return opts
}

func (a *Authenticator) streamInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if a.mode == AuthNone {
			return handler(srv, ss)
		}
		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			return status.Error(codes.Unauthenticated, "missing request metadata")
		}
		switch a.mode {
		case AuthSharedSecret:
			vals := md.Get(metaSharedKey)
			if len(vals) == 0 || vals[0] != a.sharedKey {
				return status.Error(codes.Unauthenticated, "shared key mismatch")
			}
		case AuthCurveKeypair:
			if err := a.verifyCurveToken(md); err != nil {
				return status.Errorf(codes.Unauthenticated, "curve handshake failed: %v", err)
			}
		}
		return handler(srv, ss)
	}
}

func (a *Authenticator) verifyCurveToken(md metadata.MD) error {
	idents := md.Get(metaIdentity)
	tokens := md.Get(metaCurveToken)
	if len(idents) == 0 || len(tokens) == 0 {
		return fmt.Errorf("missing curve credentials")
	}
	identity := idents[0]
	peerPub, ok := a.curve.peers[identity]
	if !ok {
		return fmt.Errorf("unknown identity %q", identity)
	}
	sealed, err := base64.StdEncoding.DecodeString(tokens[0])
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}
	if len(sealed) < 24 {
		return fmt.Errorf("token too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := box.Open(nil, sealed[24:], &nonce, peerPub, a.curve.privateKey)
	if !ok {
		return fmt.Errorf("box open failed")
	}
	if string(opened) != identity {
		return fmt.Errorf("identity mismatch")
	}
	return nil
}

type sharedKeyCreds struct {
	key string
}

func (s sharedKeyCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{metaSharedKey: s.key}, nil
}

func (s sharedKeyCreds) RequireTransportSecurity() bool { return false }

type curvePerRPCCreds struct {
	identity     string
	keys         *curveKeys
	peerIdentity string
}

func (c *curvePerRPCCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	peerPub, ok := c.keys.peers[c.peerIdentity]
	if !ok {
		return nil, fmt.Errorf("transport: no known public key for peer %q", c.peerIdentity)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("transport: generating nonce: %w", err)
	}
	sealed := box.Seal(nonce[:], []byte(c.identity), &nonce, peerPub, c.keys.privateKey)
	return map[string]string{
		metaIdentity:   c.identity,
		metaCurveToken: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

func (c *curvePerRPCCreds) RequireTransportSecurity() bool { return false }
