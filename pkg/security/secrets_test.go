package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSecretsManager(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"valid 32-byte key", make([]byte, 32), false},
		{"invalid short key", make([]byte, 16), true},
		{"invalid long key", make([]byte, 64), true},
		{"empty key", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManager(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, sm)
		})
	}
}

func TestNewSecretsManagerFromPassword(t *testing.T) {
	sm, err := NewSecretsManagerFromPassword("my-secure-password")
	require.NoError(t, err)
	require.NotNil(t, sm)

	_, err = NewSecretsManagerFromPassword("")
	require.Error(t, err)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	sm, err := NewSecretsManager([]byte("test-encryption-key-32-bytes-!!!"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"simple string", []byte("hello world")},
		{"json data", []byte(`{"username":"admin","password":"secret123"}`)},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
		{"large data", bytes.Repeat([]byte("test"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := sm.EncryptSecret(tt.plaintext)
			require.NoError(t, err)
			require.NotEqual(t, tt.plaintext, ciphertext)

			decrypted, err := sm.DecryptSecret(ciphertext)
			require.NoError(t, err)
			require.Equal(t, tt.plaintext, decrypted)
		})
	}
}

func TestEncryptSecretErrors(t *testing.T) {
	sm, err := NewSecretsManager(make([]byte, 32))
	require.NoError(t, err)

	_, err = sm.EncryptSecret([]byte{})
	require.Error(t, err)
	_, err = sm.EncryptSecret(nil)
	require.Error(t, err)
}

func TestDecryptSecretErrors(t *testing.T) {
	sm, err := NewSecretsManager(make([]byte, 32))
	require.NoError(t, err)

	tests := [][]byte{{}, nil, {0x01, 0x02}, bytes.Repeat([]byte("x"), 100)}
	for _, ciphertext := range tests {
		_, err := sm.DecryptSecret(ciphertext)
		require.Error(t, err)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	sm1, err := NewSecretsManager([]byte("key-one-32-bytes-long-!!!!!!!!!!"))
	require.NoError(t, err)
	sm2, err := NewSecretsManager([]byte("key-two-32-bytes-long-!!!!!!!!!!"))
	require.NoError(t, err)

	ciphertext, err := sm1.EncryptSecret([]byte("secret data"))
	require.NoError(t, err)

	_, err = sm2.DecryptSecret(ciphertext)
	require.Error(t, err)
}
