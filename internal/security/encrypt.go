package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/hkdf"
)

var ErrUnseal = errors.New("failed to unseal stored credential")

const sealInfo = "ping-credential-store"

// Sealer encrypts the stored credential at rest using fernet tokens.
// The first key seals; every key is tried when opening, so old secrets
// keep working after a rotation.
type Sealer struct {
	keys []*fernet.Key
}

// NewSealer derives a fernet key from an arbitrary-length secret with HKDF.
// Additional secrets are accepted for opening only.
func NewSealer(secret string, previous ...string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("store secret must not be empty")
	}
	keys := make([]*fernet.Key, 0, len(previous)+1)
	for _, s := range append([]string{secret}, previous...) {
		k, err := deriveKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return &Sealer{keys: keys}, nil
}

// NewSealerFromKeyFile loads a fernet key from path, generating and
// writing a fresh one (mode 0600) when the file does not exist yet.
func NewSealerFromKeyFile(path string) (*Sealer, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		k, err := fernet.DecodeKey(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", path, err)
		}
		return &Sealer{keys: []*fernet.Key{k}}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(k.Encode()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return &Sealer{keys: []*fernet.Key{&k}}, nil
}

func deriveKey(secret string) (*fernet.Key, error) {
	var k fernet.Key
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &k, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), s.keys[0])
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	plain := fernet.VerifyAndDecrypt([]byte(sealed), 0*time.Second, s.keys)
	if plain == nil {
		return "", ErrUnseal
	}
	return string(plain), nil
}
