package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"Anchor/internal/core/auth"
)

// SealedFileStore persists credentials to a single file encrypted with
// AES-256-GCM. File format: nonce || ciphertext || tag, written atomically
// via a temp file and rename so a crash mid-save never leaves a torn file.
type SealedFileStore struct {
	path   string
	secret []byte
	mu     sync.Mutex
}

var _ auth.CredentialStore = (*SealedFileStore)(nil)

// NewSealedFileStore creates a file store at path using a 32-byte secret.
func NewSealedFileStore(path string, secret []byte) (*SealedFileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("secret must be 32 bytes, got %d", len(secret))
	}
	return &SealedFileStore{path: path, secret: secret}, nil
}

// Load reads and decrypts the credentials file. A missing file means no
// credentials, not an error.
func (s *SealedFileStore) Load(ctx context.Context) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	plaintext, err := s.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal credentials file: %w", err)
	}

	var creds auth.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// Save encrypts and atomically replaces the credentials file.
func (s *SealedFileStore) Save(ctx context.Context, creds *auth.Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	sealed, err := s.seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".anchor-creds-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set credentials file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// Clear deletes the credentials file. Idempotent.
func (s *SealedFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}

func (s *SealedFileStore) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.secret)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *SealedFileStore) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.secret)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed data too short")
	}
	return gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
}
