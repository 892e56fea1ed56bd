package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// SealedToken is the payload sealed into a gateway bearer token. The PDS
// access and refresh tokens never leave the server; clients hold only this
// opaque reference to the server-side session.
type SealedToken struct {
	DID       string `json:"did"`
	Handle    string `json:"hdl"`
	ExpiresAt int64  `json:"exp"` // Unix timestamp
}

// Sealer creates and validates encrypted gateway tokens.
//
// Token format: base64url(nonce || ciphertext || tag)
// - nonce: 12 bytes (GCM standard nonce size)
// - ciphertext: encrypted JSON payload
// - tag: 16 bytes (GCM authentication tag)
type Sealer struct {
	secret []byte
}

// NewSealer creates a Sealer from a 32-byte secret (AES-256).
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("seal secret must be 32 bytes, got %d", len(secret))
	}
	return &Sealer{secret: secret}, nil
}

// Seal encrypts session identity into an opaque bearer token.
func (s *Sealer) Seal(did, handle string, ttl time.Duration) (string, error) {
	if did == "" {
		return "", fmt.Errorf("DID is required")
	}

	payload := SealedToken{
		DID:       did,
		Handle:    handle,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}

	block, err := aes.NewCipher(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM.Seal appends the ciphertext and tag to the nonce
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Unseal decrypts and validates a gateway token. Returns an error for
// malformed, tampered, or expired tokens.
func (s *Sealer) Unseal(token string) (*SealedToken, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token encoding: %w", err)
	}

	block, err := aes.NewCipher(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("invalid token: too short")
	}

	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var payload SealedToken
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if payload.DID == "" {
		return nil, fmt.Errorf("invalid token: missing DID")
	}
	if payload.ExpiresAt <= time.Now().Unix() {
		return nil, fmt.Errorf("token expired at %v", time.Unix(payload.ExpiresAt, 0))
	}

	return &payload, nil
}
