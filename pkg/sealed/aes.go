package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// AESProvider seals values with AES-256-GCM and tracks read grants in memory.
// It stands in for a real cryptographic comparator: the selection algorithm
// only touches sealed contents through Reveal, so a homomorphic backend can
// replace this provider without changing any consumer.
type AESProvider struct {
	key    []byte
	mu     sync.RWMutex
	grants map[string]map[string]struct{} // value ID -> principal set
}

// NewAESProvider creates a provider keyed by the given secret. The secret is
// stretched to a 256-bit key with SHA-256.
func NewAESProvider(secret string) *AESProvider {
	keyBytes := sha256.Sum256([]byte(secret))
	return &AESProvider{
		key:    keyBytes[:],
		grants: make(map[string]map[string]struct{}),
	}
}

// Seal encrypts plaintext into a new sealed value with no grants.
func (p *AESProvider) Seal(plaintext []byte) (*Value, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	v := &Value{
		ID:         uuid.New().String(),
		Ciphertext: gcm.Seal(nonce, nonce, plaintext, nil),
	}

	p.mu.Lock()
	p.grants[v.ID] = make(map[string]struct{})
	p.mu.Unlock()

	return v, nil
}

// GrantRead allows the principal to reveal the value. Idempotent.
func (p *AESProvider) GrantRead(v *Value, principal string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.grants[v.ID]
	if !ok {
		set = make(map[string]struct{})
		p.grants[v.ID] = set
	}
	set[principal] = struct{}{}
}

// Reveal returns the plaintext if the principal holds a read grant.
func (p *AESProvider) Reveal(v *Value, principal string) ([]byte, error) {
	p.mu.RLock()
	_, granted := p.grants[v.ID][principal]
	p.mu.RUnlock()

	if !granted {
		return nil, fmt.Errorf("principal %q holds no read grant for value %s", principal, v.ID)
	}

	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(v.Ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := v.Ciphertext[:nonceSize], v.Ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// GenerateKey generates a new random 256-bit sealing secret.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return fmt.Sprintf("%x", key), nil
}
