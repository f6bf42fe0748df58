// Package sealed implements capability-gated opaque values. A sealed value is
// readable only by principals holding an explicit read grant; everyone else
// sees an opaque ciphertext handle. The admission core never inspects sealed
// contents except through Reveal.
package sealed

import (
	"encoding/binary"
	"fmt"
)

// Value is an opaque sealed value. Ciphertext is exposed only for transport
// and persistence; it carries no meaning without a read grant and the
// provider's key material.
type Value struct {
	ID         string `json:"id"`
	Ciphertext []byte `json:"ciphertext"`
}

// Provider creates sealed values and mediates all access to their contents.
// Principals are identified by their opaque string token.
type Provider interface {
	// Seal encrypts plaintext into a new sealed value with no grants.
	Seal(plaintext []byte) (*Value, error)

	// GrantRead allows the principal to reveal the value. Idempotent.
	GrantRead(v *Value, principal string)

	// Reveal returns the plaintext if the principal holds a read grant.
	Reveal(v *Value, principal string) ([]byte, error)
}

// SealUint8 seals a single-byte value.
func SealUint8(p Provider, b uint8) (*Value, error) {
	return p.Seal([]byte{b})
}

// RevealUint8 reveals a sealed single-byte value.
func RevealUint8(p Provider, v *Value, principal string) (uint8, error) {
	plaintext, err := p.Reveal(v, principal)
	if err != nil {
		return 0, err
	}
	if len(plaintext) != 1 {
		return 0, fmt.Errorf("sealed value is not a single byte: %d bytes", len(plaintext))
	}
	return plaintext[0], nil
}

// SealInt64 seals a 64-bit integer, big endian.
func SealInt64(p Provider, n int64) (*Value, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return p.Seal(buf)
}

// RevealInt64 reveals a sealed 64-bit integer.
func RevealInt64(p Provider, v *Value, principal string) (int64, error) {
	plaintext, err := p.Reveal(v, principal)
	if err != nil {
		return 0, err
	}
	if len(plaintext) != 8 {
		return 0, fmt.Errorf("sealed value is not an int64: %d bytes", len(plaintext))
	}
	return int64(binary.BigEndian.Uint64(plaintext)), nil
}
