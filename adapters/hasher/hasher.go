// Package hasher provides password hashing implementations.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/appkernel/ports"
)

// Bcrypt uses bcrypt for hashing.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *Bcrypt) Cost() int {
	return h.cost
}

// Hash generates a bcrypt hash from plaintext.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Compare checks if plaintext matches hash.
func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (h *Bcrypt) NeedsRehash(hash []byte) bool {
	cost, err := bcrypt.Cost(hash)
	return err != nil || cost != h.cost
}

// Plaintext stores passwords as-is. Only for the test environment.
type Plaintext struct{}

// Hash returns the plaintext as bytes.
func (Plaintext) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

// Compare does simple equality check.
func (Plaintext) Compare(hash []byte, plaintext string) bool {
	return string(hash) == plaintext
}

// NeedsRehash is always false.
func (Plaintext) NeedsRehash([]byte) bool {
	return false
}

// Ensure interface compliance.
var (
	_ ports.PasswordHasher = (*Bcrypt)(nil)
	_ ports.PasswordHasher = Plaintext{}
)
