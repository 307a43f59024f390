package account

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/learnlink/backend/core"
)

// Hasher derives and checks one-way password hashes.
type Hasher interface {
	Hash(pwd string) ([]byte, error)
	Verify(hash []byte, pwd string) bool
}

type BcryptHasher struct {
	cost int
}

var _ Hasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a bcrypt Hasher with the configured cost.
// Costs below bcrypt.DefaultCost are only honored in test mode.
func NewBcryptHasher(conf *core.Config) *BcryptHasher {
	cost := conf.Account.BcryptCost
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if cost < bcrypt.DefaultCost && !conf.TestMode {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &BcryptHasher{cost: cost}
}

func (h BcryptHasher) Hash(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), h.cost)
}

func (h BcryptHasher) Verify(hash []byte, pwd string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(pwd)) == nil
}
