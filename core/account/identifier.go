package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

const studentIDPrefix = "STU-"

var (
	// mockable
	studentIDFunc  = GenerateStudentID
	staffIDFunc    = GenerateStaffID
	tempSecretFunc = GenerateTemporarySecret
	resetTokenFunc = GenerateResetToken

	identifierRetryDelay = time.Millisecond

	errIdentifierTaken = errors.New("identifier already taken")
)

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return hex.EncodeToString(buf), nil
}

// GenerateStudentID returns "STU-" followed by 6 upper-case hex characters.
func GenerateStudentID() (string, error) {
	h, err := randomHex(3)
	if err != nil {
		return "", err
	}
	return studentIDPrefix + strings.ToUpper(h), nil
}

// GenerateStaffID returns 6 upper-case hex characters.
func GenerateStaffID() (string, error) {
	h, err := randomHex(3)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(h), nil
}

// GenerateTemporarySecret returns 16 lower-case hex characters.
func GenerateTemporarySecret() (string, error) {
	return randomHex(8)
}

// GenerateResetToken returns 64 lower-case hex characters.
func GenerateResetToken() (string, error) {
	return randomHex(32)
}

// newIdentifier draws identifiers from gen until one is not held by any Account,
// giving up with ErrIdentifierExhausted after maxAttempts draws.
func (svc *Service) newIdentifier(ctx context.Context, gen func() (string, error)) (string, error) {
	attempts := svc.conf.Account.IdentifierMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var id string
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(identifierRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := gen()
		if err != nil {
			return err
		}
		_, err = svc.repo.GetAccount(ctx, GetFilter{Identifier: candidate})
		switch {
		case err == nil:
			return retry.RetryableError(errIdentifierTaken)
		case errors.Cause(err) == ErrNotFound:
			id = candidate
			return nil
		default:
			return errors.Wrap(err, "checking identifier")
		}
	})
	if err != nil {
		if errors.Cause(err) == errIdentifierTaken {
			return "", ErrIdentifierExhausted
		}
		return "", err
	}
	return id, nil
}
