// Package session issues and verifies the signed bearer tokens handed out at sign-in.
package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/learnlink/backend/core"
)

var (
	nowFunc = time.Now // mockable

	// ErrInvalidToken is returned for any token that is malformed, tampered with or expired.
	ErrInvalidToken = errors.New("invalid or expired session token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"type"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	key    []byte
	method jwt.SigningMethod
	issuer string
	ttl    time.Duration
}

func NewIssuer(conf *core.Config) *Issuer {
	return &Issuer{
		key:    []byte(conf.SecretKey),
		method: jwt.SigningMethodHS256,
		issuer: conf.AppName,
		ttl:    conf.Server.JWTExpirationDelta,
	}
}

// SigningKey is exposed for the HTTP middleware validating bearer tokens.
func (iss *Issuer) SigningKey() []byte { return iss.key }

// SigningMethod returns the JWT "alg" used by the Issuer.
func (iss *Issuer) SigningMethod() string { return iss.method.Alg() }

// TTL is the lifetime of newly issued tokens.
func (iss *Issuer) TTL() time.Duration { return iss.ttl }

// NewClaims builds the claims of a token for the given account.
func (iss *Issuer) NewClaims(accountID, email, role string) *Claims {
	now := nowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    iss.issuer,
			Subject:   accountID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(iss.ttl).Unix(),
		},
		AccountID: accountID,
		Email:     email,
		Role:      role,
	}
}

// Issue returns a signed token carrying the account id, email and role.
func (iss *Issuer) Issue(accountID, email, role string) (string, error) {
	token := jwt.NewWithClaims(iss.method, iss.NewClaims(accountID, email, role))
	ss, err := token.SignedString(iss.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify parses a signed token and returns its claims.
func (iss *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != iss.method.Alg() {
			return nil, ErrInvalidToken
		}
		return iss.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
