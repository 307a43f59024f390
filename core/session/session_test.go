package session

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnlink/backend/core"
)

func newTestIssuer(secret string) *Issuer {
	conf := &core.Config{AppName: "LearnLink", SecretKey: secret}
	conf.Server.JWTExpirationDelta = 2 * time.Hour
	return NewIssuer(conf)
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	iss := newTestIssuer("secret")

	token, err := iss.Issue("acc-1", "ada@test.cd", "student")
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "ada@test.cd", claims.Email)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "LearnLink", claims.Issuer)
	assert.Equal(t, int64((2 * time.Hour).Seconds()), claims.ExpiresAt-claims.IssuedAt)
}

func TestIssuer_Verify(t *testing.T) {
	iss := newTestIssuer("secret")
	t.Cleanup(func() { nowFunc = time.Now })

	valid, err := iss.Issue("acc-1", "ada@test.cd", "teacher")
	require.NoError(t, err)

	forged, err := newTestIssuer("other secret").Issue("acc-1", "ada@test.cd", "superadmin")
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, iss.NewClaims("acc-1", "ada@test.cd", "superadmin"))
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	nowFunc = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expired, err := iss.Issue("acc-1", "ada@test.cd", "teacher")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "empty", token: "", wantErr: ErrInvalidToken},
		{name: "garbage", token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "wrong secret", token: forged, wantErr: ErrInvalidToken},
		{name: "alg none", token: unsigned, wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Verify(tt.token)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
