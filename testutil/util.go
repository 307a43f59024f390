// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnlink/backend/assets"
	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

// NewConfig returns the configuration used by tests, independent of the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:         "LearnLink",
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:5173",
		Server: core.ServerConfig{
			Address:            ":0",
			JWTExpirationDelta: 2 * time.Hour,
			ShutdownTimeout:    time.Second,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Account: core.AccountConfig{
			IdentifierMaxAttempts: 20,
			BcryptCost:            bcrypt.MinCost,
		},
		Mail: core.MailConfig{
			DefaultFromEmail: "LearnLink <noreply@localhost>",
			SendTimeout:      time.Second,
		},
		PasswordResetTimeoutDelta: 30 * time.Minute,
	}
}

// NewValidator returns a validator with every core and account validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator)
	return validate, translator
}

// ParseEmailTemplates loads the bundled email templates.
func ParseEmailTemplates(conf *core.Config) {
	core.ParseEmailTemplates(assets.EmailTemplates, assets.EmailTemplatesDir, conf, NewLogger())
}

// Logger records every entry instead of printing it.
type Logger struct {
	mu      sync.Mutex
	Entries []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s", level, msg))
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if len(e) > len(level) && e[:len(level)] == level {
			n++
		}
	}
	return n
}

// CreateAccount stores an Account straight through repo, bypassing the service validations.
func CreateAccount(
	t *testing.T,
	repo account.Repository,
	firstName, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) account.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acc := account.Account{
		ID:        uuid.NewString(),
		FirstName: firstName,
		LastName:  "Test",
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	switch role {
	case account.RoleStudent:
		acc.ClassLevel = "JSS1"
		acc.Identifier = "STU-" + strings.ToUpper(acc.ID[:6])
	case account.RoleTeacher:
		acc.Identifier = strings.ToUpper(acc.ID[:6])
	}
	if pwd != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
		acc.PasswordHash = hash
	}

	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}
