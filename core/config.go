package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Account  AccountConfig
		Mail     MailConfig

		SuperAdmin SuperAdminConfig

		PasswordResetTimeoutDelta time.Duration
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugAddress       string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine     string // postgres | mongo | memory
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
		MongoURI   string
	}

	AccountConfig struct {
		IdentifierMaxAttempts int
		BcryptCost            int
	}

	MailConfig struct {
		SendgridApiKey   string
		DefaultFromEmail string
		SendTimeout      time.Duration
	}

	SuperAdminConfig struct {
		Email    string
		Password string
	}
)

// NewConfig loads the application configuration from the environment,
// optionally seeded by a `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "LearnLink")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "x7#kq9-fjv)2l$+a1=mn&zpo0(w!e)#*d3(#ub8^$hrdt4lcs")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.debugAddress", ":5010")
	v.SetDefault("server.jwtExpirationDelta", 2*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "learnlink")
	v.SetDefault("database.user", "learnlink")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.mongoURI", "mongodb://localhost:27017")
	v.SetDefault("account.identifierMaxAttempts", 20)
	v.SetDefault("account.bcryptCost", 10)
	v.SetDefault("mail.sendgridApiKey", "")
	v.SetDefault("mail.defaultFromEmail", "LearnLink <noreply@localhost>")
	v.SetDefault("mail.sendTimeout", 10*time.Second)
	v.SetDefault("superAdmin.email", "")
	v.SetDefault("superAdmin.password", "")
	v.SetDefault("passwordResetTimeoutDelta", 30*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugAddress:       v.GetString("server.debugAddress"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:     strings.ToLower(v.GetString("database.engine")),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
			MongoURI:   v.GetString("database.mongoURI"),
		},
		Account: AccountConfig{
			IdentifierMaxAttempts: v.GetInt("account.identifierMaxAttempts"),
			BcryptCost:            v.GetInt("account.bcryptCost"),
		},
		Mail: MailConfig{
			SendgridApiKey:   v.GetString("mail.sendgridApiKey"),
			DefaultFromEmail: v.GetString("mail.defaultFromEmail"),
			SendTimeout:      v.GetDuration("mail.sendTimeout"),
		},
		SuperAdmin: SuperAdminConfig{
			Email:    v.GetString("superAdmin.email"),
			Password: v.GetString("superAdmin.password"),
		},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
}

// Address returns the database "host:port".
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// FromAddress parses the configured sender address.
func (mc MailConfig) FromAddress() mail.Address {
	addr, err := mail.ParseAddress(mc.DefaultFromEmail)
	if err != nil {
		return mail.Address{Address: mc.DefaultFromEmail}
	}
	return *addr
}

// MailEnabled reports whether outgoing mail can actually be delivered.
func (c *Config) MailEnabled() bool {
	return c.Mail.SendgridApiKey != ""
}
