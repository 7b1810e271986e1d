package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		SendgridAPIKey            string
		RollbarToken              string
		WorkDir                   string

		Server   ServerConfig
		Database DatabaseConfig
		Payment  PaymentConfig
		Session  SessionConfig
	}

	ServerConfig struct {
		Address                   string
		Host                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		CookieSecure              bool
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	PaymentConfig struct {
		Provider  string // PaymentProviderPaystack | PaymentProviderDummy
		PublicKey string
		SecretKey string
		BaseURL   string
		Currency  string
	}

	// SessionConfig bounds the profile fetch retry done when a session is loaded.
	SessionConfig struct {
		ProfileRetryInitial  time.Duration
		ProfileRetryMax      time.Duration
		ProfileRetryAttempts int
	}
)

const (
	PaymentProviderPaystack = "paystack"
	PaymentProviderDummy    = "dummy" // accepts any well-formed reference; DEV & TEST only
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

// Validate refuses payment settings that would let unpaid purchases through in env.
func (pc PaymentConfig) Validate(env string) error {
	switch pc.Provider {
	case PaymentProviderPaystack:
		if pc.SecretKey == "" || pc.PublicKey == "" {
			return errors.New("payment: paystack needs both a public and a secret key")
		}
	case PaymentProviderDummy:
		if env != "DEV" && env != "TEST" {
			return errors.Errorf("payment: the %s provider is not allowed in %s", PaymentProviderDummy, env)
		}
	default:
		return errors.Errorf("payment: unknown provider %q", pc.Provider)
	}
	return nil
}

// NewConfig reads the configuration from defaults, `config/.env.<env>`, an optional
// `config/<env>.yaml` and the environment (prefixed with the env name), in that order.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	if env == "DEV" || env == "TEST" {
		v.SetDefault("payment.provider", PaymentProviderDummy)
	}

	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v.SetConfigName(strings.ToLower(env))
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(wd, "config"))
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		WorkDir:                   wd,
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			Host:                      v.GetString("server.host"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			CookieSecure:              v.GetBool("server.cookieSecure"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Payment: PaymentConfig{
			Provider:  strings.ToLower(strings.TrimSpace(v.GetString("payment.provider"))),
			PublicKey: v.GetString("payment.publicKey"),
			SecretKey: v.GetString("payment.secretKey"),
			BaseURL:   strings.TrimRight(v.GetString("payment.baseURL"), "/"),
			Currency:  v.GetString("payment.currency"),
		},
		Session: SessionConfig{
			ProfileRetryInitial:  v.GetDuration("session.profileRetryInitial"),
			ProfileRetryMax:      v.GetDuration("session.profileRetryMax"),
			ProfileRetryAttempts: v.GetInt("session.profileRetryAttempts"),
		},
	}
	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "LCUPrep")
	v.SetDefault("secretKey", "v#3q6-k!zr@0x(e^lt+c9u&w2m$hp5)n8y*dj_a7=sbgf4o1")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.cookieSecure", false)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "lcuprep")
	v.SetDefault("database.user", "lcuprep")
	v.SetDefault("database.password", "lcuprep")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "lcuprep.db")

	v.SetDefault("payment.provider", PaymentProviderPaystack)
	v.SetDefault("payment.publicKey", "")
	v.SetDefault("payment.secretKey", "")
	v.SetDefault("payment.baseURL", "https://api.paystack.co")
	v.SetDefault("payment.currency", "NGN")

	v.SetDefault("session.profileRetryInitial", 200*time.Millisecond)
	v.SetDefault("session.profileRetryMax", 2*time.Second)
	v.SetDefault("session.profileRetryAttempts", 5)
}

// NewTestConfig returns the configuration used by tests: no files, no environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   v.GetString("appName"),
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://lcuprep.test",
		DefaultFromEmail:          mail.Address{Name: "LCUPrep", Address: "noreply@lcuprep.test"},
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:            true,
		},
		Database: DatabaseConfig{Engine: "sqlite", Path: ":memory:"},
		Payment: PaymentConfig{
			Provider:  PaymentProviderDummy,
			PublicKey: "pk_test_lcuprep",
			Currency:  v.GetString("payment.currency"),
		},
		Session: SessionConfig{
			ProfileRetryInitial:  time.Millisecond,
			ProfileRetryMax:      5 * time.Millisecond,
			ProfileRetryAttempts: 3,
		},
	}
}
