package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// devOverrideSecret is only accepted in DEV and TEST, when no override secret hash is configured.
const devOverrideSecret = "admin"

const defaultSecretKey = "k3e9-zq)vm4$+12=pl&uoyh8(j!w)#*d7(#ta5^$bexn1qrz"

var (
	ErrMissingOverrideSecret = errors.New("admin override secret hash is not configured")
	ErrDefaultSecretKey      = errors.New("secret key is left to its default value")
)

type (
	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		LogLevel     string

		Server   ServerConfig
		Database DatabaseConfig
		Metering MeteringConfig
		Admin    AdminConfig
		Poll     PollConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		FrontendBaseURL           string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx (jackc/pgx stdlib)
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	MeteringConfig struct {
		QuestionCost   int
		TopUpMinutes   int
		DefaultBalance int
		ListWindow     time.Duration
		MaxImageBytes  int
	}

	AdminConfig struct {
		// OverrideSecretHash is the bcrypt hash of the administrative override password.
		OverrideSecretHash string
	}

	PollConfig struct {
		Interval time.Duration
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// NewConfig loads the configuration from the environment (and `config/.env.<env>` if it exists).
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "QSnap")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", defaultSecretKey)
	conf.SetDefault("logLevel", "info")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server_host", "localhost")
	conf.SetDefault("server_addr", ":8000")
	conf.SetDefault("server_debugHost", ":4000")
	conf.SetDefault("server_frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("server_shutdownTimeout", 5*time.Second)
	conf.SetDefault("server_jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("server_jwtRefreshExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database_engine", "postgres")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", "5432")
	conf.SetDefault("database_name", "qsnap")
	conf.SetDefault("database_user", "qsnap")
	conf.SetDefault("database_password", "")
	conf.SetDefault("database_adminUser", "")
	conf.SetDefault("database_adminPassword", "")
	conf.SetDefault("database_disableTLS", false)
	conf.SetDefault("database_inMemory", false)

	conf.SetDefault("metering_questionCost", 15)
	conf.SetDefault("metering_topUpMinutes", 60)
	conf.SetDefault("metering_defaultBalance", 120)
	conf.SetDefault("metering_listWindow", 30*24*time.Hour)
	conf.SetDefault("metering_maxImageBytes", 5<<20)

	conf.SetDefault("admin_overrideSecretHash", "")
	conf.SetDefault("poll_interval", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetDefault("debug", env == "DEV")
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		AppName:      conf.GetString("appName"),
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		LogLevel:     conf.GetString("logLevel"),
		Server: ServerConfig{
			Host:                      conf.GetString("server_host"),
			Addr:                      conf.GetString("server_addr"),
			DebugHost:                 conf.GetString("server_debugHost"),
			FrontendBaseURL:           conf.GetString("server_frontendBaseURL"),
			ShutdownTimeout:           conf.GetDuration("server_shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server_jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database_engine"),
			Host:          conf.GetString("database_host"),
			Port:          conf.GetString("database_port"),
			Name:          conf.GetString("database_name"),
			User:          conf.GetString("database_user"),
			Password:      conf.GetString("database_password"),
			AdminUser:     conf.GetString("database_adminUser"),
			AdminPassword: conf.GetString("database_adminPassword"),
			DisableTLS:    conf.GetBool("database_disableTLS"),
			InMemory:      conf.GetBool("database_inMemory"),
		},
		Metering: MeteringConfig{
			QuestionCost:   conf.GetInt("metering_questionCost"),
			TopUpMinutes:   conf.GetInt("metering_topUpMinutes"),
			DefaultBalance: conf.GetInt("metering_defaultBalance"),
			ListWindow:     conf.GetDuration("metering_listWindow"),
			MaxImageBytes:  conf.GetInt("metering_maxImageBytes"),
		},
		Admin: AdminConfig{
			OverrideSecretHash: conf.GetString("admin_overrideSecretHash"),
		},
		Poll: PollConfig{
			Interval: conf.GetDuration("poll_interval"),
		},
	}
}

// IsDevelopment reports whether the app runs locally or under tests.
func (conf *Config) IsDevelopment() bool {
	return conf.Env == "DEV" || conf.Env == "TEST"
}

// CheckSecrets fails outside DEV and TEST when a secret still has its development fallback.
func (conf *Config) CheckSecrets() error {
	if conf.IsDevelopment() {
		return nil
	}
	if conf.Admin.OverrideSecretHash == "" {
		return ErrMissingOverrideSecret
	}
	if conf.SecretKey == defaultSecretKey {
		return ErrDefaultSecretKey
	}
	return nil
}

// CheckOverrideSecret reports whether `secret` matches the administrative override password.
// Without a configured hash, only the development secret is accepted and only in DEV and TEST.
func (conf *Config) CheckOverrideSecret(secret string) bool {
	if secret == "" {
		return false
	}
	if conf.Admin.OverrideSecretHash == "" {
		return conf.IsDevelopment() && secret == devOverrideSecret
	}
	return bcrypt.CompareHashAndPassword([]byte(conf.Admin.OverrideSecretHash), []byte(secret)) == nil
}
