// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const minSecretLen = 32

type Config struct {
	Env      string
	Port     string
	LogLevel string

	DataDir       string
	DataBootstrap bool

	JWTSecret string
	TokenTTL  time.Duration

	LoginLimit    int
	RegisterLimit int

	MetricsEnabled bool
	MetricsToken   string

	AdminUsername string
	AdminPassword string

	ShutdownTimeout time.Duration
}

func (c Config) IsDev() bool { return c.Env == "dev" }

// DataFile returns the path of the named collection under DataDir.
func (c Config) DataFile(name string) string {
	return filepath.Join(c.DataDir, name+".json")
}

func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	env := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	boolean := func(k string, def bool) bool {
		v, err := strconv.ParseBool(env(k, strconv.FormatBool(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return v
	}
	duration := func(k string, def time.Duration) time.Duration {
		v, err := time.ParseDuration(env(k, def.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return v
	}
	integer := func(k string, def int) int {
		v, err := strconv.Atoi(env(k, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return v
	}

	c := Config{
		Env:      env("APP_ENV", "prod"),
		Port:     env("PORT", "8080"),
		LogLevel: env("LOG_LEVEL", "info"),

		DataDir:       env("DATA_DIR", "./data"),
		DataBootstrap: boolean("DATA_BOOTSTRAP", false),

		JWTSecret: getenv("JWT_SECRET"),
		TokenTTL:  duration("TOKEN_TTL", 15*time.Minute),

		LoginLimit:    integer("AUTH_LOGIN_LIMIT", 5),
		RegisterLimit: integer("AUTH_REGISTER_LIMIT", 3),

		MetricsEnabled: boolean("METRICS_ENABLED", true),
		MetricsToken:   getenv("METRICS_TOKEN"),

		AdminUsername: env("ADMIN_USERNAME", ""),
		AdminPassword: getenv("ADMIN_PASSWORD"),

		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if c.IsDev() && c.JWTSecret == "" {
		c.JWTSecret = "dev-secret"
	}
	if !c.IsDev() && len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required and must be at least %d chars", minSecretLen))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return c, nil
}
