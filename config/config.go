package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	DatabaseURL   string
	JWTSecret     string
	LogLevel      string
	AllowedOrigin string
	QuizShuffle   bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "*")
	v.SetDefault("QUIZ_SHUFFLE", true)
	v.SetDefault("DB_SSLMODE", "require")
	// The Supabase connection quintet uses lowercase names, bound verbatim.
	for key, env := range map[string]string{
		"db_user":     "user",
		"db_password": "password",
		"db_host":     "host",
		"db_port":     "port",
		"db_name":     "dbname",
	} {
		_ = v.BindEnv(key, env)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from v. DATABASE_URL wins over the Supabase style
// user/password/host/port/dbname variables.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          strings.TrimSpace(v.GetString("PORT")),
		JWTSecret:     strings.TrimSpace(v.GetString("SUPABASE_JWT_SECRET")),
		LogLevel:      strings.TrimSpace(v.GetString("LOG_LEVEL")),
		AllowedOrigin: strings.TrimSpace(v.GetString("ALLOWED_ORIGIN")),
		QuizShuffle:   v.GetBool("QUIZ_SHUFFLE"),
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		user := strings.TrimSpace(v.GetString("db_user"))
		host := strings.TrimSpace(v.GetString("db_host"))
		name := strings.TrimSpace(v.GetString("db_name"))
		if user == "" || host == "" || name == "" {
			return nil, fmt.Errorf("database is not configured: set DATABASE_URL or user/host/dbname")
		}
		port := strings.TrimSpace(v.GetString("db_port"))
		if port == "" {
			port = "5432"
		}
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, strings.TrimSpace(v.GetString("db_password")), host, port, name, v.GetString("DB_SSLMODE"))
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET environment variable not set")
	}
	return cfg, nil
}
