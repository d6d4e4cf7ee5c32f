package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := newViper()
	v.Set("DATABASE_URL", "postgres://u:p@localhost:5432/lms")
	v.Set("SUPABASE_JWT_SECRET", "secret")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.True(t, cfg.QuizShuffle)
	assert.Equal(t, "postgres://u:p@localhost:5432/lms", cfg.DatabaseURL)
}

func TestFromViper_SupabaseVariables(t *testing.T) {
	v := newViper()
	v.Set("db_user", "postgres")
	v.Set("db_password", "pw")
	v.Set("db_host", "db.example.supabase.co")
	v.Set("db_name", "postgres")
	v.Set("SUPABASE_JWT_SECRET", "secret")
	v.Set("QUIZ_SHUFFLE", false)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://postgres:pw@db.example.supabase.co:5432/postgres?sslmode=require", cfg.DatabaseURL)
	assert.False(t, cfg.QuizShuffle)
}

func TestFromViper_Missing(t *testing.T) {
	v := viper.New()
	_, err := FromViper(v)
	assert.ErrorContains(t, err, "database is not configured")

	v.Set("DATABASE_URL", "postgres://localhost/lms")
	_, err = FromViper(v)
	assert.ErrorContains(t, err, "SUPABASE_JWT_SECRET")
}
