package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/stageswap/internal/config"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// DefaultAppName is reported to the server as application_name.
const DefaultAppName = "stageswap"

// EnvVars holds the connection-related environment.
// See https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string

	// STAGESWAP_CONNECTION_STRING wins over DATABASE_URL.
	STAGESWAP_CONNECTION_STRING string

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:                      os.Getenv("PGHOST"),
		PGPORT:                      os.Getenv("PGPORT"),
		PGUSER:                      os.Getenv("PGUSER"),
		PGPASSWORD:                  os.Getenv("PGPASSWORD"),
		PGDATABASE:                  os.Getenv("PGDATABASE"),
		PGSSLMODE:                   os.Getenv("PGSSLMODE"),
		DATABASE_URL:                os.Getenv("DATABASE_URL"),
		STAGESWAP_CONNECTION_STRING: os.Getenv("STAGESWAP_CONNECTION_STRING"),
		AWS_REGION:                  os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:             os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:             os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:         os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnection builds the warehouse ConnectionConfig.
//
// Precedence:
//  1. --connection flag
//  2. $STAGESWAP_CONNECTION_STRING, then $DATABASE_URL
//  3. PG* environment variables, field by field
//  4. the `connection` block of stageswap.yaml
//  5. defaults (localhost:5432, sslmode=prefer)
//
// Passwords never come from the config file.
func ResolveConnection(connFlag string, env *EnvVars, file *config.ConnectionConfig) (*stageswap.ConnectionConfig, error) {
	if env == nil {
		env = &EnvVars{}
	}
	if file == nil {
		file = &config.ConnectionConfig{}
	}

	var cfg *stageswap.ConnectionConfig
	var err error
	switch {
	case connFlag != "":
		cfg, err = ParseConnectionString(connFlag)
	case env.STAGESWAP_CONNECTION_STRING != "":
		cfg, err = ParseConnectionString(env.STAGESWAP_CONNECTION_STRING)
	case env.DATABASE_URL != "":
		cfg, err = ParseConnectionString(env.DATABASE_URL)
	default:
		cfg, err = resolveFromParts(env, file)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid connection: %w: %w", stageswap.ErrInvalidConfig, err)
	}

	if cfg.SSLMode == "" {
		cfg.SSLMode = firstNonEmpty(env.PGSSLMODE, file.SSLMode, "prefer")
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if err := applyAuth(cfg, env, file); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveFromParts(env *EnvVars, file *config.ConnectionConfig) (*stageswap.ConnectionConfig, error) {
	cfg := &stageswap.ConnectionConfig{
		Host:             firstNonEmpty(env.PGHOST, file.Host, "localhost"),
		Username:         firstNonEmpty(env.PGUSER, file.Username, os.Getenv("USER")),
		Password:         env.PGPASSWORD,
		Database:         firstNonEmpty(env.PGDATABASE, file.Database, "postgres"),
		AuthMethod:       stageswap.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	switch {
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer", env.PGPORT)
		}
		cfg.Port = port
	case file.Port != 0:
		cfg.Port = file.Port
	default:
		cfg.Port = 5432
	}
	return cfg, nil
}

// applyAuth selects the auth method from stageswap.yaml, or Azure when
// AZURE_* variables are present.
func applyAuth(cfg *stageswap.ConnectionConfig, env *EnvVars, file *config.ConnectionConfig) error {
	method, err := stageswap.ParseAuthMethod(file.AuthMethod)
	if err != nil {
		return err
	}
	if file.AuthMethod == "" && (env.AZURE_TENANT_ID != "" || env.AZURE_CLIENT_ID != "") {
		method = stageswap.AuthMethodAzureEntraID
	}
	cfg.AuthMethod = method

	switch method {
	case stageswap.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(file.AWSRegion, env.AWS_REGION)
	case stageswap.AuthMethodGoogleIAM:
		cfg.GoogleInstance = file.GoogleInstance
	case stageswap.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(file.AzureTenantID, env.AZURE_TENANT_ID)
		cfg.AzureClientID = firstNonEmpty(file.AzureClientID, env.AZURE_CLIENT_ID)
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
