package stageswap

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionConfig represents parsed warehouse connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string

	// Azure Entra ID parameters. If all three are set, Service Principal auth is used;
	// otherwise the DefaultAzureCredential chain.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ParseAuthMethod maps the configuration spelling of an auth method.
// An empty string means standard authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id", "entra":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, ErrInvalidConfig)
	}
}

// PriceRecord is one trading day of OHLC values for a symbol.
type PriceRecord struct {
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
}

// RunWindow is the bounded set of records a single run processes.
// Records are ordered by Date, most recent first.
type RunWindow struct {
	Symbol  string        `json:"symbol"`
	Records []PriceRecord `json:"records"`

	// Raw is the provider payload the window was parsed from.
	Raw []byte `json:"-"`
}

// TableRef names a table in the warehouse.
// Database is informational: PostgreSQL cannot address another database
// from a session, so it only selects the connection and labels results.
type TableRef struct {
	Database string
	Schema   string
	Name     string
}

// String renders the dotted name, e.g. "RAW.STOCK_PRICE".
func (t TableRef) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Database, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Validate checks every non-empty part against ValidateIdentifier. Name is required.
func (t TableRef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required: %w", ErrInvalidConfig)
	}
	for _, p := range []string{t.Schema, t.Name} {
		if p == "" {
			continue
		}
		if err := ValidateIdentifier(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidationSpec declares the integrity checks run against a staged artifact.
type ValidationSpec struct {
	// PrimaryKey enables the uniqueness check when non-empty.
	PrimaryKey []string

	// BusinessKey is the column tuple compared for duplicate rows. Required.
	BusinessKey []string
}

// Validate checks the column names.
func (v ValidationSpec) Validate() error {
	var errs []error
	if len(v.BusinessKey) == 0 {
		errs = append(errs, fmt.Errorf("business key is required: %w", ErrInvalidConfig))
	}
	for _, col := range append(append([]string{}, v.PrimaryKey...), v.BusinessKey...) {
		if err := ValidateIdentifier(col); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IntegrityReport is the ephemeral outcome of validation.
type IntegrityReport struct {
	TotalRows         int64  `json:"total_rows"`
	DistinctRows      int64  `json:"distinct_rows"`
	PrimaryKeyChecked bool   `json:"primary_key_checked"`
	WorstKey          string `json:"worst_key,omitempty"`
	WorstKeyCount     int64  `json:"worst_key_count,omitempty"`
}

// LoadResult summarizes a finished run.
type LoadResult struct {
	InsertedRows int64  `json:"inserted_rows"`
	Table        string `json:"table"`
	DryRun       bool   `json:"dry_run,omitempty"`

	// Report is set on dry runs so the operator can see what would have been committed.
	Report *IntegrityReport `json:"report,omitempty"`
}

// StockPriceConfig contains everything a full-refresh price run needs.
type StockPriceConfig struct {
	Connection *ConnectionConfig

	// Symbol is the ticker requested from the provider.
	Symbol string

	// Target is the durable price table.
	Target TableRef

	// LookbackDays is how many of the most recent days are kept.
	LookbackDays int

	// DryRun stages and validates, then rolls back instead of committing.
	DryRun bool
}

// Validate checks if the StockPriceConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *StockPriceConfig) Validate() error {
	var errs []error

	if c.Connection == nil {
		errs = append(errs, fmt.Errorf("connection is required: %w", ErrInvalidConfig))
	}
	if strings.TrimSpace(c.Symbol) == "" {
		errs = append(errs, fmt.Errorf("symbol is required: %w", ErrInvalidConfig))
	}
	if c.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("lookback days must be positive, got %d: %w", c.LookbackDays, ErrInvalidConfig))
	}
	if err := c.Target.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SessionSummaryConfig contains everything a CTAS-and-swap run needs.
type SessionSummaryConfig struct {
	Connection *ConnectionConfig

	// Target is the durable table readers query.
	Target TableRef

	// SelectSQL is the read query whose result becomes the new table content.
	// It is trusted configuration and runs verbatim.
	SelectSQL string

	// ScratchPrefix is prepended to the target name for the scratch table.
	ScratchPrefix string

	Validation ValidationSpec

	// DryRun stages and validates, then drops the scratch table without swapping.
	DryRun bool
}

// Scratch returns the run's scratch table, in the target's schema so the
// swap can rename within one schema.
func (c *SessionSummaryConfig) Scratch() TableRef {
	prefix := c.ScratchPrefix
	if prefix == "" {
		prefix = DefaultScratchPrefix
	}
	return TableRef{Database: c.Target.Database, Schema: c.Target.Schema, Name: prefix + c.Target.Name}
}

// Validate checks if the SessionSummaryConfig has all required fields and valid values.
func (c *SessionSummaryConfig) Validate() error {
	var errs []error

	if c.Connection == nil {
		errs = append(errs, fmt.Errorf("connection is required: %w", ErrInvalidConfig))
	}
	if strings.TrimSpace(c.SelectSQL) == "" {
		errs = append(errs, fmt.Errorf("select_sql is required: %w", ErrInvalidConfig))
	}
	if c.Target.Schema == "" {
		errs = append(errs, fmt.Errorf("target schema is required: %w", ErrInvalidConfig))
	}
	if err := c.Target.Validate(); err != nil {
		errs = append(errs, err)
	} else if err := c.Scratch().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scratch table: %w", err))
	}
	if err := c.Validation.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
