package config

import (
	"io"
	"os"

	"github.com/confiture/confiture/pkg/consts"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Postgres represents PostgreSQL-specific connection settings.
	Postgres struct {
		// URL is the connection string for the target database. When empty,
		// the CONFITURE_DATABASE_URL environment variable is consulted at
		// connection time.
		URL string `yaml:"url,omitempty"`
	}

	// Seeds represents seed-loading configuration.
	Seeds struct {
		// Dir specifies the directory where seed files are stored
		Dir string `yaml:"dir,omitempty"`

		// CopyThreshold is the row count above which seed batches prefer the
		// COPY wire format over multi-row VALUES
		CopyThreshold int `yaml:"copy_threshold,omitempty"`
	}

	// Analysis represents tuning for the dry-run analyzers. Values here are
	// folded into the immutable analyzer.Rules value at startup; they never
	// mutate global state.
	Analysis struct {
		// DestructivePatterns are additional regular expressions that force a
		// statement to classify as unsafe
		DestructivePatterns []string `yaml:"destructive_patterns,omitempty"`

		// TargetBatchDurationMS is the per-batch duration target used to
		// derive recommended batch sizes
		TargetBatchDurationMS int `yaml:"target_batch_duration_ms,omitempty"`
	}

	// Config represents the project configuration for PostgreSQL schema
	// management.
	Config struct {
		// Postgres contains connection settings for the target database
		Postgres Postgres `yaml:"postgres"`

		// Dir specifies the directory where migration files are stored
		Dir string `yaml:"dir"`

		// Seeds contains seed-loading configuration
		Seeds Seeds `yaml:"seeds"`

		// Analysis contains dry-run analyzer tuning
		Analysis Analysis `yaml:"analysis"`
	}
)

// DefaultCopyThreshold is the row count above which seed batches switch to
// COPY when no explicit threshold is configured.
const DefaultCopyThreshold = 1000

// LoadConfig parses a project configuration from the provided io.Reader.
//
// The function expects YAML-formatted configuration data defining the
// migration directory, seed directory, and database connection. Missing
// values are filled with project defaults.
//
// Example:
//
//	yamlData := `
//	dir: db/migrations
//	seeds:
//	  dir: db/seeds
//	postgres:
//	  url: postgres://localhost:5432/app?sslmode=disable
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Printf("Migration dir: %s\n", cfg.Dir)
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal project config")
	}

	if cfg.Dir == "" {
		cfg.Dir = consts.DefaultMigrationsDir
	}
	if cfg.Seeds.Dir == "" {
		cfg.Seeds.Dir = consts.DefaultSeedsDir
	}
	if cfg.Seeds.CopyThreshold == 0 {
		cfg.Seeds.CopyThreshold = DefaultCopyThreshold
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("confiture.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// DatabaseURL resolves the connection string for the target database,
// preferring an explicit flag value, then the configured URL, then the
// CONFITURE_DATABASE_URL environment variable.
func (c *Config) DatabaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if c.Postgres.URL != "" {
		return c.Postgres.URL
	}

	return os.Getenv("CONFITURE_DATABASE_URL")
}
