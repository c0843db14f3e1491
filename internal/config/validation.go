package config

import (
	"fmt"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is required for all AI operations. Genkit reads it directly
	// from the environment; we only verify its presence here.
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if len(c.Departments) == 0 {
		return fmt.Errorf("%w: at least one department is required", ErrInvalidDepartments)
	}
	for _, d := range c.Departments {
		if d == "" {
			return fmt.Errorf("%w: department names cannot be empty", ErrInvalidDepartments)
		}
	}

	// Oracle calls are network calls; an unbounded or absurd timeout would
	// defeat the fail-fast contract of the pipeline.
	if c.OracleTimeoutSeconds < 1 || c.OracleTimeoutSeconds > 300 {
		return fmt.Errorf("%w: must be between 1 and 300 seconds, got %d",
			ErrInvalidOracleTimeout, c.OracleTimeoutSeconds)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
