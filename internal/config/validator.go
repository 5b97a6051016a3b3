package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "keyboard.rows")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateOperator()...)
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateKeyboard()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateOperator() []ValidationError {
	if c.Operator.ID == 0 {
		return []ValidationError{{
			Field:   "operator.id",
			Value:   c.Operator.ID,
			Message: "operator id must be set",
		}}
	}
	return nil
}

func (c *Config) validatePaths() []ValidationError {
	var errs []ValidationError
	if c.Paths.InputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.input_dir",
			Value:   c.Paths.InputDir,
			Message: "input directory must not be empty",
		})
	}
	if c.Paths.DataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.data_dir",
			Value:   c.Paths.DataDir,
			Message: "data directory must not be empty",
		})
	}
	return errs
}

func (c *Config) validateStorage() []ValidationError {
	if !IsValidBackend(c.Storage.Backend) {
		return []ValidationError{{
			Field:   "storage.backend",
			Value:   c.Storage.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateKeyboard() []ValidationError {
	var errs []ValidationError
	if c.Keyboard.Rows < 1 || c.Keyboard.Rows > 10 {
		errs = append(errs, ValidationError{
			Field:   "keyboard.rows",
			Value:   c.Keyboard.Rows,
			Message: "must be between 1 and 10",
		})
	}
	if c.Keyboard.Cols < 1 || c.Keyboard.Cols > 8 {
		errs = append(errs, ValidationError{
			Field:   "keyboard.cols",
			Value:   c.Keyboard.Cols,
			Message: "must be between 1 and 8",
		})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}
