package cli

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Models   []string                   `json:"models,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate record schemas and their derived properties",
		Long: `Validate the CUE record schemas in a directory.

Compiles every model, checks relationships, inverses and dependency keys,
looks for cycles among derived properties, and checks that every compute
function is provided by a known bundle.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSchemas(schemaDir, LoadModeCollectAll)

	// Directory not found, no files, unloadable package.
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}

	errs, warnings := validateModels(loadResult, formatter)
	validationErrors = append(validationErrors, errs...)

	result := ValidationResult{
		Valid:    len(validationErrors) == 0,
		Models:   modelNames(loadResult),
		Errors:   validationErrors,
		Warnings: warnings,
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateModels runs schema validation, function checks and cycle analysis
// over the compiled models. Error-level cycles are returned as validation
// errors; the rest come back as warnings.
func validateModels(res *LoadResult, formatter *OutputFormatter) ([]compiler.ValidationError, []compiler.CycleWarning) {
	for _, m := range res.Models {
		formatter.VerboseLog("Validating model: %s", m.Name)
	}

	errs := compiler.Validate(res.Models)
	errs = append(errs, compiler.CheckFuncs(res.Models, knownFunction)...)

	var warnings []compiler.CycleWarning
	for _, c := range compiler.AnalyzeCycles(res.Models) {
		if c.Level == compiler.LevelError {
			errs = append(errs, compiler.ValidationError{
				Field:   strings.Join(c.Path, " -> "),
				Message: c.Message,
				Code:    compiler.ErrDependencyCycle,
			})
			continue
		}
		warnings = append(warnings, c)
	}
	return errs, warnings
}

// knownFunction reports whether any registered bundle provides fn.
func knownFunction(fn string) bool {
	for _, name := range harness.BundleNames() {
		b, err := harness.LookupBundle(name)
		if err != nil {
			continue
		}
		if b.Known(fn) {
			return true
		}
	}
	return false
}

func modelNames(res *LoadResult) []string {
	names := make([]string, 0, len(res.Models))
	for _, m := range res.Models {
		names = append(names, m.Name)
	}
	return names
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s All schemas valid (%d models)\n", mark(true), len(result.Models))
	writeCycleWarnings(formatter, result.Warnings)
	return nil
}

// outputValidateError reports a command-level failure (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports schema errors (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", mark(false))
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	writeCycleWarnings(formatter, result.Warnings)
	return failure
}

func writeCycleWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "%s %s\n", warnMark(), w.Message)
	}
}

// ValidateSchemaDir validates every schema in a directory without printing.
func ValidateSchemaDir(schemaDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSchemas(schemaDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	silent := &OutputFormatter{Format: "text"}
	errs, _ := validateModels(loadResult, silent)
	for _, err := range loadErrors {
		errs = append(errs, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
	}
	return errs, nil
}
