package common

import (
	"context"
	"fmt"

	"resumatch/internal/errors"
	"resumatch/internal/formatters"
	"resumatch/internal/types"
)

// CommandConfig holds the output options shared by the CLI commands.
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OperationFunc produces the renderable result of one CLI operation.
type OperationFunc[Output any] func(ctx context.Context) (Output, error)

// RunCommand encapsulates the common logic of CLI commands: run the
// operation, format its result, and write it to stdout or the configured
// output file. The output path is checked up front so a bad destination
// fails before the operation spends an AI call.
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	operation OperationFunc[Output],
) error {
	fp := NewFileProcessor(logger)
	if err := fp.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	result, err := operation(ctx)
	if err != nil {
		return err
	}

	output, err := formatters.DefaultRegistry.Format(result, cmdConfig.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", cmdConfig.OutputFormat), err)
	}

	if cmdConfig.OutputFile == "" {
		fmt.Print(output)
		return nil
	}
	if err := fp.WriteFile(cmdConfig.OutputFile, output); err != nil {
		return err
	}
	logger.Info("Output written successfully",
		"file", cmdConfig.OutputFile, "format", cmdConfig.OutputFormat)
	return nil
}

// ReportTokenUsage logs the token counts of one model call so CLI users see
// what an analysis cost
func ReportTokenUsage(logger *errors.Logger, usage types.TokenUsage) {
	if usage.InputTokens == 0 && usage.OutputTokens == 0 && usage.TotalTokens == 0 {
		return
	}
	if logger == nil {
		logger = errors.Discard()
	}
	logger.Info("AI token usage",
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"total_tokens", usage.TotalTokens)
}
