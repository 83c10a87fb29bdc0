package cli

import (
	"context"
	"fmt"

	"resumatch/internal/common"
	"resumatch/internal/config"
	"resumatch/internal/errors"

	"github.com/spf13/cobra"
)

// ctxKey keys the values Execute attaches to the command context.
type ctxKey int

const (
	configCtxKey ctxKey = iota
	loggerCtxKey
)

var rootCmd = &cobra.Command{
	Use:   "resumatch",
	Short: "Score resumes against job descriptions using AI",
	Long: `Resumatch scores how well a resume fits a job description. It extracts
the text layer from resume PDFs, derives keywords from job postings, and asks
an AI model for a match score with feedback on what the resume is missing.`,
}

func init() {
	rootCmd.AddCommand(
		analyzeCmd,
		extractCmd,
		keywordsCmd,
		versionCmd,
		serveCmd,
	)
}

// Execute runs the CLI with the config and logger reachable from every
// subcommand's context.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configCtxKey, cfg)
	ctx = context.WithValue(ctx, loggerCtxKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configCtxKey).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not attached to command context")
	}
	return cfg, nil
}

func loggerFrom(ctx context.Context) (*errors.Logger, error) {
	logger, ok := ctx.Value(loggerCtxKey).(*errors.Logger)
	if !ok {
		return nil, fmt.Errorf("logger not attached to command context")
	}
	return logger, nil
}

// resolveJobDescription returns the inline job text when given, otherwise
// reads the job description file
func resolveJobDescription(logger *errors.Logger, jobFile, jobText string) (string, error) {
	if jobText != "" {
		return jobText, nil
	}
	contents, err := common.NewFileProcessor(logger).ValidateAndReadFiles(jobFile)
	if err != nil {
		return "", err
	}
	return contents[0], nil
}

// requireJobFlags validates the --job-file / --job pair shared by the
// analyze and keywords commands
func requireJobFlags(jobFile, jobText string) error {
	if jobFile == "" && jobText == "" {
		return fmt.Errorf("a job description is required: pass --job-file or --job")
	}
	if jobFile != "" && jobText != "" {
		return fmt.Errorf("--job-file and --job are mutually exclusive")
	}
	return nil
}
