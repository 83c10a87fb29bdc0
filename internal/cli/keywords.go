package cli

import (
	"context"
	"fmt"

	"resumatch/internal/common"
	"resumatch/internal/config"
	"resumatch/internal/errors"
	"resumatch/internal/extract"
	"resumatch/internal/keywords"
	"resumatch/internal/types"
	"resumatch/internal/utils"

	"github.com/spf13/cobra"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords [resume-file]",
	Short: "Derive keywords from a job description",
	Long: `Derive the keyword set from a job description without calling an AI model.
With a resume file argument the report also lists which keywords the resume
is missing and renders the resume text with matched keywords highlighted.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireJobFlags(keywordsJobFile, keywordsJobText); err != nil {
			return err
		}
		// Apply default format if not specified
		if keywordsConfig.OutputFormat == "" {
			keywordsConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(keywordsConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runKeywords,
}

var (
	keywordsConfig  common.CommandConfig
	keywordsJobFile string
	keywordsJobText string
)

func init() {
	keywordsCmd.Flags().StringVar(&keywordsJobFile, "job-file", "", "Path to the job description file")
	keywordsCmd.Flags().StringVar(&keywordsJobText, "job", "", "Job description text, inline alternative to --job-file")
	keywordsCmd.Flags().StringVarP(&keywordsConfig.OutputFormat, "output", "o", "", "Output format: json, text, or markdown")
	keywordsCmd.Flags().StringVar(&keywordsConfig.OutputFile, "output-file", "", "Write the result to this file instead of stdout")

	// Add completion for format flag
	_ = keywordsCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runKeywords(cmd *cobra.Command, args []string) error {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := loggerFrom(cmd.Context())
	if err != nil {
		return err
	}

	jobDescription, err := resolveJobDescription(logger, keywordsJobFile, keywordsJobText)
	if err != nil {
		return err
	}

	resumeText := ""
	if len(args) == 1 {
		resumeText, err = readResumeText(cfg, logger, args[0])
		if err != nil {
			return err
		}
	}

	deriver := keywords.NewDeriver(cfg.Keywords.MinWordLength, cfg.Keywords.ExtraStopwords)

	logger.Info("Deriving job description keywords",
		"job_chars", len(jobDescription),
		"with_resume", resumeText != "",
		"output_format", keywordsConfig.OutputFormat)

	operation := func(_ context.Context) (*types.KeywordReport, error) {
		return deriver.Report(jobDescription, resumeText), nil
	}

	if err := common.RunCommand(cmd.Context(), logger, keywordsConfig, operation); err != nil {
		return fmt.Errorf("failed to derive keywords: %w", err)
	}

	logger.Info("Keyword report completed successfully")
	return nil
}

// readResumeText reads a resume as plain text, extracting the text layer
// first when the file is not already a text file
func readResumeText(cfg *config.Config, logger *errors.Logger, filename string) (string, error) {
	fileProcessor := common.NewFileProcessor(logger)

	if utils.IsTextFile(filename) {
		return fileProcessor.ReadFile(filename)
	}

	data, err := fileProcessor.ReadDocument(filename, cfg.Extraction.MaxPDFSize)
	if err != nil {
		return "", err
	}
	result, err := extract.NewExtractor(cfg.Extraction.MaxPDFSize, cfg.Extraction.MinTextChars).Extract(data)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
