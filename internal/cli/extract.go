package cli

import (
	"context"
	"fmt"

	"resumatch/internal/common"
	"resumatch/internal/extract"
	"resumatch/internal/types"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [resume-file]",
	Short: "Extract the text layer from a resume PDF",
	Long: `Extract the plain text from a resume PDF without running any analysis.
The extraction walks the document page by page and concatenates the visible
text in page order. Image-only PDFs without a text layer are rejected.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return err
		}
		// Apply default format if not specified
		if extractConfig.OutputFormat == "" {
			extractConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(extractConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runExtract,
}

var extractConfig common.CommandConfig

func init() {
	extractCmd.Flags().StringVarP(&extractConfig.OutputFormat, "output", "o", "", "Output format: json, text, or markdown")
	extractCmd.Flags().StringVar(&extractConfig.OutputFile, "output-file", "", "Write the result to this file instead of stdout")

	// Add completion for format flag
	_ = extractCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := loggerFrom(cmd.Context())
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(cfg.Extraction.MaxPDFSize, cfg.Extraction.MinTextChars)
	fileProcessor := common.NewFileProcessor(logger)
	resumeFile := args[0]

	logger.Info("Starting text extraction",
		"resume_file", resumeFile,
		"output_format", extractConfig.OutputFormat)

	operation := func(_ context.Context) (*types.ExtractionResult, error) {
		data, err := fileProcessor.ReadDocument(resumeFile, cfg.Extraction.MaxPDFSize)
		if err != nil {
			return nil, err
		}
		return extractor.Extract(data)
	}

	if err := common.RunCommand(cmd.Context(), logger, extractConfig, operation); err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}

	logger.Info("Text extraction completed successfully")
	return nil
}
