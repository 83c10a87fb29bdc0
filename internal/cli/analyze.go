package cli

import (
	"context"
	"fmt"

	"resumatch/internal/ai"
	"resumatch/internal/analyzer"
	"resumatch/internal/common"
	"resumatch/internal/extract"
	"resumatch/internal/keywords"
	"resumatch/internal/types"
	"resumatch/internal/utils"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file]",
	Short: "Analyze a resume against a job description",
	Long: `Analyze a resume against a job description and report how well they match.
The resume is usually a PDF; its text layer is extracted before analysis.
Plain text resumes (.txt, .md) are read as-is.

The report covers:
- A 0-100 match score
- Feedback on how to improve the resume for this posting
- Keywords from the job description missing from the resume
- Contact details found in the resume text`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return err
		}
		if err := requireJobFlags(analyzeJobFile, analyzeJobText); err != nil {
			return err
		}
		if analyzeOpts.OutputFormat == "" {
			analyzeOpts.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(analyzeOpts.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runAnalyze,
}

var (
	analyzeOpts    common.CommandConfig
	analyzeJobFile string
	analyzeJobText string
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeJobFile, "job-file", "", "Path to the job description file")
	analyzeCmd.Flags().StringVar(&analyzeJobText, "job", "", "Job description text, inline alternative to --job-file")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutputFormat, "output", "o", "", "Output format: json, text, or markdown")
	analyzeCmd.Flags().StringVar(&analyzeOpts.OutputFile, "output-file", "", "Write the result to this file instead of stdout")

	// Completion offers the formats the loaded config actually supports.
	_ = analyzeCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := loggerFrom(cmd.Context())
	if err != nil {
		return err
	}

	jobDescription, err := resolveJobDescription(logger, analyzeJobFile, analyzeJobText)
	if err != nil {
		return err
	}

	aiCfg := cfg.GetAnalyzeConfig()
	svc, err := ai.NewService(&aiCfg, "analyze", logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close AI service", "error", err)
		}
	}()

	matcher := analyzer.New(svc.Provider,
		extract.NewExtractor(cfg.Extraction.MaxPDFSize, cfg.Extraction.MinTextChars),
		keywords.NewDeriver(cfg.Keywords.MinWordLength, cfg.Keywords.ExtraStopwords),
		logger)
	files := common.NewFileProcessor(logger)
	resumeFile := args[0]

	logger.Info("Starting resume analysis",
		"resume_file", resumeFile,
		"job_chars", len(jobDescription),
		"output_format", analyzeOpts.OutputFormat)

	var usage types.TokenUsage
	operation := func(ctx context.Context) (*types.AnalysisResult, error) {
		var result *types.AnalysisResult
		var err error
		if utils.IsTextFile(resumeFile) {
			content, readErr := files.ReadFile(resumeFile)
			if readErr != nil {
				return nil, readErr
			}
			result, err = matcher.AnalyzeText(ctx, content, jobDescription)
		} else {
			data, readErr := files.ReadDocument(resumeFile, cfg.Extraction.MaxPDFSize)
			if readErr != nil {
				return nil, readErr
			}
			result, err = matcher.Analyze(ctx, data, jobDescription)
		}
		if result != nil {
			usage = result.Usage
		}
		return result, err
	}

	if err := common.RunCommand(cmd.Context(), logger, analyzeOpts, operation); err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}

	common.ReportTokenUsage(logger, usage)
	logger.Info("Resume analysis completed successfully")
	return nil
}
