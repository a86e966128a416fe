// Command visionx-analyze runs the document pipeline against a local file
// without the API server, database or object storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ragavi-632007/visionx/internal/analysis"
	"github.com/ragavi-632007/visionx/internal/config"
	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/logging"
	"github.com/ragavi-632007/visionx/internal/pdfdoc"
	"github.com/ragavi-632007/visionx/internal/pipeline"
)

var (
	language   string
	password   string
	jsonOutput bool
	verbose    bool

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan, color.Bold)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "visionx-analyze",
	Short: "Analyze legal documents from the command line",
	Long: `Runs the VisionX analysis pipeline on a local file.

The provider and API key are read from the same environment variables as the
API server (LLM_PROVIDER, GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY).

Examples:
  visionx-analyze analyze lease.pdf --language hi
  visionx-analyze analyze locked.pdf --password s3cret --json
  visionx-analyze inspect locked.pdf`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Analyze one document and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Report the detected type and whether a PDF needs a password",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	analyzeCmd.Flags().StringVarP(&language, "language", "l", "en", "language code or name for the analysis")
	analyzeCmd.Flags().StringVarP(&password, "password", "p", "", "password for protected PDFs (or VISIONX_PDF_PASSWORD)")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")

	rootCmd.AddCommand(analyzeCmd, inspectCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := loadFile(args[0])
	if err != nil {
		return err
	}
	if password == "" {
		password = os.Getenv("VISIONX_PDF_PASSWORD")
	}

	cfg := config.Load()
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.New(level, cfg.LogFormat)
	logger.SetOutput(os.Stderr)

	client := analysis.NewClient(analysis.Config{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.LLMAPIKey(),
		BaseURL:     cfg.LLMBaseURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	}, analysis.WithLogger(logger))
	runner := pipeline.New(client, pdfdoc.NewRasterizer(pdfdoc.FitzRenderer{}, logger), pipeline.WithLogger(logger))

	if !jsonOutput {
		colorYellow.Fprintf(os.Stderr, "Analyzing %s with %s (%s)...\n", file.Name, client.Provider(), client.Model())
	}

	outcome, err := runner.Run(ctx, file, password, language)
	if errors.Is(err, pipeline.ErrPasswordRequired) {
		return errors.New("this PDF is password protected, pass --password")
	}
	if err != nil {
		logger.WithError(err).Debug("Analysis failed")
		return errors.New(analysis.UserMessage(err))
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reportFromOutcome(outcome, language))
	}
	writeReport(out, reportFromOutcome(outcome, language))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	file, err := loadFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorCyan.Fprintf(out, "%s\n", file.Name)
	fmt.Fprintf(out, "  type:      %s (%s)\n", file.MIMEType, file.Kind)
	fmt.Fprintf(out, "  size:      %d bytes\n", file.Size())
	if !file.IsPDF() {
		return nil
	}
	if pdfdoc.IsPasswordProtected(file.Data) {
		colorYellow.Fprintln(out, "  protected: yes, a password is required")
	} else {
		colorGreen.Fprintln(out, "  protected: no")
	}
	return nil
}

func loadFile(path string) (document.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	file, err := document.Load(path, "", data)
	if err != nil {
		return document.File{}, errors.New(analysis.UserMessage(loaderError(err)))
	}
	return file, nil
}

// loaderError maps loader failures onto the analysis error kinds so the CLI
// prints the same messages as the API.
func loaderError(err error) error {
	switch {
	case errors.Is(err, document.ErrEmptyFile):
		return analysis.ErrEmptyFile
	case errors.Is(err, document.ErrUnsupportedType):
		return analysis.ErrUnsupportedMedia
	default:
		return err
	}
}
