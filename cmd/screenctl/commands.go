package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sms-screening-service/internal/app"
	"sms-screening-service/internal/config"
	"sms-screening-service/internal/export"
	"sms-screening-service/internal/ingest"
	"sms-screening-service/internal/llm"
	"sms-screening-service/internal/models"
	"sms-screening-service/internal/prefilter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Deps holds the constructors commands use, replaceable in tests.
type Deps struct {
	LoadConfig  func(path string) (*config.Config, error)
	NewLogger   func(cfg *config.Config) (*zap.Logger, error)
	NewProvider func(cfg *config.Config, logger *zap.Logger) (llm.Provider, error)
}

// DefaultDeps returns the dependencies for production use.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig:  loadConfigOrDefault,
		NewLogger:   app.NewLogger,
		NewProvider: app.NewProvider,
	}
}

// loadConfigOrDefault falls back to built-in defaults when the file does not exist.
func loadConfigOrDefault(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

type rootOptions struct {
	configPath string
	output     string
}

// NewRootCommand creates the screenctl command tree.
func NewRootCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "screenctl",
		Short: "Screen bulk SMS messages for scams and prohibited content",
		Long: `screenctl runs the SMS screening pipeline locally.

Every message is first checked against a denylist of prohibited terms; the
rest are sent to the configured remote classifier. Each message ends up with
a case (pass, not pass, error), a category and a short note.

Remote providers and API keys are read from the config file. A missing config
file falls back to defaults with GEMINI_API_KEY taken from the environment
or a .env file.`,
		Example: `  # Screen a file and write an Excel report
  screenctl classify messages.csv --out results.xlsx

  # Check a single message
  screenctl check "ยืมเงินด่วน อนุมัติไว" --sender LOAN

  # List the labels a verdict can carry
  screenctl categories --output json`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yml", "Path to the YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json, yaml")

	cmd.AddCommand(newClassifyCommand(deps, opts))
	cmd.AddCommand(newCheckCommand(deps, opts))
	cmd.AddCommand(newCategoriesCommand(opts))

	return cmd
}

// newClassifyCommand creates the 'classify' command.
func newClassifyCommand(deps *Deps, opts *rootOptions) *cobra.Command {
	var (
		outPath string
		format  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Screen every row of a CSV or XLSX file",
		Long: `Screen every row of a CSV or XLSX file.

The file needs a header row with 'sender' and 'text' columns (any case). Rows
are reported in input order. Results go to --out, or to stdout as CSV.
The format follows the --out extension unless --format is given.

Interrupting the run keeps the rows finished so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, deps, opts, args[0], outPath, format, workers)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write results to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "Result format: csv or xlsx")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent remote calls (overrides batch.workers)")

	return cmd
}

func runClassify(cmd *cobra.Command, deps *Deps, opts *rootOptions, inPath, outPath, formatName string, workers int) error {
	if formatName == "" {
		formatName = string(export.FormatCSV)
		if outPath != "" {
			formatName = filepath.Ext(outPath)
		}
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	records, err := readRecords(inPath)
	if err != nil {
		return err
	}

	cfg, logger, provider, err := setup(deps, opts)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer provider.Close()

	if workers > 0 {
		cfg.Batch.Workers = workers
	}
	screener := app.NewScreener(cfg, provider, nil, logger)

	stderr := cmd.ErrOrStderr()
	results, runErr := screener.Run(cmd.Context(), records, func(processed, total int) {
		fmt.Fprintf(stderr, "\rScreening %d/%d", processed, total)
	}, nil)
	fmt.Fprintln(stderr)

	if err := writeResults(cmd.OutOrStdout(), outPath, format, results); err != nil {
		return err
	}

	fmt.Fprintln(stderr, summarize(results))
	if runErr != nil {
		return fmt.Errorf("screening stopped after %d of %d rows: %w", len(results), len(records), runErr)
	}
	return nil
}

func readRecords(path string) ([]models.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	raw, err := ingest.Parse(f, path)
	if err != nil {
		return nil, err
	}
	return ingest.Normalize(raw)
}

func writeResults(stdout io.Writer, outPath string, format export.Format, results []models.ResultRecord) error {
	if outPath == "" {
		return export.Write(stdout, format, results)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := export.Write(f, format, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// summarize counts results per case
func summarize(results []models.ResultRecord) string {
	counts := map[models.Case]int{}
	for _, r := range results {
		counts[r.Case]++
	}
	return fmt.Sprintf("%d rows: %d pass, %d not pass, %d error",
		len(results), counts[models.CasePass], counts[models.CaseNotPass], counts[models.CaseError])
}

// newCheckCommand creates the 'check' command.
func newCheckCommand(deps *Deps, opts *rootOptions) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "check <text>",
		Short: "Screen a single message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return errors.New("text must not be empty")
			}

			cfg, logger, provider, err := setup(deps, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer provider.Close()

			screener := app.NewScreener(cfg, provider, nil, logger)
			result := screener.ClassifyOne(cmd.Context(), models.InputRecord{Sender: sender, Text: args[0]})

			return render(cmd.OutOrStdout(), opts.output, result, func(w io.Writer) {
				fmt.Fprintf(w, "case:     %s\n", result.Case)
				fmt.Fprintf(w, "category: %s\n", result.Category)
				fmt.Fprintf(w, "note:     %s\n", result.Note)
			})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Sender name carried into the result")

	return cmd
}

type categoriesView struct {
	Categories     []string `json:"categories" yaml:"categories"`
	DenylistTerms  []string `json:"denylist_terms" yaml:"denylist_terms"`
	DenylistResult string   `json:"denylist_category" yaml:"denylist_category"`
}

// newCategoriesCommand creates the 'categories' command.
func newCategoriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List verdict categories and denylisted terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := categoriesView{
				Categories:     models.AllCategories,
				DenylistTerms:  prefilter.New().Terms(),
				DenylistResult: models.CategoryGamblingLoan,
			}

			return render(cmd.OutOrStdout(), opts.output, view, func(w io.Writer) {
				fmt.Fprintln(w, "Categories:")
				for _, c := range view.Categories {
					fmt.Fprintf(w, "  %s\n", c)
				}
				fmt.Fprintf(w, "Denylist (%s):\n", view.DenylistResult)
				for _, t := range view.DenylistTerms {
					fmt.Fprintf(w, "  %s\n", t)
				}
			})
		},
	}
}

func setup(deps *Deps, opts *rootOptions) (*config.Config, *zap.Logger, llm.Provider, error) {
	cfg, err := deps.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := deps.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := deps.NewProvider(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, provider, nil
}

func render(w io.Writer, output string, v any, text func(io.Writer)) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use text, json or yaml)", output)
	}
}
