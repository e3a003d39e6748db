package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/justinlietz93/repoparser/internal/crawler"
	"github.com/justinlietz93/repoparser/internal/fileio"
	"github.com/justinlietz93/repoparser/internal/ignore"
	"github.com/justinlietz93/repoparser/internal/language"
	"github.com/justinlietz93/repoparser/internal/overview"
	"github.com/justinlietz93/repoparser/internal/source"
	"github.com/justinlietz93/repoparser/internal/tokens"
)

var (
	// Filtering
	extraIgnoreDirs  []string
	extraIgnoreFiles []string
	noIgnore         bool
	maxSizeBytes     int64
	maxDirEntries    int

	// Token counting
	disableTokens  bool
	tokenizerType  string
	tokenizerModel string
	tokenizerFile  string
	costModels     []string

	// Output
	outputFile      string
	copyToClipboard bool
	pdfOutputFile   string
	treeOnly        bool

	// Input selection
	interactiveMode bool
	linkDepth       int

	languagesFile string
	verbose       bool
)

// version is set via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "repoparser [PATH | GIT_URL | HTTP_URL]",
	Short: "repoparser analyzes a repository and produces an LLM-ready overview document.",
	Long: `repoparser walks a local directory (or a cloned git repository, or a
fetched web page), applies the configured ignore patterns, counts
tokens per file and renders the result as a nested overview document
with per-model cost estimates.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    run,
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	logger, err := buildLogger(verbose)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	input := "."
	if len(args) == 1 {
		input = args[0]
	}
	if interactiveMode {
		picked, err := pickRootDirectory()
		if err != nil {
			return err
		}
		if picked == "" {
			return nil // selection aborted
		}
		input = picked
	}

	counter := buildCounter(logger)
	if counter != nil {
		defer counter.Close()
	}

	pricing, err := buildPricing()
	if err != nil {
		return err
	}

	var tree *crawler.Node
	var crawlErrs []crawler.AnalysisError

	switch {
	case source.IsWebURL(input):
		pages, err := source.FetchPages(ctx, input, linkDepth, logger)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return fmt.Errorf("no content could be fetched from %s", input)
		}
		tree = webTree(pages)

	default:
		root := input
		if source.IsGitURL(input) {
			dir, cleanup, err := source.CloneRepo(ctx, input, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			root = dir
		}

		tree, crawlErrs, err = crawlRoot(ctx, root, logger)
		if errors.Is(err, crawler.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Warning: crawl cancelled, rendering partial results.")
		} else if err != nil {
			return err
		}
	}

	doc, report, err := overview.Render(tree, overview.Options{
		Counter: counter,
		Pricing: pricing,
		Models:  costModels,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	for _, e := range crawlErrs {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", e.Error())
	}
	printSummary(tree, report)

	output := doc
	if treeOnly {
		output = overview.TreeString(tree)
	}

	switch {
	case pdfOutputFile != "":
		if err := overview.WritePDF(tree, report, pdfOutputFile); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Output saved to %s\n", pdfOutputFile)
	case outputFile != "":
		if err := os.WriteFile(outputFile, []byte(output), 0o644); err != nil {
			return fmt.Errorf("writing output to %s: %w", outputFile, err)
		}
		fmt.Fprintf(os.Stderr, "Output saved to %s\n", outputFile)
	case copyToClipboard:
		if err := clipboard.WriteAll(output); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: clipboard write failed (%v), printing to stdout.\n", err)
			fmt.Println(output)
		} else {
			fmt.Fprintln(os.Stderr, "Output copied to clipboard.")
		}
	default:
		fmt.Println(output)
	}
	return nil
}

// crawlRoot assembles crawl options from config and flags and runs the
// traversal.
func crawlRoot(ctx context.Context, root string, logger *zap.Logger) (*crawler.Node, []crawler.AnalysisError, error) {
	// The gitignore matcher relativizes against its base path, so the
	// base has to agree with the absolute paths the crawler walks.
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	dirs := append(viper.GetStringSlice("ignore.directories"), extraIgnoreDirs...)
	files := append(viper.GetStringSlice("ignore.files"), extraIgnoreFiles...)
	rules := ignore.NewRuleSet(dirs, files)

	var matcher gitignore.IgnoreMatcher
	if !noIgnore {
		gitignorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			m, err := gitignore.NewGitIgnore(gitignorePath)
			if err != nil {
				logger.Warn("could not parse .gitignore", zap.String("path", gitignorePath), zap.Error(err))
			} else {
				matcher = m
			}
		}
	}

	langs, err := buildLanguages(logger)
	if err != nil {
		return nil, nil, err
	}

	return crawler.Crawl(ctx, root, crawler.Options{
		Rules:         rules,
		Reader:        fileio.NewReader(maxSizeBytes, logger),
		Langs:         langs,
		Gitignore:     matcher,
		MaxFileSize:   maxSizeBytes,
		MaxDirEntries: maxDirEntries,
		Logger:        logger,
	})
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// buildCounter initializes the tokenizer; failures disable token
// counting rather than aborting the run.
func buildCounter(logger *zap.Logger) tokens.Counter {
	if disableTokens {
		return nil
	}
	counter, err := tokens.NewCounter(tokens.Config{
		Scheme:        tokens.Scheme(tokenizerType),
		Model:         tokenizerModel,
		TokenizerFile: tokenizerFile,
		Logger:        logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tokenizer unavailable (%v), token counting disabled.\n", err)
		return nil
	}
	return counter
}

// buildPricing merges config-file pricing overrides over the built-in
// table and validates the requested cost models against it.
func buildPricing() (tokens.PricingTable, error) {
	pricing := tokens.DefaultPricing()

	var overrides map[string]struct {
		Input  float64 `mapstructure:"input"`
		Output float64 `mapstructure:"output"`
	}
	if err := viper.UnmarshalKey("pricing", &overrides); err != nil {
		return nil, fmt.Errorf("invalid pricing configuration: %w", err)
	}
	for model, p := range overrides {
		pricing[model] = tokens.ModelPricing{Input: p.Input, Output: p.Output}
	}

	for _, model := range costModels {
		if _, ok := pricing[model]; !ok {
			return nil, fmt.Errorf("%w: %q (known models: %s)",
				tokens.ErrUnknownModel, model, strings.Join(pricing.Models(), ", "))
		}
	}
	return pricing, nil
}

func buildLanguages(logger *zap.Logger) (*language.Map, error) {
	if languagesFile == "" {
		return language.Default(), nil
	}
	langs, err := language.LoadYAML(languagesFile)
	if err != nil {
		logger.Warn("could not load language definitions, using built-ins", zap.Error(err))
		return language.Default(), nil
	}
	return langs, nil
}

// webTree arranges fetched pages as file nodes under a synthetic root
// so they flow through the same serializer as local trees.
func webTree(pages []source.PageDoc) *crawler.Node {
	root := &crawler.Node{
		Path:    "web",
		RelPath: ".",
		Name:    "web",
		Kind:    crawler.KindDirectory,
	}
	for _, page := range pages {
		name := pageFileName(page.URL)
		root.Children = append(root.Children, &crawler.Node{
			Path:     page.URL,
			RelPath:  name,
			Name:     name,
			Kind:     crawler.KindFile,
			Language: "Markdown",
			Size:     int64(len(page.Markdown)),
			Content:  page.Markdown,
		})
	}
	sort.Slice(root.Children, func(i, j int) bool {
		return root.Children[i].Name < root.Children[j].Name
	})
	return root
}

var pageNameReplacer = strings.NewReplacer("://", "_", "/", "_", "?", "_", "&", "_", "=", "_", "#", "_")

func pageFileName(url string) string {
	return strings.Trim(pageNameReplacer.Replace(url), "_") + ".md"
}

func printSummary(tree *crawler.Node, report *overview.TokenReport) {
	var totalSize int64
	tree.Walk(func(n *crawler.Node) {
		if !n.IsDir() {
			totalSize += n.Size
		}
	})

	fmt.Fprintf(os.Stderr, "Analyzed %d files in %d directories (%s).\n",
		report.TotalFiles, report.TotalDirs, humanize.Bytes(uint64(totalSize)))
	if report.TotalTokens > 0 {
		fmt.Fprintf(os.Stderr, "Total tokens: %s\n", humanize.Comma(int64(report.TotalTokens)))
	}
	for _, model := range costModels {
		est := report.Costs[model]
		fmt.Fprintf(os.Stderr, "Estimated cost (%s): input $%.4f / output $%.4f\n", model, est.Input, est.Output)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Filtering
	rootCmd.Flags().StringSliceVar(&extraIgnoreDirs, "ignore-dir", nil, "Additional directory patterns to ignore (repeatable)")
	rootCmd.Flags().StringSliceVar(&extraIgnoreFiles, "ignore-file", nil, "Additional file patterns to ignore (repeatable)")
	rootCmd.Flags().BoolVar(&noIgnore, "no-ignore", false, "Don't respect the repository's .gitignore")
	viper.BindPFlag("no_ignore", rootCmd.Flags().Lookup("no-ignore"))
	rootCmd.Flags().Int64VarP(&maxSizeBytes, "max-size", "s", 10*1024*1024, "Maximum file size in bytes to load content for (0 for no limit)")
	viper.BindPFlag("max_size", rootCmd.Flags().Lookup("max-size"))
	rootCmd.Flags().IntVar(&maxDirEntries, "max-entries", 0, "Warn on directories with more entries than this (0 for no limit)")
	viper.BindPFlag("max_entries", rootCmd.Flags().Lookup("max-entries"))

	// Token counting
	rootCmd.Flags().BoolVar(&disableTokens, "no-tokens", false, "Disable token counting")
	viper.BindPFlag("no_tokens", rootCmd.Flags().Lookup("no-tokens"))
	rootCmd.Flags().StringVar(&tokenizerType, "scheme", "tiktoken", "Tokenizer scheme: tiktoken, huggingface or heuristic")
	viper.BindPFlag("scheme", rootCmd.Flags().Lookup("scheme"))
	rootCmd.Flags().StringVar(&tokenizerModel, "model", "", "Model name for the tokenizer (e.g. gpt-4o, gpt2)")
	viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))
	rootCmd.Flags().StringVar(&tokenizerFile, "tokenizer-file", "", "Path to a local tokenizer file (huggingface scheme)")
	viper.BindPFlag("tokenizer_file", rootCmd.Flags().Lookup("tokenizer-file"))
	rootCmd.Flags().StringSliceVar(&costModels, "cost-model", []string{"gpt-4o"}, "Pricing models for the cost summary (repeatable)")
	viper.BindPFlag("cost_models", rootCmd.Flags().Lookup("cost-model"))

	// Output
	rootCmd.Flags().StringVarP(&outputFile, "file", "f", "", "Save output to the specified file")
	viper.BindPFlag("file", rootCmd.Flags().Lookup("file"))
	rootCmd.Flags().BoolVarP(&copyToClipboard, "clipboard", "c", false, "Copy output to the clipboard")
	viper.BindPFlag("clipboard", rootCmd.Flags().Lookup("clipboard"))
	rootCmd.Flags().StringVar(&pdfOutputFile, "pdf", "", "Save output as a PDF")
	viper.BindPFlag("pdf", rootCmd.Flags().Lookup("pdf"))
	rootCmd.Flags().BoolVar(&treeOnly, "tree", false, "Print the tree listing instead of the overview document")
	viper.BindPFlag("tree", rootCmd.Flags().Lookup("tree"))

	// Input selection
	rootCmd.Flags().BoolVar(&interactiveMode, "interactive", false, "Pick the root directory interactively")
	viper.BindPFlag("interactive", rootCmd.Flags().Lookup("interactive"))
	rootCmd.Flags().IntVar(&linkDepth, "link-depth", 0, "Maximum depth to follow links when analyzing a web URL")
	viper.BindPFlag("link_depth", rootCmd.Flags().Lookup("link-depth"))

	rootCmd.Flags().StringVar(&languagesFile, "languages", "", "Path to a languages.yml overriding the built-in language map")
	viper.BindPFlag("languages", rootCmd.Flags().Lookup("languages"))
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))

	viper.SetDefault("ignore.directories", []string{
		".git",
		"node_modules",
		"__pycache__",
		"vendor",
		"target",
		"dist",
	})
	viper.SetDefault("ignore.files", []string{
		"*.pyc",
		"*.log",
		".env",
		"*.min.js",
	})
}

// initConfig reads the config file and environment variables.
func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "repoparser"))
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.SetEnvPrefix("REPOPARSER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
