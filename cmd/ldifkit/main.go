package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldifkit/ldifkit/internal/processor"
	"github.com/ldifkit/ldifkit/internal/schema"
	"github.com/ldifkit/ldifkit/pkg/config"
	"github.com/ldifkit/ldifkit/pkg/crypto"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ldifkit",
	Short: "LDIFKit - parse, validate and rewrite LDIF files",
	Long: "A batch processor for LDIF files: parsing with per-record diagnostics,\n" +
		"schema validation against configurable object-class rules, and canonical\n" +
		"rewriting with line folding and base64 encoding.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	validateRules    string
	validateStrict   bool
	validateFailFast bool
	validateUnique   bool
	validateParents  bool

	convertOutput   string
	convertWrap     int
	convertVersion1 bool
	convertFilter   string
	convertClass    string
	convertPersons  bool
	convertSort     bool
	convertHashPw   bool
)

func init() {
	validateCmd.Flags().StringVar(&validateRules, "rules", "", "YAML rule-set file (default: built-in standard classes)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "reject attributes outside the allowed set of the asserted classes")
	validateCmd.Flags().BoolVar(&validateFailFast, "fail-fast", false, "stop at the first invalid entry")
	validateCmd.Flags().BoolVar(&validateUnique, "unique", true, "require DNs to be unique across the document")
	validateCmd.Flags().BoolVar(&validateParents, "parents", false, "require the parent of every non-root entry to exist in the document")

	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default: stdout)")
	convertCmd.Flags().IntVar(&convertWrap, "wrap", 76, "fold column for output lines, negative disables folding")
	convertCmd.Flags().BoolVar(&convertVersion1, "version1", false, "open the output with a version: 1 line")
	convertCmd.Flags().StringVar(&convertFilter, "filter", "", "keep only entries matching an LDAP filter, e.g. (objectClass=person)")
	convertCmd.Flags().StringVar(&convertClass, "class", "", "keep only entries asserting this objectClass")
	convertCmd.Flags().BoolVar(&convertPersons, "persons", false, "keep only person entries")
	convertCmd.Flags().BoolVar(&convertSort, "sort", false, "order entries hierarchically, parents first")
	convertCmd.Flags().BoolVar(&convertHashPw, "hash-passwords", false, "replace plaintext userPassword values with argon2id hashes")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the environment configuration and installs the logger.
func setup() *config.Config {
	cfg := config.Load()
	initLogging(cfg)
	cfg.Print()
	return cfg
}

func initLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseInput parses path, with "-" meaning stdin.
func parseInput(proc *processor.Processor, path string) (*processor.ParseResult, error) {
	if path == "-" {
		return proc.Parse(os.Stdin)
	}
	return proc.ParseFile(path)
}

// reportDiagnostics surfaces parse warnings and per-record failures.
func reportDiagnostics(res *processor.ParseResult) {
	for _, w := range res.Warnings {
		slog.Warn("parse warning", "line", w.Line, "message", w.Message)
	}
	for _, f := range res.Failures {
		fmt.Fprintln(os.Stderr, f)
	}
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse an LDIF file and report diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runParse(args[0])
	},
}

func runParse(path string) error {
	cfg := setup()
	proc := processor.New(cfg)

	res, err := parseInput(proc, path)
	if err != nil {
		return err
	}
	reportDiagnostics(res)

	fmt.Printf("%d records parsed (%d entries, %d change records), %d failed\n",
		len(res.Records), len(res.Entries()), len(res.Changes()), len(res.Failures))

	if !res.OK() {
		return fmt.Errorf("%d of %d records failed to parse",
			len(res.Failures), len(res.Records)+len(res.Failures))
	}
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate LDIF entries against object-class rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(args[0])
	},
}

func runValidate(path string) error {
	cfg := setup()

	rules := schema.DefaultRuleSet()
	if validateRules != "" {
		loaded, err := schema.LoadRuleSet(validateRules)
		if err != nil {
			return err
		}
		rules = loaded
	}
	if validateStrict || cfg.Processing.StrictValidation {
		rules.Strict = true
	}

	proc := processor.New(cfg)
	proc.SetFailFast(validateFailFast)

	res, err := parseInput(proc, path)
	if err != nil {
		return err
	}
	reportDiagnostics(res)

	entries := res.Entries()
	if skipped := len(res.Changes()); skipped > 0 {
		slog.Info("change records are not validated", "count", skipped)
	}

	v := proc.NewValidator(rules)
	v.SetUniqueDNs(validateUnique)
	v.SetRequireParents(validateParents)
	report := v.ValidateAll(entries)

	for _, r := range report.Results {
		for _, violation := range r.Violations {
			fmt.Fprintf(os.Stderr, "[%d] %v\n", r.Index, violation)
		}
	}
	fmt.Println(report.Summary())

	if !res.OK() {
		return fmt.Errorf("%d records failed to parse", len(res.Failures))
	}
	if !report.Valid() {
		return fmt.Errorf("validation failed: %s", report.Summary())
	}
	return nil
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Rewrite an LDIF file in canonical form, optionally filtered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args[0])
	},
}

func runConvert(cmd *cobra.Command, path string) error {
	cfg := setup()
	if cmd.Flags().Changed("wrap") {
		cfg.Output.WrapWidth = convertWrap
	}
	if convertVersion1 {
		cfg.Output.WriteVersion = true
	}

	proc := processor.New(cfg)
	res, err := parseInput(proc, path)
	if err != nil {
		return err
	}
	reportDiagnostics(res)
	if !res.OK() {
		return fmt.Errorf("%d records failed to parse", len(res.Failures))
	}

	records := res.Records
	if entryOpsRequested() {
		entries := res.Entries()
		if dropped := len(res.Changes()); dropped > 0 {
			slog.Warn("entry operations drop change records", "count", dropped)
		}

		if convertFilter != "" {
			entries, err = proc.FilterMatch(entries, convertFilter)
			if err != nil {
				return err
			}
		}
		if convertClass != "" {
			entries = proc.FilterByClass(entries, convertClass)
		}
		if convertPersons {
			entries = proc.FilterPersons(entries)
		}
		if convertHashPw {
			hasher := crypto.NewPasswordHasher(cfg.Security.Argon2Config)
			var failures []error
			entries, failures = proc.Transform(entries, processor.HashPasswords(hasher))
			for _, f := range failures {
				fmt.Fprintln(os.Stderr, f)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d entries failed password hashing", len(failures))
			}
		}
		if convertSort {
			entries = proc.SortHierarchical(entries)
		}
		records = processor.Records(entries)
	}

	if convertOutput == "" || convertOutput == "-" {
		return proc.WriteTo(os.Stdout, records)
	}

	f, err := os.OpenFile(convertOutput, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := proc.WriteTo(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("conversion complete", "records", len(records), "output", convertOutput)
	return nil
}

func entryOpsRequested() bool {
	return convertFilter != "" || convertClass != "" || convertPersons ||
		convertSort || convertHashPw
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ldifkit version %s (commit: %s)\n", version, commit)
	},
}
