/*
 * Email Extractor - Site Email Discovery
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/phuslu/log"
)

const version = "v2.0"

// cliOptions holds everything parsed from the command line. Zero values
// mean "not given" and leave the configuration untouched.
type cliOptions struct {
	configPath string
	input      string
	column     string
	output     string
	workers    int
	autoTune   bool
	rate       float64
	timeout    int
	yes        bool
	test       string
	serve      bool
	help       bool
	version    bool
}

func main() {
	opts, err := parseCommandLineArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run with --help for usage.")
		os.Exit(2)
	}

	switch {
	case opts.help:
		printHelp()
		return
	case opts.version:
		fmt.Printf("Email Extractor %s\n", version)
		fmt.Println("Author: Dr.Anach")
		fmt.Println("Telegram: @dranach")
		return
	}

	config, err := LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	opts.apply(&config)
	if err := ValidateConfig(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(1)
	}

	logger := NewLogger(config, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.AutoTune {
		tuned, perf, err := OptimizeConfig(ctx, config)
		if err != nil {
			logger.Warn().Err(err).Msg("auto-tune failed, keeping configured workers and rate")
		} else {
			config = tuned
			logger.Info().
				Int("cpu_cores", perf.CPUCores).
				Uint64("available_mb", perf.AvailableMemoryMB).
				Dur("latency", perf.NetworkLatency).
				Int("workers", config.Workers).
				Float64("rate", config.RateLimitPerSecond).
				Msg("auto-tuned")
		}
	}

	switch {
	case opts.test != "":
		TestDomain(ctx, config, logger, opts.test)
	case opts.serve:
		if err := runServer(ctx, config, logger); err != nil {
			logger.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
	default:
		if opts.input == "" {
			fmt.Fprintln(os.Stderr, "Error: no input given (sites file, CSV file or Google Sheet URL)")
			fmt.Fprintln(os.Stderr, "Run with --help for usage.")
			os.Exit(2)
		}
		if err := runExtraction(ctx, config, logger, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// newDiscoverer wires the fetch, extract and cleanup stages for one run.
func newDiscoverer(config Config, logger *log.Logger) *SiteDiscoverer {
	var verify MXVerifier
	if config.VerifyMX {
		verify = hasMailHost
	}
	return NewSiteDiscoverer(NewPageFetcher(config, logger), config.Lists(), verify, logger)
}

func runExtraction(ctx context.Context, config Config, logger *log.Logger, opts cliOptions) error {
	sites, err := LoadSites(ctx, opts.input, opts.column, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to load sites: %w", err)
	}

	output := opts.output
	if output == "" {
		output = "output/emails.csv"
	}

	if !DisplaySummaryWithConfirmation(config, opts.input, output, len(sites), opts.yes) {
		fmt.Println("Operation aborted by the user.")
		return nil
	}

	runner := NewRunner(newDiscoverer(config, logger), config.Workers, logger)
	bar := NewProgressBar(os.Stdout, 500*time.Millisecond)

	start := time.Now()
	rows := runner.Run(ctx, sites, bar.Update)
	bar.Finish()

	if err := SaveResultsCSV(output, rows); err != nil {
		return err
	}
	printResultSummary(rows, output, time.Since(start))
	return nil
}

// DisplaySummaryWithConfirmation prints the run settings and asks before
// starting unless skipConfirmation is set.
func DisplaySummaryWithConfirmation(config Config, input, output string, total int, skipConfirmation bool) bool {
	fmt.Println("------- Configuration Summary -------")
	fmt.Printf("Input: %s\n", input)
	fmt.Printf("Output File: %s\n", output)
	fmt.Printf("Workers: %d\n", config.Workers)
	fmt.Printf("Timeout: %d seconds\n", config.Timeout)
	fmt.Printf("Rate Limit Per Second: %.2f\n", config.RateLimitPerSecond)
	fmt.Printf("Contact Paths: %d\n", len(config.ContactPages))
	fmt.Printf("MX Verification: %t\n", config.VerifyMX)
	fmt.Printf("Total Sites to Process: %d\n", total)
	fmt.Println("-------------------------------------")

	if skipConfirmation {
		fmt.Println("Auto-confirming (--yes flag set)...")
		return true
	}

	fmt.Print("Do you want to continue? (y/n): ")
	var response string
	fmt.Scanln(&response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

func printResultSummary(rows []ResultRow, output string, elapsed time.Duration) {
	sites := make(map[string]bool)
	withEmails := make(map[string]bool)
	emails := 0
	for _, r := range rows {
		sites[r.Site] = true
		if r.Email != "" {
			emails++
			withEmails[r.Site] = true
		}
	}

	fmt.Println()
	color.New(color.Bold).Println("Extraction complete.")
	fmt.Printf("  Sites processed:   %d\n", len(sites))
	fmt.Printf("  Sites with emails: %s\n", color.GreenString("%d", len(withEmails)))
	fmt.Printf("  Sites without:     %s\n", color.YellowString("%d", len(sites)-len(withEmails)))
	fmt.Printf("  Emails found:      %s\n", color.GreenString("%d", emails))
	fmt.Printf("  Elapsed:           %s\n", formatDuration(elapsed))
	fmt.Printf("  Results saved to:  %s\n", color.CyanString(output))
}

// TestDomain runs discovery for a single site and prints what each page yielded.
func TestDomain(ctx context.Context, config Config, logger *log.Logger, domainOrURL string) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("EMAIL EXTRACTION TEST MODE")
	fmt.Println(strings.Repeat("=", 80))

	baseURL := NormalizeSiteURL(domainOrURL)
	fmt.Printf("\n📍 Testing Site: %s\n", baseURL)
	if domain := RegistrableDomain(baseURL); domain != "" {
		fmt.Printf("📍 Registrable Domain: %s\n", domain)
	} else {
		fmt.Printf("📍 Registrable Domain: %s\n", color.YellowString("unresolved (no prioritization)"))
	}
	fmt.Println(strings.Repeat("-", 80))

	start := time.Now()
	result := newDiscoverer(config, logger).Discover(ctx, domainOrURL)

	fmt.Printf("\n🔍 Pages visited: %d fetched, %d failed\n", result.PagesFetched, result.PagesFailed)
	for _, page := range result.Pages {
		kind := "home"
		if page.Contact {
			kind = "contact"
		}
		switch {
		case page.Err != nil:
			fmt.Printf("   ❌ [%-7s] %s\n", kind, page.URL)
			fmt.Printf("      %v\n", page.Err)
		case page.Challenge:
			fmt.Printf("   🔒 [%-7s] %s (challenge page, %d candidates)\n", kind, page.URL, page.Candidates)
		default:
			fmt.Printf("   ✅ [%-7s] %s (%d candidates)\n", kind, page.URL, page.Candidates)
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	if len(result.Emails) == 0 {
		fmt.Println(color.YellowString("📭 No emails found"))
	} else {
		fmt.Printf("📧 %d email(s) found:\n", len(result.Emails))
		for i, email := range result.Emails {
			_, emailDomain := splitEmail(email)
			marker := " "
			if domainMatches(emailDomain, result.Domain) {
				marker = color.GreenString("*")
			}
			fmt.Printf("   %2d. %s %s\n", i+1, marker, email)
		}
	}
	fmt.Printf("\n⏱️  Completed in %s\n", formatDuration(time.Since(start)))
}

func runServer(ctx context.Context, config Config, logger *log.Logger) error {
	db, err := OpenJobDB(config.DBPath)
	if err != nil {
		return err
	}

	runner := NewRunner(newDiscoverer(config, logger), config.Workers, logger)
	store, err := NewJobStore(db, runner, config.BatchSize, config.JobsPerTick, logger)
	if err != nil {
		db.Close()
		return err
	}
	defer store.Close()

	server := NewServer(ctx, store, logger)
	if err := server.StartScheduler(config.BatchInterval); err != nil {
		return err
	}
	return server.Serve(ctx, config.ListenAddr)
}

// parseCommandLineArgs parses command line arguments
func parseCommandLineArgs(args []string) (cliOptions, error) {
	var opts cliOptions

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--help", "-h":
			opts.help = true
		case "--version", "-v":
			opts.version = true
		case "--yes", "-y":
			opts.yes = true
		case "serve":
			opts.serve = true
		case "--test", "-t":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.test = v
			i++
		case "--config":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.configPath = v
			i++
		case "--output":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.output = v
			i++
		case "--column":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.column = v
			i++
		case "--workers":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			if v == "auto" {
				opts.autoTune = true
			} else {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 {
					return opts, fmt.Errorf("--workers expects a positive number or \"auto\", got %q", v)
				}
				opts.workers = n
			}
			i++
		case "--rate":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			r, err := strconv.ParseFloat(v, 64)
			if err != nil || r <= 0 {
				return opts, fmt.Errorf("--rate expects a positive number, got %q", v)
			}
			opts.rate = r
			i++
		case "--timeout":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			t, err := strconv.Atoi(v)
			if err != nil || t < 1 {
				return opts, fmt.Errorf("--timeout expects a positive number of seconds, got %q", v)
			}
			opts.timeout = t
			i++
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown option %s", arg)
			}
			// If it's not a flag, treat as the input source
			if opts.input == "" {
				opts.input = arg
			} else if opts.output == "" {
				opts.output = arg
			}
		}
	}

	if opts.configPath == "" {
		opts.configPath = "config.json"
	}
	return opts, nil
}

// apply layers command line values over the loaded configuration.
func (o cliOptions) apply(config *Config) {
	if o.workers > 0 {
		config.Workers = o.workers
	}
	if o.autoTune {
		config.AutoTune = true
	}
	if o.rate > 0 {
		config.RateLimitPerSecond = o.rate
	}
	if o.timeout > 0 {
		config.Timeout = o.timeout
	}
}

// printHelp displays the help information
func printHelp() {
	fmt.Printf(`
Email Extractor %s - Site Email Discovery

USAGE:
    emailx [OPTIONS] <sites.txt | sites.csv | google-sheet-url> [output.csv]
    emailx --test <domain_or_url>
    emailx serve [--config <file>]

ARGUMENTS:
    sites.txt          One site per line (bare host or full URL)
    sites.csv          CSV file; pick the column with --column
    google-sheet-url   Shared Google Sheet link, read as CSV
    output.csv         Where to write Website,Email rows (default: output/emails.csv)

OPTIONS:
    --config <file>         Load configuration from a .json or .toml file (default: config.json)
    --workers <n|auto>      Sites processed in parallel (default: 1); auto sizes from the machine
    --rate <number>         Max requests per second across all workers (default: 20)
    --timeout <seconds>     Per-page timeout (default: 15)
    --column <name>         CSV / sheet column holding the sites (default: first column)
    --output <file>         Output CSV path
    --yes, -y               Skip confirmation prompt
    --test, -t <domain>     Run discovery on a single site and show per-page details
    --help, -h              Show this help message
    --version, -v           Show version information

COMMANDS:
    serve                   Start the job API (see listen_addr, db_path, batch_interval)

ENVIRONMENT:
    EMAILX_TIMEOUT, EMAILX_RATE, EMAILX_WORKERS, EMAILX_USER_AGENT, EMAILX_LOG_LEVEL,
    EMAILX_LOG_FORMAT, EMAILX_DB_PATH, EMAILX_LISTEN_ADDR, EMAILX_VERIFY_MX
    A .env file in the working directory is loaded first.

EXAMPLES:
    emailx sites.txt
    emailx --workers 8 --rate 10 sites.csv --column Website results.csv
    emailx --yes "https://docs.google.com/spreadsheets/d/<id>/edit" --column URL
    emailx --test example.com
    emailx serve --config config.toml
`, version)
}
