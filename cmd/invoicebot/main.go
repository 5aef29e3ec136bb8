package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/asamad/invoicebot/internal/batch"
	"github.com/asamad/invoicebot/internal/browser"
	"github.com/asamad/invoicebot/internal/config"
	"github.com/asamad/invoicebot/internal/input"
	"github.com/asamad/invoicebot/internal/logging"
	"github.com/asamad/invoicebot/internal/order"
	"github.com/asamad/invoicebot/internal/portal"
	"github.com/asamad/invoicebot/internal/report"
)

// CLI flags
var (
	inputFlag      string
	sheetIDFlag    string
	sheetRangeFlag string
	credsFlag      string
	outputFlag     string
	outSheetFlag   string
	outRangeFlag   string
	configFlag     string
	envFileFlag    string
	maxPassesFlag  int
	limitFlag      int
	dryRunFlag     bool
	headedFlag     bool
)

// rootCmd is the main Cobra command for the invoicebot CLI.
var rootCmd = &cobra.Command{
	Use:   "invoicebot",
	Short: "Batch-create draft invoices in the Tradeshift document manager",
	Long: `Invoicebot reads purchase-order rows from a CSV file or a Google Sheets
range, drives the Tradeshift web UI through a real browser, and for every
order in RECEIVED state fills the Create Invoice form, attaches the listed
file, previews, and saves a draft.

Orders that are missing, not yet RECEIVED, or whose prefilled amount is
below the row's base amount are skipped and reported. Records that fail are
retried on later passes with a fresh browser session; per-record outcomes
are appended to the results file after every pass.

Credentials come from TRADESHIFT_USERNAME and TRADESHIFT_PASSWORD
(optionally via a .env file).

Examples:
  invoicebot --input data.csv
  invoicebot --input data.csv --dry-run
  invoicebot --sheet-id 1IZw...554 --sheet-range "A1:M100" --credentials service-account.json
  invoicebot --input data.csv --output results.csv --max-passes 5 --headed`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "CSV file with order rows")
	rootCmd.Flags().StringVar(&sheetIDFlag, "sheet-id", "", "Google Sheets spreadsheet ID to read orders from")
	rootCmd.Flags().StringVar(&sheetRangeFlag, "sheet-range", "A1:M1000", "Sheet range including the header row")
	rootCmd.Flags().StringVar(&credsFlag, "credentials", "service-account.json", "Service-account credentials file for Google Sheets")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "results.csv", "CSV file results are appended to")
	rootCmd.Flags().StringVar(&outSheetFlag, "out-sheet-id", "", "Google Sheets spreadsheet ID results are appended to (replaces --output)")
	rootCmd.Flags().StringVar(&outRangeFlag, "out-sheet-range", "Results!A1", "Sheet range results are appended at")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "YAML portal profile (URLs, timeouts, delays)")
	rootCmd.Flags().StringVar(&envFileFlag, "env-file", "", ".env file with portal credentials")
	rootCmd.Flags().IntVar(&maxPassesFlag, "max-passes", 0, "Maximum retry passes over failed records (0 = profile default)")
	rootCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum records to process (0 = unlimited)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Locate and report eligibility without filling any form")
	rootCmd.Flags().BoolVar(&headedFlag, "headed", false, "Run the browser with a visible window")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load(configFlag, envFileFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration invalid")
	}
	if headedFlag {
		cfg.Headless = false
	}
	if maxPassesFlag > 0 {
		cfg.MaxPasses = maxPassesFlag
	}

	runID := uuid.NewString()[:8]
	rl := logging.NewRunLogger(runID).
		Portal("baseURL", cfg.BaseURL).
		Portal("documentManager", cfg.DocumentManager).
		Feature("dryRun", dryRunFlag).
		Feature("headless", cfg.Headless)
	if sheetIDFlag != "" {
		rl.Input("sheet", sheetIDFlag).Input("range", sheetRangeFlag)
	} else {
		rl.Input("csv", inputFlag)
	}
	if outSheetFlag != "" {
		rl.Sink("sheet", outSheetFlag).Sink("range", outRangeFlag)
	} else {
		rl.Sink("csv", outputFlag)
	}
	rl.Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records := loadRecords(ctx)
	if limitFlag > 0 && len(records) > limitFlag {
		records = records[:limitFlag]
	}
	log.Info().Int("records", len(records)).Msg("Input loaded")

	sink := buildSink(ctx)

	factory := func(ctx context.Context) (browser.Driver, error) {
		return browser.NewChrome(ctx, browser.Options{
			Headless:       cfg.Headless,
			DefaultTimeout: cfg.Timeouts.Navigation,
		})
	}
	sessions := portal.NewSessionManager(factory, cfg)

	orch := batch.New(
		sessions,
		portal.NewNavigator(cfg),
		portal.NewLocator(cfg),
		portal.NewFiller(cfg),
		sink,
		batch.Options{
			MaxPasses:     cfg.MaxPasses,
			PassDelay:     cfg.Settles.PassDelay,
			ScreenshotDir: filepath.Join(cfg.ScreenshotDir, runID),
			DryRun:        dryRunFlag,
		},
	)

	start := time.Now()
	summary, err := orch.Run(ctx, records)
	if err != nil {
		printSummary(summary, time.Since(start))
		log.Fatal().Err(err).Msg("Batch aborted")
	}

	printSummary(summary, time.Since(start))
	// Partial record failures still exit 0; the results file carries them.
}

// loadRecords builds the record set from whichever source was selected.
// Empty or invalid input is fatal: exit codes distinguish "nothing to do"
// from "ran with some failures".
func loadRecords(ctx context.Context) []order.Record {
	switch {
	case sheetIDFlag != "":
		svc, err := input.NewSheetsService(ctx, credsFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Sheets client")
		}
		records, err := input.NewSheetSource(svc, sheetIDFlag, sheetRangeFlag).Fetch(ctx)
		if err != nil {
			log.Fatal().Err(err).Str("sheet", sheetIDFlag).Msg("Failed to load orders from sheet")
		}
		return records
	case inputFlag != "":
		records, err := input.ReadCSV(inputFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", inputFlag).Msg("Failed to load orders from CSV")
		}
		return records
	default:
		log.Fatal().Msg("No input given: pass --input or --sheet-id")
		return nil
	}
}

func buildSink(ctx context.Context) report.Sink {
	if outSheetFlag == "" {
		return report.NewCSVSink(outputFlag)
	}
	svc, err := input.NewSheetsService(ctx, credsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Sheets client for results")
	}
	return report.NewSheetsSink(svc, outSheetFlag, outRangeFlag)
}

func printSummary(s report.Summary, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Processing Summary")
	fmt.Println("============================================")
	fmt.Printf("Total records:        %d\n", s.Total)
	fmt.Printf("Successful:           %d\n", s.Success)
	fmt.Printf("With validation errs: %d\n", s.WithErrors)
	fmt.Printf("Skipped:              %d\n", s.Skipped)
	fmt.Printf("Errors:               %d\n", s.Errors)
	fmt.Printf("Elapsed:              %s\n", elapsed.Round(time.Second))
	fmt.Println("--------------------------------------------")
}
