package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	flagYes    bool
)

var rootCmd = &cobra.Command{
	Use:   "notion2pg-bulk [config.toml]",
	Short: "Notion workspace to PostgreSQL bulk migration tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to migration TOML config file")
	rootCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigration(cmd *cobra.Command, args []string) error {
	// Resolve config path: positional arg takes precedence over --config flag
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: notion2pg-bulk <config.toml> or notion2pg-bulk --config <config.toml>")
	}

	// .env is optional; real environment variables win either way
	godotenv.Load()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if flagYes {
		cfg.Yes = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	log.Printf("notion2pg-bulk: Notion workspace → PostgreSQL migration")
	log.Printf("config: schema=%s on_schema_exists=%s requests_per_second=%g page_size=%d extract_content=%t",
		cfg.Schema, cfg.OnSchemaExists, cfg.RequestsPerSecond, cfg.PageSize, cfg.ExtractContent)

	log.Printf("connecting to PostgreSQL...")
	pool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	engine := newLoadEngine(cfg, newNotionClient(cfg.Notion, cfg.PageSize), pool)
	engine.confirm = promptConfirmation

	summary, err := engine.Run(ctx)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("migration failed for all %d databases", len(summary.Outcomes))
	}

	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// promptConfirmation asks for an explicit go-ahead after the plan printout.
func promptConfirmation() bool {
	fmt.Fprint(os.Stderr, "\nProceed with migration? (y/N): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printSummary(summary *RunSummary) {
	if len(summary.Outcomes) == 0 {
		return
	}
	log.Printf("migration summary:")
	for _, o := range summary.Outcomes {
		switch {
		case o.Err != nil:
			log.Printf("  %-8s %s → %s: %v", o.Status(), o.Database, o.Table, o.Err)
		default:
			log.Printf("  %-8s %s → %s: %d records, %d warnings", o.Status(), o.Database, o.Table, o.Records, len(o.Warnings))
		}
		for _, w := range o.Warnings {
			log.Printf("    WARN: %s", w)
		}
	}
	log.Printf("  relation backfill: %d rows updated", summary.Backfill)
}
