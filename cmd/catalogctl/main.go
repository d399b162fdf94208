// catalogctl runs the operator batch jobs: seeding the catalog from the
// hand-authored markdown document, and backfilling metadata extracted
// from the workflow definition JSON files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"flowstore/backend/internal/config"
	"flowstore/backend/internal/ingest"
	"flowstore/backend/internal/logging"
	"flowstore/backend/internal/repository"
)

func main() {
	logger := logging.NewLogger()

	var opts ingest.Options

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Workflow catalog ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&opts.OverwriteDescription, "overwrite-description", false,
		"replace stored descriptions with computed ones")
	rootCmd.PersistentFlags().BoolVar(&opts.OverwriteInstructions, "overwrite-instructions", false,
		"replace stored instructions with computed ones")
	rootCmd.PersistentFlags().BoolVar(&opts.OverwriteIntegrations, "overwrite-integrations", false,
		"replace stored integrations with computed ones")

	var catalogPath string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse the catalog markdown and upsert categories and workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(catalogPath)
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			return withEngine(cmd.Context(), logger, func(ctx context.Context, engine *ingest.Engine) error {
				report, err := engine.SeedCatalog(ctx, source, opts)
				if err != nil {
					return err
				}
				fmt.Println(report)
				return nil
			})
		},
	}
	ingestCmd.Flags().StringVar(&catalogPath, "catalog", "catalog.md", "path to the catalog markdown document")
	ingestCmd.Flags().BoolVar(&opts.PruneMissing, "prune-missing", false,
		"deactivate stored workflows absent from the catalog document")

	var workflowDir string
	enrichCmd := &cobra.Command{
		Use:   "enrich",
		Short: "Extract metadata from workflow JSON files and backfill stored rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), logger, func(ctx context.Context, engine *ingest.Engine) error {
				report, err := engine.EnrichFromDir(ctx, workflowDir, opts)
				if err != nil {
					return err
				}
				fmt.Println(report)
				return nil
			})
		},
	}
	enrichCmd.Flags().StringVar(&workflowDir, "dir", "workflows", "directory of workflow definition JSON files")

	rootCmd.AddCommand(ingestCmd, enrichCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// withEngine loads config, connects the pool, applies the schema, and
// hands a ready Engine to the run.
func withEngine(ctx context.Context, logger *logging.Logger, run func(context.Context, *ingest.Engine) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	engine := ingest.NewEngine(store, logger, cfg.Catalog.DefaultPriceCents, cfg.Catalog.Currency)
	return run(ctx, engine)
}
