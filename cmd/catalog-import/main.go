// Command catalog-import seeds the device catalog from an .xlsx workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/config"
	"github.com/garyjia/claims-fulfillment/internal/container"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/catalog"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/repository"
	"github.com/garyjia/claims-fulfillment/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	workbook := flag.String("file", "", "path to the .xlsx catalog (header: model_name, device_category)")
	flag.Parse()

	if *workbook == "" {
		fmt.Fprintln(os.Stderr, "usage: catalog-import -file catalog.xlsx [-config configs/config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     "console",
		Service:    "catalog-import",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, *workbook, logger); err != nil {
		logger.Fatal("Catalog import failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) error {
	rows, err := catalog.ReadWorkbook(path)
	if err != nil {
		return err
	}
	logger.Info("Workbook read", zap.String("file", path), zap.Int("rows", len(rows)))

	bundle, err := container.ProvideDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer bundle.DB.Close()

	// All rows land or none do
	repo := repository.NewDeviceCatalogRepository(bundle.DB.DB, logger)
	var result *catalog.Result
	err = bundle.TransactionMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		var importErr error
		result, importErr = catalog.Import(txCtx, repo, rows, logger)
		return importErr
	})
	if err != nil {
		return err
	}

	logger.Info("Catalog import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("unmapped", result.Unmapped))
	return nil
}
