package cmd

import (
	"context"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/lakedb"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "create the lake catalog and tables",
	Long:  "attaches the configured catalog, creates the transaction and batch tables if they are missing and exits",
	Run:   RunCatalog,
}

func RunCatalog(cmd *cobra.Command, args []string) {
	catalog, err := lakedb.NewCatalog(config.Cfg.Lake, config.Cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid catalog configuration")
	}

	lake := lakedb.NewConnectionManager(lakedb.Options{
		Path:                config.Cfg.Lake.Path,
		Readers:             1,
		CheckpointThreshold: config.Cfg.Lake.CheckpointThreshold,
		MemoryLimit:         config.Cfg.Lake.MemoryLimit,
		Catalog:             catalog,
	})
	if err := lake.Initialize(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize catalog")
	}
	if err := lake.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to close catalog")
	}
	log.Info().Str("catalog", catalog.Name()).Str("kind", string(catalog.Kind())).Msg("Catalog ready")
}
