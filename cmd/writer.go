package cmd

import (
	"context"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/orchestrator"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var writerCmd = &cobra.Command{
	Use:   "writer",
	Short: "run the partitioned batch writer",
	Long:  "consumes persistence messages from the bus and writes them into the lake until SIGINT or SIGTERM",
	Run:   RunWriter,
}

func RunWriter(cmd *cobra.Command, args []string) {
	log.Info().Msg("Starting writer")

	o, err := orchestrator.NewOrchestrator(context.Background(), &config.Cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create orchestrator")
	}

	if err := o.Start(); err != nil {
		log.Fatal().Err(err).Msg("Writer stopped with errors")
	}
}
