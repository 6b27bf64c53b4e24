package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/bus"
	"github.com/chainwatch/ingestor/internal/common"
	customLogger "github.com/chainwatch/ingestor/internal/log"
	"github.com/chainwatch/ingestor/internal/rpc"
	"github.com/chainwatch/ingestor/internal/worker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <block number|from-to|block hash>...",
	Short: "fetch blocks and publish their transactions",
	Long:  "fetches each block with its full transactions from the configured RPC node and publishes the transactions on the partition's persistence subject. Without a bus the blocks are printed as JSON",
	Args:  cobra.MinimumNArgs(1),
	Run:   RunFetch,
}

var fetchConcurrency int

func init() {
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 8, "How many blocks to fetch in parallel")
}

func RunFetch(cmd *cobra.Command, args []string) {
	partition := common.PartitionConfig{
		Network: config.Cfg.Chain.Network,
		Subnet:  config.Cfg.Chain.Subnet,
		VMType:  config.Cfg.Chain.VMType,
	}
	if err := partition.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid chain configuration")
	}

	var opts []rpc.FetcherOption
	if config.Cfg.RPC.TimeoutMs > 0 {
		opts = append(opts, rpc.WithTimeout(time.Duration(config.Cfg.RPC.TimeoutMs)*time.Millisecond))
	}
	fetcher := rpc.NewFetcher(partition.VMType, opts...)
	defer fetcher.Close()

	var publisher bus.Publisher
	if config.Cfg.Bus.Kind != "" {
		var err error
		publisher, err = bus.NewPublisher(&config.Cfg.Bus)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create publisher")
		}
		defer publisher.Close()
	}

	ids, err := worker.ExpandIdentifiers(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid block identifiers")
	}

	ctx := context.Background()
	encoder := json.NewEncoder(os.Stdout)
	results := worker.NewWorker(fetcher, config.Cfg.RPC.URL, fetchConcurrency).Run(ctx, ids)
	for _, result := range results {
		id, block := result.Identifier, result.Block
		if result.Error != nil {
			log.Fatal().Err(result.Error).Str("block", id).Str("rpc", customLogger.RedactURL(config.Cfg.RPC.URL)).Msg("Failed to fetch block")
		}
		if block == nil {
			log.Warn().Str("block", id).Msg("Block not found")
			continue
		}

		if publisher == nil {
			block.StampTransactions()
			if err := encoder.Encode(block); err != nil {
				log.Fatal().Err(err).Msg("Failed to encode block")
			}
			continue
		}

		n, err := bus.PublishBlock(ctx, publisher, partition, block)
		if err != nil {
			log.Fatal().Err(err).Str("block", id).Msg("Failed to publish block")
		}
		log.Info().Str("block", block.Number).Str("subject", partition.Subject()).Int("tx_count", n).Msg("Published block")
	}
}
