package cmd

import (
	"os"

	configs "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/env"
	customLogger "github.com/chainwatch/ingestor/internal/log"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   "ingestor",
		Short: "Chain transaction ingestion into a partitioned data lake",
		Long:  "Fetches blocks from chain RPC nodes, publishes their transactions on a message bus and writes them into a DuckDB/DuckLake catalog in per-partition batches",
		Run: func(cmd *cobra.Command, args []string) {
			RunWriter(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().String("rpc-url", "", "RPC Url to fetch blocks from")
	rootCmd.PersistentFlags().Int("rpc-timeout", 0, "Timeout of a single RPC call in milliseconds")
	rootCmd.PersistentFlags().String("chain-network", "", "Network of the partition to fetch for")
	rootCmd.PersistentFlags().String("chain-subnet", "", "Subnet of the partition to fetch for")
	rootCmd.PersistentFlags().String("chain-vm-type", "evm", "VM type of the partition to fetch for")
	rootCmd.PersistentFlags().Int("writer-batch-size", 0, "How many transactions a partition buffers before flushing")
	rootCmd.PersistentFlags().Int("writer-flush-interval", 0, "How often to flush all partitions in milliseconds")
	rootCmd.PersistentFlags().Int("writer-shutdown-timeout", 0, "How long the final flush may take in milliseconds")
	rootCmd.PersistentFlags().Int("writer-flush-concurrency", 0, "How many partitions are flushed in parallel")
	rootCmd.PersistentFlags().String("lake-path", "", "DuckDB database file, in memory when empty")
	rootCmd.PersistentFlags().Int("lake-readers", 0, "How many idle reader connections to keep")
	rootCmd.PersistentFlags().String("lake-catalog-kind", "", "Catalog kind: local, ducklake_file or ducklake_postgres")
	rootCmd.PersistentFlags().String("lake-catalog-path", "", "Catalog database or DuckLake metadata path")
	rootCmd.PersistentFlags().String("lake-catalog-data-path", "", "DuckLake data path")
	rootCmd.PersistentFlags().Bool("s3-enabled", false, "Archive every batch as parquet to S3")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for archived batches")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 compatible endpoint")
	rootCmd.PersistentFlags().String("bus-kind", "", "Message bus: nats or kafka")
	rootCmd.PersistentFlags().String("bus-nats-url", "", "NATS server url")
	rootCmd.PersistentFlags().String("bus-kafka-brokers", "", "Comma separated Kafka brokers")
	rootCmd.PersistentFlags().String("dedup-kind", "", "Committed transaction dedup: none, memory or redis")
	rootCmd.PersistentFlags().String("journal-kind", "", "Buffer journal: none, badger or pebble")
	rootCmd.PersistentFlags().String("journal-path", "", "Buffer journal directory")
	rootCmd.PersistentFlags().String("ledger-kind", "", "Batch ledger: none, catalog or postgres")
	rootCmd.PersistentFlags().Int("api-port", 0, "Admin API port, disabled when 0")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("rpc.url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("rpc.timeoutMs", rootCmd.PersistentFlags().Lookup("rpc-timeout"))
	viper.BindPFlag("chain.network", rootCmd.PersistentFlags().Lookup("chain-network"))
	viper.BindPFlag("chain.subnet", rootCmd.PersistentFlags().Lookup("chain-subnet"))
	viper.BindPFlag("chain.vmType", rootCmd.PersistentFlags().Lookup("chain-vm-type"))
	viper.BindPFlag("writer.batchSize", rootCmd.PersistentFlags().Lookup("writer-batch-size"))
	viper.BindPFlag("writer.flushIntervalMs", rootCmd.PersistentFlags().Lookup("writer-flush-interval"))
	viper.BindPFlag("writer.shutdownTimeoutMs", rootCmd.PersistentFlags().Lookup("writer-shutdown-timeout"))
	viper.BindPFlag("writer.flushConcurrency", rootCmd.PersistentFlags().Lookup("writer-flush-concurrency"))
	viper.BindPFlag("lake.path", rootCmd.PersistentFlags().Lookup("lake-path"))
	viper.BindPFlag("lake.readers", rootCmd.PersistentFlags().Lookup("lake-readers"))
	viper.BindPFlag("lake.catalog.kind", rootCmd.PersistentFlags().Lookup("lake-catalog-kind"))
	viper.BindPFlag("lake.catalog.path", rootCmd.PersistentFlags().Lookup("lake-catalog-path"))
	viper.BindPFlag("lake.catalog.dataPath", rootCmd.PersistentFlags().Lookup("lake-catalog-data-path"))
	viper.BindPFlag("s3.enabled", rootCmd.PersistentFlags().Lookup("s3-enabled"))
	viper.BindPFlag("s3.bucket", rootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("s3.region", rootCmd.PersistentFlags().Lookup("s3-region"))
	viper.BindPFlag("s3.endpoint", rootCmd.PersistentFlags().Lookup("s3-endpoint"))
	viper.BindPFlag("bus.kind", rootCmd.PersistentFlags().Lookup("bus-kind"))
	viper.BindPFlag("bus.nats.url", rootCmd.PersistentFlags().Lookup("bus-nats-url"))
	viper.BindPFlag("bus.kafka.brokers", rootCmd.PersistentFlags().Lookup("bus-kafka-brokers"))
	viper.BindPFlag("dedup.kind", rootCmd.PersistentFlags().Lookup("dedup-kind"))
	viper.BindPFlag("journal.kind", rootCmd.PersistentFlags().Lookup("journal-kind"))
	viper.BindPFlag("journal.path", rootCmd.PersistentFlags().Lookup("journal-path"))
	viper.BindPFlag("ledger.kind", rootCmd.PersistentFlags().Lookup("ledger-kind"))
	viper.BindPFlag("api.port", rootCmd.PersistentFlags().Lookup("api-port"))
	rootCmd.AddCommand(writerCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(catalogCmd)
}

func initConfig() {
	env.Load(envFile)
	if err := configs.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	customLogger.InitLogger()
}
