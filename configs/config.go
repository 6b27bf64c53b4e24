package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type RPCConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMs int    `mapstructure:"timeoutMs"`
}

type ChainConfig struct {
	Network string `mapstructure:"network"`
	Subnet  string `mapstructure:"subnet"`
	VMType  string `mapstructure:"vmType"`
}

type WriterConfig struct {
	BatchSize         int `mapstructure:"batchSize"`
	FlushIntervalMs   int `mapstructure:"flushIntervalMs"`
	ShutdownTimeoutMs int `mapstructure:"shutdownTimeoutMs"`
	FlushConcurrency  int `mapstructure:"flushConcurrency"`
}

type CatalogKind string

const (
	CatalogKindLocal    CatalogKind = "local"
	CatalogKindFile     CatalogKind = "ducklake_file"
	CatalogKindPostgres CatalogKind = "ducklake_postgres"
)

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslMode"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
}

type CatalogConfig struct {
	Kind           CatalogKind     `mapstructure:"kind"`
	Name           string          `mapstructure:"name"`
	Schema         string          `mapstructure:"schema"`
	Path           string          `mapstructure:"path"`
	DataPath       string          `mapstructure:"dataPath"`
	MetadataSchema string          `mapstructure:"metadataSchema"`
	Postgres       *PostgresConfig `mapstructure:"postgres"`
}

type LakeConfig struct {
	Path                string        `mapstructure:"path"`
	Readers             int           `mapstructure:"readers"`
	CheckpointThreshold string        `mapstructure:"checkpointThreshold"`
	MemoryLimit         string        `mapstructure:"memoryLimit"`
	Catalog             CatalogConfig `mapstructure:"catalog"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"usePathStyle"`
	DisableSSL      bool   `mapstructure:"disableSSL"`
	Compression     string `mapstructure:"compression"`
}

// UseSSL is false when disableSSL is set or the endpoint is plain http.
func (c *S3Config) UseSSL() bool {
	return !c.DisableSSL && !strings.HasPrefix(c.Endpoint, "http://")
}

// EndpointHost is the endpoint without its scheme.
func (c *S3Config) EndpointHost() string {
	return strings.TrimPrefix(strings.TrimPrefix(c.Endpoint, "https://"), "http://")
}

// EndpointURL is the endpoint with a scheme matching UseSSL, empty when no
// endpoint is configured.
func (c *S3Config) EndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}
	if c.UseSSL() {
		return "https://" + c.EndpointHost()
	}
	return "http://" + c.EndpointHost()
}

type BusKind string

const (
	BusKindNats  BusKind = "nats"
	BusKindKafka BusKind = "kafka"
)

type NatsConfig struct {
	URL             string `mapstructure:"url"`
	ClientName      string `mapstructure:"clientName"`
	MaxReconnects   int    `mapstructure:"maxReconnects"`
	ReconnectWaitMs int    `mapstructure:"reconnectWaitMs"`
	PingIntervalMs  int    `mapstructure:"pingIntervalMs"`
}

type KafkaConfig struct {
	Brokers   string `mapstructure:"brokers"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	EnableTLS bool   `mapstructure:"enableTLS"`
	GroupID   string `mapstructure:"groupId"`
}

type BusConfig struct {
	Kind  BusKind      `mapstructure:"kind"`
	Nats  *NatsConfig  `mapstructure:"nats"`
	Kafka *KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	EnableTLS  bool   `mapstructure:"enableTLS"`
	TTLSeconds int    `mapstructure:"ttlSeconds"`
}

type MemoryConfig struct {
	MaxItems int `mapstructure:"maxItems"`
}

type DedupConfig struct {
	Kind   string        `mapstructure:"kind"`
	Redis  *RedisConfig  `mapstructure:"redis"`
	Memory *MemoryConfig `mapstructure:"memory"`
}

type JournalConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

type LedgerConfig struct {
	Kind     string          `mapstructure:"kind"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type BasicAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type APIConfig struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	BasicAuth BasicAuthConfig `mapstructure:"basicAuth"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	RPC     RPCConfig     `mapstructure:"rpc"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Lake    LakeConfig    `mapstructure:"lake"`
	S3      S3Config      `mapstructure:"s3"`
	Bus     BusConfig     `mapstructure:"bus"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	Journal JournalConfig `mapstructure:"journal"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	API     APIConfig     `mapstructure:"api"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}

		// secrets are optional, credentials may come from the environment instead
		viper.SetConfigName("secrets")
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error loading secrets file: %v", err)
			}
		}
	}

	// sets e.g. WRITER_BATCHSIZE to writer.batchSize
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return Cfg.Validate()
}

// Validate rejects configurations that cannot start a pipeline.
func (c *Config) Validate() error {
	if c.Writer.BatchSize < 0 {
		return fmt.Errorf("writer.batchSize must not be negative, got %d", c.Writer.BatchSize)
	}
	if c.Writer.FlushIntervalMs < 0 {
		return fmt.Errorf("writer.flushIntervalMs must not be negative, got %d", c.Writer.FlushIntervalMs)
	}
	switch c.Lake.Catalog.Kind {
	case "", CatalogKindLocal, CatalogKindFile:
	case CatalogKindPostgres:
		if c.Lake.Catalog.Postgres == nil {
			return fmt.Errorf("lake.catalog.postgres is required for catalog kind %q", c.Lake.Catalog.Kind)
		}
	default:
		return fmt.Errorf("unknown catalog kind %q", c.Lake.Catalog.Kind)
	}
	switch c.Bus.Kind {
	case "":
	case BusKindNats:
		if c.Bus.Nats == nil || c.Bus.Nats.URL == "" {
			return fmt.Errorf("bus.nats.url is required for bus kind nats")
		}
	case BusKindKafka:
		if c.Bus.Kafka == nil || c.Bus.Kafka.Brokers == "" {
			return fmt.Errorf("bus.kafka.brokers is required for bus kind kafka")
		}
	default:
		return fmt.Errorf("unknown bus kind %q", c.Bus.Kind)
	}
	return nil
}
