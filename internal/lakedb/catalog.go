package lakedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/rs/zerolog/log"
)

const (
	TransactionsTable = "transactions"
	BatchesTable      = "ingest_batches"
)

// Catalog is where the lake's tables live. The set of implementations is
// closed: LocalCatalog, DuckLakeFileCatalog and DuckLakePostgresCatalog.
type Catalog interface {
	Kind() config.CatalogKind
	Name() string
	Schema() string
	// attach makes the catalog visible to every connection of the database
	// and creates the schema and tables.
	attach(ctx context.Context, conn *sql.Conn) error
}

// S3Secret holds object storage credentials handed to DuckDB's httpfs.
type S3Secret struct {
	KeyID    string
	Secret   string
	Region   string
	Endpoint string
	URLStyle string
	UseSSL   bool
}

// LocalCatalog is a plain DuckDB database, in memory when Path is empty.
type LocalCatalog struct {
	CatalogName string
	SchemaName  string
	Path        string
}

func (c *LocalCatalog) Kind() config.CatalogKind { return config.CatalogKindLocal }
func (c *LocalCatalog) Name() string             { return c.CatalogName }
func (c *LocalCatalog) Schema() string           { return c.SchemaName }

func (c *LocalCatalog) attach(ctx context.Context, conn *sql.Conn) error {
	path := c.Path
	if path == "" {
		path = ":memory:"
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("ATTACH IF NOT EXISTS '%s' AS %s", escapeLiteral(path), c.CatalogName)); err != nil {
		return fmt.Errorf("failed to attach local catalog %s: %w", c.CatalogName, err)
	}
	return createTables(ctx, conn, c, false)
}

// DuckLakeFileCatalog keeps DuckLake metadata in a local DuckDB or SQLite file
// and table data under DataPath.
type DuckLakeFileCatalog struct {
	CatalogName    string
	SchemaName     string
	MetadataPath   string
	DataPath       string
	MetadataSchema string
	S3             *S3Secret
}

func (c *DuckLakeFileCatalog) Kind() config.CatalogKind { return config.CatalogKindFile }
func (c *DuckLakeFileCatalog) Name() string             { return c.CatalogName }
func (c *DuckLakeFileCatalog) Schema() string           { return c.SchemaName }

func (c *DuckLakeFileCatalog) attach(ctx context.Context, conn *sql.Conn) error {
	if err := loadDuckLake(ctx, conn, c.S3, false); err != nil {
		return err
	}
	if err := attachDuckLake(ctx, conn, "ducklake:"+c.MetadataPath, c.CatalogName, c.DataPath, c.MetadataSchema); err != nil {
		return err
	}
	return createTables(ctx, conn, c, true)
}

// DuckLakePostgresCatalog keeps DuckLake metadata in an external Postgres.
type DuckLakePostgresCatalog struct {
	CatalogName    string
	SchemaName     string
	Postgres       config.PostgresConfig
	DataPath       string
	MetadataSchema string
	S3             *S3Secret
}

func (c *DuckLakePostgresCatalog) Kind() config.CatalogKind { return config.CatalogKindPostgres }
func (c *DuckLakePostgresCatalog) Name() string             { return c.CatalogName }
func (c *DuckLakePostgresCatalog) Schema() string           { return c.SchemaName }

func (c *DuckLakePostgresCatalog) attach(ctx context.Context, conn *sql.Conn) error {
	if err := loadDuckLake(ctx, conn, c.S3, true); err != nil {
		return err
	}
	if err := attachDuckLake(ctx, conn, "ducklake:postgres:"+c.libpqDSN(), c.CatalogName, c.DataPath, c.MetadataSchema); err != nil {
		return err
	}
	return createTables(ctx, conn, c, true)
}

func (c *DuckLakePostgresCatalog) libpqDSN() string {
	pg := c.Postgres
	parts := []string{fmt.Sprintf("dbname=%s", pg.Database), fmt.Sprintf("host=%s", pg.Host)}
	if pg.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", pg.Port))
	}
	if pg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", pg.Username))
	}
	if pg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", pg.Password))
	}
	if pg.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", pg.SSLMode))
	}
	return strings.Join(parts, " ")
}

// NewCatalog selects the catalog variant named by the configuration.
func NewCatalog(cfg config.LakeConfig, s3 config.S3Config) (Catalog, error) {
	c := cfg.Catalog
	name := c.Name
	if name == "" {
		name = "lake"
	}
	schema := c.Schema
	if schema == "" {
		schema = "main"
	}

	var secret *S3Secret
	if s3.AccessKeyID != "" && s3.SecretAccessKey != "" {
		urlStyle := "vhost"
		if s3.UsePathStyle {
			urlStyle = "path"
		}
		secret = &S3Secret{
			KeyID:    s3.AccessKeyID,
			Secret:   s3.SecretAccessKey,
			Region:   s3.Region,
			Endpoint: s3.EndpointHost(),
			URLStyle: urlStyle,
			UseSSL:   s3.UseSSL(),
		}
	}

	switch c.Kind {
	case "", config.CatalogKindLocal:
		return &LocalCatalog{CatalogName: name, SchemaName: schema, Path: c.Path}, nil
	case config.CatalogKindFile:
		if c.Path == "" {
			return nil, fmt.Errorf("catalog %s requires a metadata path", c.Kind)
		}
		return &DuckLakeFileCatalog{
			CatalogName:    name,
			SchemaName:     schema,
			MetadataPath:   c.Path,
			DataPath:       c.DataPath,
			MetadataSchema: c.MetadataSchema,
			S3:             secret,
		}, nil
	case config.CatalogKindPostgres:
		if c.Postgres == nil {
			return nil, fmt.Errorf("catalog %s requires postgres settings", c.Kind)
		}
		return &DuckLakePostgresCatalog{
			CatalogName:    name,
			SchemaName:     schema,
			Postgres:       *c.Postgres,
			DataPath:       c.DataPath,
			MetadataSchema: c.MetadataSchema,
			S3:             secret,
		}, nil
	default:
		return nil, fmt.Errorf("unknown catalog kind %q", c.Kind)
	}
}

// QualifiedTable returns "<catalog>.<schema>.<table>".
func QualifiedTable(c Catalog, table string) string {
	return c.Name() + "." + c.Schema() + "." + table
}

func loadDuckLake(ctx context.Context, conn *sql.Conn, secret *S3Secret, withPostgres bool) error {
	extensions := []string{"ducklake", "httpfs"}
	if withPostgres {
		extensions = append(extensions, "postgres")
	}
	for _, ext := range extensions {
		if _, err := conn.ExecContext(ctx, "INSTALL "+ext); err != nil {
			// already bundled or offline with a preinstalled copy
			log.Debug().Err(err).Str("extension", ext).Msg("Extension install skipped")
		}
		if _, err := conn.ExecContext(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	if secret == nil {
		return nil
	}
	return createS3Secret(ctx, conn, secret)
}

func createS3Secret(ctx context.Context, conn *sql.Conn, s *S3Secret) error {
	if _, err := conn.ExecContext(ctx, s3SecretSQL(s)); err != nil {
		// the statement carries the secret, never log or wrap it
		return fmt.Errorf("failed to create object storage secret")
	}
	log.Debug().Str("region", s.Region).Str("endpoint", s.Endpoint).Str("url_style", s.URLStyle).Bool("ssl", s.UseSSL).Msg("Object storage secret configured")
	return nil
}

func s3SecretSQL(s *S3Secret) string {
	var opts []string
	opts = append(opts, "TYPE S3",
		fmt.Sprintf("KEY_ID '%s'", escapeLiteral(s.KeyID)),
		fmt.Sprintf("SECRET '%s'", escapeLiteral(s.Secret)),
	)
	if s.Region != "" {
		opts = append(opts, fmt.Sprintf("REGION '%s'", escapeLiteral(s.Region)))
	}
	if s.Endpoint != "" {
		opts = append(opts, fmt.Sprintf("ENDPOINT '%s'", escapeLiteral(s.Endpoint)))
	}
	if s.URLStyle != "" {
		opts = append(opts, fmt.Sprintf("URL_STYLE '%s'", escapeLiteral(s.URLStyle)))
	}
	if !s.UseSSL {
		opts = append(opts, "USE_SSL false")
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET lake_s3 (%s)", strings.Join(opts, ", "))
}

func attachDuckLake(ctx context.Context, conn *sql.Conn, target, name, dataPath, metadataSchema string) error {
	var opts []string
	if dataPath != "" {
		opts = append(opts, fmt.Sprintf("DATA_PATH '%s'", escapeLiteral(dataPath)))
	}
	if metadataSchema != "" {
		opts = append(opts, fmt.Sprintf("METADATA_SCHEMA '%s'", escapeLiteral(metadataSchema)))
	}
	query := fmt.Sprintf("ATTACH IF NOT EXISTS '%s' AS %s", escapeLiteral(target), name)
	if len(opts) > 0 {
		query += " (" + strings.Join(opts, ", ") + ")"
	}
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to attach ducklake catalog %s: %w", name, redactErr(err, target))
	}
	log.Info().Str("catalog", name).Str("data_path", dataPath).Msg("Attached ducklake catalog")
	return nil
}

func createTables(ctx context.Context, conn *sql.Conn, c Catalog, ducklake bool) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", c.Name(), c.Schema()),
		fmt.Sprintf(createTransactionsTableSQL, QualifiedTable(c, TransactionsTable), transactionsKey(c)),
		fmt.Sprintf(createBatchesTableSQL, QualifiedTable(c, BatchesTable)),
	}
	if ducklake {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s SET PARTITIONED BY (network, subnet, vm_type, year, month, day)", QualifiedTable(c, TransactionsTable)))
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare catalog %s: %w", c.Name(), err)
		}
	}
	return nil
}

const createTransactionsTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	network VARCHAR NOT NULL,
	subnet VARCHAR NOT NULL,
	vm_type VARCHAR NOT NULL,
	block_time TIMESTAMP NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	day INTEGER NOT NULL,
	hour INTEGER NOT NULL,
	block_hash VARCHAR,
	block_number UBIGINT,
	tx_hash VARCHAR NOT NULL,
	tx_index UBIGINT,
	from_address VARCHAR,
	to_address VARCHAR,
	value VARCHAR,
	gas_price UBIGINT,
	gas_limit UBIGINT,
	nonce UBIGINT,
	input_data BLOB,
	success BOOLEAN%s
)`

const createBatchesTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	network VARCHAR NOT NULL,
	subnet VARCHAR NOT NULL,
	vm_type VARCHAR NOT NULL,
	min_block UBIGINT,
	max_block UBIGINT,
	min_block_time TIMESTAMP,
	max_block_time TIMESTAMP,
	tx_count BIGINT NOT NULL,
	file_path VARCHAR,
	file_size BIGINT,
	checksum VARCHAR,
	created_at TIMESTAMP NOT NULL
)`

// EnforcesUniqueness reports whether the catalog's transactions table carries
// a primary key. DuckLake tables accept neither constraints nor upserts.
func EnforcesUniqueness(c Catalog) bool {
	return c.Kind() == config.CatalogKindLocal
}

func transactionsKey(c Catalog) string {
	if !EnforcesUniqueness(c) {
		return ""
	}
	return ",\n\tPRIMARY KEY (network, subnet, vm_type, tx_hash)"
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// redactErr drops the attach target, which may contain a password, from
// driver errors that echo the statement.
func redactErr(err error, target string) error {
	msg := err.Error()
	if target == "" || !strings.Contains(msg, target) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(msg, target, "<redacted>"))
}
