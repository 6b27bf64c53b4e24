package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/metrics"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

const (
	methodGetBlockByHash   = "eth_getBlockByHash"
	methodGetBlockByNumber = "eth_getBlockByNumber"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier format")
	ErrUnsupportedVMType = errors.New("not implemented for VMType")

	blockHashPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	blockNumberPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
)

type IBlockFetcher interface {
	FetchFullBlock(ctx context.Context, rpcURL string, blockIdentifier string) (*common.Block, error)
	Close()
}

// Fetcher retrieves full blocks, transactions included, from JSON-RPC nodes.
// Clients are dialed lazily and kept per URL. Calls are never retried.
type Fetcher struct {
	vmType     string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*gethRpc.Client
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewFetcher(vmType string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		vmType:     vmType,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clients:    make(map[string]*gethRpc.Client),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchFullBlock returns the block identified by a 0x-prefixed hash or number.
// A block the node does not know is reported as (nil, nil).
func (f *Fetcher) FetchFullBlock(ctx context.Context, rpcURL string, blockIdentifier string) (*common.Block, error) {
	if !strings.EqualFold(f.vmType, common.VMTypeEVM) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVMType, f.vmType)
	}

	method, err := methodForIdentifier(blockIdentifier)
	if err != nil {
		return nil, err
	}

	client, err := f.client(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var block *common.Block
	err = client.CallContext(ctx, &block, method, blockIdentifier, true)
	metrics.RPCFetchDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCFetchErrors.WithLabelValues(method).Inc()
		return nil, wrapCallError(ctx, method, blockIdentifier, err)
	}

	if block == nil {
		metrics.RPCBlocksNotFound.Inc()
		log.Debug().Str("method", method).Str("block", blockIdentifier).Msg("Block not found")
		return nil, nil
	}
	return block, nil
}

func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for url, c := range f.clients {
		c.Close()
		delete(f.clients, url)
	}
}

func (f *Fetcher) client(ctx context.Context, rpcURL string) (*gethRpc.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[rpcURL]; ok {
		return c, nil
	}
	c, err := gethRpc.DialOptions(ctx, rpcURL, gethRpc.WithHTTPClient(f.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc %s: %w", rpcURL, err)
	}
	f.clients[rpcURL] = c
	return c, nil
}

func methodForIdentifier(id string) (string, error) {
	switch {
	case blockHashPattern.MatchString(id):
		return methodGetBlockByHash, nil
	case blockNumberPattern.MatchString(id):
		return methodGetBlockByNumber, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
}

func wrapCallError(ctx context.Context, method string, id string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s(%s) aborted: %w", method, id, ctxErr)
	}

	var httpErr gethRpc.HTTPError
	if errors.As(err, &httpErr) {
		log.Warn().Int("status", httpErr.StatusCode).Str("method", method).Msg("RPC node returned non-2xx response")
		return fmt.Errorf("%s(%s) failed with http status %s: %w", method, id, httpErr.Status, err)
	}

	var rpcErr gethRpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s(%s) returned rpc error %d: %w", method, id, rpcErr.ErrorCode(), err)
	}

	return fmt.Errorf("%s(%s) failed: %w", method, id, err)
}
