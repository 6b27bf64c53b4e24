package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/rpc"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const defaultConcurrency = 8

// Worker fetches many blocks from one node concurrently.
type Worker struct {
	fetcher rpc.IBlockFetcher
	rpcURL  string
	sem     *semaphore.Weighted
}

type BlockResult struct {
	Identifier string
	Block      *common.Block
	Error      error
}

func NewWorker(fetcher rpc.IBlockFetcher, rpcURL string, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Worker{
		fetcher: fetcher,
		rpcURL:  rpcURL,
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run fetches every identifier and returns the results in input order. A
// missing block has neither Block nor Error set.
func (w *Worker) Run(ctx context.Context, identifiers []string) []BlockResult {
	results := make([]BlockResult, len(identifiers))
	var wg sync.WaitGroup
	for i, id := range identifiers {
		results[i].Identifier = id
		if err := w.sem.Acquire(ctx, 1); err != nil {
			results[i].Error = err
			continue
		}

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer w.sem.Release(1)
			results[i].Block, results[i].Error = w.processBlock(ctx, id)
		}(i, id)
	}
	wg.Wait()
	return results
}

func (w *Worker) processBlock(ctx context.Context, id string) (*common.Block, error) {
	log.Debug().Msgf("Fetching block %s", id)
	block, err := w.fetcher.FetchFullBlock(ctx, w.rpcURL, id)
	if err != nil {
		return nil, fmt.Errorf("error fetching block %s: %w", id, err)
	}
	return block, nil
}

// MaxRangeSize bounds the number of blocks a single "from-to" argument expands to.
const MaxRangeSize = 100_000

// ExpandIdentifiers turns decimal numbers and inclusive "from-to" ranges into
// hex block numbers. Anything else, hashes and tags included, is kept as is
// for the fetcher to validate.
func ExpandIdentifiers(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if from, to, ok := strings.Cut(arg, "-"); ok {
			lo, err := strconv.ParseUint(from, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q: %w", arg, err)
			}
			hi, err := strconv.ParseUint(to, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q: %w", arg, err)
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid range %q: end before start", arg)
			}
			if hi-lo >= MaxRangeSize {
				return nil, fmt.Errorf("invalid range %q: more than %d blocks", arg, MaxRangeSize)
			}
			for n := lo; ; n++ {
				out = append(out, fmt.Sprintf("0x%x", n))
				if n == hi {
					break
				}
			}
			continue
		}
		if n, err := strconv.ParseUint(arg, 10, 64); err == nil {
			out = append(out, fmt.Sprintf("0x%x", n))
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}
