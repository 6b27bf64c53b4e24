package writer

import (
	"sync"
	"time"

	"github.com/chainwatch/ingestor/internal/columnar"
	"github.com/chainwatch/ingestor/internal/common"
	"github.com/chainwatch/ingestor/internal/storage"
)

type bufferedEntry = storage.JournalEntry

type partition struct {
	cfg common.PartitionConfig

	// flushMu serializes flushes of this partition
	flushMu sync.Mutex

	mu        sync.Mutex
	entries   []bufferedEntry
	pending   *common.Set[string]
	nextSeq   uint64
	flushes   uint64
	lastFlush time.Time
	lastErr   error
}

func newPartition(cfg common.PartitionConfig) *partition {
	return &partition{
		cfg:     cfg,
		pending: common.NewSet[string](),
	}
}

type reservation int

const (
	reserveOK reservation = iota
	reserveDuplicate
	// a flush completed since epoch, the caller must look the hash up again
	reserveStale
)

// anyEpoch skips the flush check in reserve.
const anyEpoch = ^uint64(0)

// epoch counts completed flushes.
func (p *partition) epoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// reserve claims the next sequence number for r unless a transaction with the
// same hash is already buffered or reserved.
func (p *partition) reserve(r columnar.TransactionRecord, epoch uint64) (uint64, reservation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending.Contains(r.TxHash) {
		return 0, reserveDuplicate
	}
	if epoch != anyEpoch && epoch != p.flushes {
		return 0, reserveStale
	}
	p.pending.Add(r.TxHash)
	seq := p.nextSeq
	p.nextSeq++
	return seq, reserveOK
}

// release gives up a reservation that was never pushed.
func (p *partition) release(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.Remove(hash)
}

// push makes a reserved entry visible to flushes and returns the buffer size.
func (p *partition) push(e bufferedEntry) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, e)
	return len(p.entries)
}

// restore re-buffers a journaled entry and keeps nextSeq past it.
func (p *partition) restore(seq uint64, r columnar.TransactionRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq >= p.nextSeq {
		p.nextSeq = seq + 1
	}
	if !p.pending.Add(r.TxHash) {
		return false
	}
	p.entries = append(p.entries, bufferedEntry{Seq: seq, Record: r})
	return true
}

func (p *partition) snapshot() []bufferedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]bufferedEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// remove drops the first n entries and returns their sequence numbers. Only
// the flush holding flushMu calls it, so the first n entries are still the
// snapshot.
func (p *partition) remove(n int) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	hashes := make([]string, n)
	seqs := make([]uint64, n)
	for i := 0; i < n; i++ {
		hashes[i] = p.entries[i].Record.TxHash
		seqs[i] = p.entries[i].Seq
	}
	p.pending.Remove(hashes...)
	p.flushes++

	rest := make([]bufferedEntry, len(p.entries)-n)
	copy(rest, p.entries[n:])
	p.entries = rest

	p.lastFlush = time.Now()
	p.lastErr = nil
	return seqs
}

func (p *partition) failed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

func (p *partition) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *partition) stats() PartitionStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PartitionStats{Partition: p.cfg, Buffered: len(p.entries)}
	if !p.lastFlush.IsZero() {
		t := p.lastFlush
		s.LastFlush = &t
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}
