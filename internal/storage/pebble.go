package storage

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// PebbleJournal is the pebble backed alternative to BadgerJournal.
type PebbleJournal struct {
	db *pebble.DB
}

func NewPebbleJournal(dir string) (*PebbleJournal, error) {
	cache := pebble.NewCache(32 << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		Levels: []pebble.LevelOptions{
			{Compression: pebble.SnappyCompression},
		},
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble journal at %s: %w", dir, err)
	}
	return &PebbleJournal{db: db}, nil
}

func (j *PebbleJournal) Append(partition string, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := j.db.NewBatch()
	defer batch.Close()

	for _, e := range entries {
		value, err := encodeJournalRecord(e.Record)
		if err != nil {
			return err
		}
		if err := batch.Set(journalKey(partition, e.Seq), value, nil); err != nil {
			return fmt.Errorf("failed to journal %s: %w", e.Record.TxHash, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit journal batch: %w", err)
	}
	return nil
}

// Remove collapses consecutive sequence numbers into range tombstones.
func (j *PebbleJournal) Remove(partition string, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	sorted := append([]uint64(nil), seqs...)
	slices.Sort(sorted)

	batch := j.db.NewBatch()
	defer batch.Close()

	for start := 0; start < len(sorted); {
		end := start
		for end+1 < len(sorted) && sorted[end+1] == sorted[end]+1 {
			end++
		}
		from, to := sorted[start], sorted[end]+1
		if err := batch.DeleteRange(journalKey(partition, from), journalKey(partition, to), nil); err != nil {
			return fmt.Errorf("failed to remove journal range [%d, %d): %w", from, to, err)
		}
		start = end + 1
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit journal removal: %w", err)
	}
	return nil
}

func (j *PebbleJournal) Replay(fn func(partition string, entry JournalEntry) error) error {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("failed to create journal iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		partition, seq, err := parseJournalKey(iter.Key())
		if err != nil {
			log.Warn().Err(err).Msg("Skipping journal entry")
			continue
		}
		record, err := decodeJournalRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(partition, JournalEntry{Seq: seq, Record: record}); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (j *PebbleJournal) Close() error {
	return j.db.Close()
}

var _ IBufferJournal = (*PebbleJournal)(nil)
