package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rs/zerolog/log"
)

// BadgerJournal keeps partition buffers on local disk with synchronous writes.
type BadgerJournal struct {
	db       *badger.DB
	gcTicker *time.Ticker
	stopGC   chan struct{}
	closeMu  sync.Once
}

func NewBadgerJournal(dir string) (*BadgerJournal, error) {
	opts := badger.DefaultOptions(dir)

	// small values, short lived: tuned for a write-then-delete workload
	opts.ValueLogFileSize = 64 * 1024 * 1024
	opts.BaseTableSize = 16 * 1024 * 1024
	opts.MemTableSize = 32 * 1024 * 1024
	opts.NumMemtables = 3
	opts.NumCompactors = 2
	opts.ValueThreshold = 1024
	opts.SyncWrites = true
	opts.DetectConflicts = false
	opts.Compression = options.Snappy
	opts.Logger = nil
	opts.MetricsEnabled = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger journal at %s: %w", dir, err)
	}

	j := &BadgerJournal{
		db:       db,
		gcTicker: time.NewTicker(5 * time.Minute),
		stopGC:   make(chan struct{}),
	}
	go j.runGC()
	return j, nil
}

func (j *BadgerJournal) Append(partition string, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	wb := j.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		value, err := encodeJournalRecord(e.Record)
		if err != nil {
			return err
		}
		if err := wb.Set(journalKey(partition, e.Seq), value); err != nil {
			return fmt.Errorf("failed to journal %s: %w", e.Record.TxHash, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal batch: %w", err)
	}
	return nil
}

func (j *BadgerJournal) Remove(partition string, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	wb := j.db.NewWriteBatch()
	defer wb.Cancel()

	for _, seq := range seqs {
		if err := wb.Delete(journalKey(partition, seq)); err != nil {
			return fmt.Errorf("failed to remove journal entry %d: %w", seq, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal removal: %w", err)
	}
	return nil
}

func (j *BadgerJournal) Replay(fn func(partition string, entry JournalEntry) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			partition, seq, err := parseJournalKey(item.KeyCopy(nil))
			if err != nil {
				log.Warn().Err(err).Msg("Skipping journal entry")
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read journal entry: %w", err)
			}
			record, err := decodeJournalRecord(value)
			if err != nil {
				return err
			}
			if err := fn(partition, JournalEntry{Seq: seq, Record: record}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *BadgerJournal) Close() error {
	var err error
	j.closeMu.Do(func() {
		close(j.stopGC)
		j.gcTicker.Stop()
		err = j.db.Close()
	})
	return err
}

func (j *BadgerJournal) runGC() {
	for {
		select {
		case <-j.gcTicker.C:
			err := j.db.RunValueLogGC(0.5)
			if err != nil && err != badger.ErrNoRewrite {
				log.Debug().Err(err).Msg("BadgerJournal GC error")
			}
		case <-j.stopGC:
			return
		}
	}
}

var _ IBufferJournal = (*BadgerJournal)(nil)
