package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainwatch/ingestor/internal/columnar"
)

// Journal keys are "<partition>/<seq>" with the sequence zero padded so that
// byte order equals buffer order.
func journalKey(partition string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%020d", partition, seq))
}

func parseJournalKey(key []byte) (string, uint64, error) {
	s := string(key)
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed journal key %q", s)
	}
	seq, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed journal key %q: %w", s, err)
	}
	return s[:i], seq, nil
}

func encodeJournalRecord(r columnar.TransactionRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode journal record %s: %w", r.TxHash, err)
	}
	return buf.Bytes(), nil
}

func decodeJournalRecord(data []byte) (columnar.TransactionRecord, error) {
	var r columnar.TransactionRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return r, fmt.Errorf("failed to decode journal record: %w", err)
	}
	return r, nil
}
