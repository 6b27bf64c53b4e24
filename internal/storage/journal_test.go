package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replayed struct {
	partition string
	seq       uint64
	hash      string
}

func collect(t *testing.T, j IBufferJournal) []replayed {
	t.Helper()
	var out []replayed
	err := j.Replay(func(partition string, e JournalEntry) error {
		out = append(out, replayed{partition: partition, seq: e.Seq, hash: e.Record.TxHash})
		return nil
	})
	require.NoError(t, err)
	return out
}

func exerciseJournal(t *testing.T, j IBufferJournal) {
	records := testRecords("0x01", "0x02", "0x03")
	a := testPartition.Key()
	b := "fuji:c-chain:evm"

	require.NoError(t, j.Append(a, []JournalEntry{{Seq: 0, Record: records[0]}, {Seq: 1, Record: records[1]}}))
	require.NoError(t, j.Append(b, []JournalEntry{{Seq: 0, Record: records[2]}}))
	require.NoError(t, j.Append(a, []JournalEntry{{Seq: 2, Record: records[2]}}))

	got := collect(t, j)
	assert.Equal(t, []replayed{
		{b, 0, "0x03"},
		{a, 0, "0x01"},
		{a, 1, "0x02"},
		{a, 2, "0x03"},
	}, got)

	require.NoError(t, j.Remove(a, []uint64{1, 0}))
	got = collect(t, j)
	assert.Equal(t, []replayed{{b, 0, "0x03"}, {a, 2, "0x03"}}, got)

	var restored []JournalEntry
	require.NoError(t, j.Replay(func(partition string, e JournalEntry) error {
		if partition == a {
			restored = append(restored, e)
		}
		return nil
	}))
	require.Len(t, restored, 1)
	require.NotNil(t, restored[0].Record.BlockNumber)
	assert.Equal(t, records[2].BlockTime.Unix(), restored[0].Record.BlockTime.Unix())
	assert.Equal(t, *records[2].BlockNumber, *restored[0].Record.BlockNumber)
}

func exerciseSparseRemove(t *testing.T, j IBufferJournal) {
	a := testPartition.Key()
	records := testRecords("0x01", "0x02", "0x03", "0x04", "0x05")
	entries := make([]JournalEntry, len(records))
	for i, r := range records {
		entries[i] = JournalEntry{Seq: uint64(10 + i), Record: r}
	}
	require.NoError(t, j.Append(a, entries))

	require.NoError(t, j.Remove(a, []uint64{14, 10, 12, 11}))
	require.NoError(t, j.Remove(a, nil))
	assert.Equal(t, []replayed{{a, 13, "0x04"}}, collect(t, j))
}

func TestBadgerJournal(t *testing.T) {
	j, err := NewBadgerJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	exerciseJournal(t, j)
}

func TestBadgerJournalSparseRemove(t *testing.T) {
	j, err := NewBadgerJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	exerciseSparseRemove(t, j)
}

func TestPebbleJournalSparseRemove(t *testing.T) {
	j, err := NewPebbleJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	exerciseSparseRemove(t, j)
}

func TestPebbleJournal(t *testing.T) {
	j, err := NewPebbleJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	exerciseJournal(t, j)
}

func TestBadgerJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := NewBadgerJournal(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(testPartition.Key(), []JournalEntry{{Seq: 7, Record: testRecords("0x07")[0]}}))
	require.NoError(t, j.Close())

	j, err = NewBadgerJournal(dir)
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, []replayed{{testPartition.Key(), 7, "0x07"}}, collect(t, j))
}

func TestJournalKeyOrdering(t *testing.T) {
	assert.Less(t, string(journalKey("p", 9)), string(journalKey("p", 10)))

	partition, seq, err := parseJournalKey(journalKey("mainnet:c:evm", 42))
	require.NoError(t, err)
	assert.Equal(t, "mainnet:c:evm", partition)
	assert.Equal(t, uint64(42), seq)

	_, _, err = parseJournalKey([]byte("nokey"))
	assert.Error(t, err)
}
