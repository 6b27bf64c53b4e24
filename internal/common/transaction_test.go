package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionDecodeFromRPC(t *testing.T) {
	raw := `{
		"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		"blockHash": "0x1d59ff54b1eb26b013ce3cb5fc9dab3705b415a67127a003c3e61eb445bb8df2",
		"blockNumber": "0x5daf3b",
		"transactionIndex": "0x41",
		"from": "0xa7d9ddbe1f17865597fbd27ec712455208b6b76d",
		"to": null,
		"value": "0xf3dbb76162000",
		"gas": "0xc350",
		"gasPrice": "0x4a817c800",
		"nonce": "0x15",
		"input": "0x68656c6c6f21"
	}`

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))

	assert.True(t, tx.IsContractCreation())
	assert.True(t, tx.Succeeded())
	assert.Equal(t, "0x68656c6c", tx.FunctionSelector())
	n, ok := HexToUint64(tx.BlockNumber)
	require.True(t, ok)
	assert.Equal(t, uint64(6139707), n)
}

func TestTransactionSucceeded(t *testing.T) {
	failed := "0x0"
	ok := "0x1"
	garbage := "nope"

	assert.False(t, (&Transaction{Status: &failed}).Succeeded())
	assert.True(t, (&Transaction{Status: &ok}).Succeeded())
	assert.True(t, (&Transaction{Status: &garbage}).Succeeded())
}

func TestFunctionSelectorShortInput(t *testing.T) {
	assert.Equal(t, "", (&Transaction{Input: "0x"}).FunctionSelector())
	assert.Equal(t, "", (&Transaction{Input: "0x1234"}).FunctionSelector())
}

func TestBlockStampTransactions(t *testing.T) {
	b := Block{
		Timestamp:    "0x6553f100",
		Transactions: []Transaction{{Hash: "0x01"}, {Hash: "0x02"}},
	}
	b.StampTransactions()

	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), b.Time())
	for _, tx := range b.Transactions {
		assert.Equal(t, uint64(1700000000), tx.BlockTimestamp)
	}
}

func TestBlockTimeMalformed(t *testing.T) {
	b := Block{Timestamp: "yesterday"}
	assert.True(t, b.Time().IsZero())
}
