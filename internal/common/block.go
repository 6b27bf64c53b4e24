package common

import (
	"time"
)

type Block struct {
	Number       string        `json:"number"`
	Hash         string        `json:"hash"`
	ParentHash   string        `json:"parentHash"`
	Timestamp    string        `json:"timestamp"`
	Miner        string        `json:"miner"`
	GasLimit     string        `json:"gasLimit"`
	GasUsed      string        `json:"gasUsed"`
	BaseFee      *string       `json:"baseFeePerGas,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

// Time returns the block timestamp in UTC, or the zero time when the node
// returned an unparsable value.
func (b *Block) Time() time.Time {
	ts, ok := HexToUint64(b.Timestamp)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

// StampTransactions copies the block timestamp onto every transaction so they
// can be published independently of the block.
func (b *Block) StampTransactions() {
	ts, ok := HexToUint64(b.Timestamp)
	if !ok {
		return
	}
	for i := range b.Transactions {
		b.Transactions[i].BlockTimestamp = ts
	}
}
