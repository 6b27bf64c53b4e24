package common

import (
	"strings"
)

// Transaction is a chain transaction as returned by eth_getBlockBy* with full
// transaction objects. Numeric fields keep their 0x-prefixed hex encoding so
// that a malformed value from a node never fails decoding of the whole block.
type Transaction struct {
	Hash             string  `json:"hash"`
	BlockHash        string  `json:"blockHash"`
	BlockNumber      string  `json:"blockNumber"`
	TransactionIndex string  `json:"transactionIndex"`
	From             string  `json:"from"`
	To               *string `json:"to"`
	Value            string  `json:"value"`
	Gas              string  `json:"gas"`
	GasPrice         string  `json:"gasPrice"`
	Nonce            string  `json:"nonce"`
	Input            string  `json:"input"`
	Type             string  `json:"type,omitempty"`
	// Status is only present when the producer enriched the transaction
	// with its receipt.
	Status *string `json:"status,omitempty"`
	// BlockTimestamp is the unix time of the containing block, stamped by the
	// producer since the RPC transaction object does not carry it.
	BlockTimestamp uint64 `json:"blockTimestamp,omitempty"`
}

// IsContractCreation reports whether the transaction has no recipient.
func (t *Transaction) IsContractCreation() bool {
	return t.To == nil || strings.TrimSpace(*t.To) == ""
}

// Succeeded reports the receipt status, assuming success when it is unknown.
func (t *Transaction) Succeeded() bool {
	if t.Status == nil {
		return true
	}
	v, ok := HexToUint64(*t.Status)
	if !ok {
		return true
	}
	return v == 1
}

// FunctionSelector returns the first four bytes of the call data as hex.
func (t *Transaction) FunctionSelector() string {
	data := strings.TrimPrefix(t.Input, "0x")
	if len(data) < 8 {
		return ""
	}
	return "0x" + strings.ToLower(data[:8])
}
