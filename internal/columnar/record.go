package columnar

import (
	"time"

	"github.com/chainwatch/ingestor/internal/common"
	"github.com/holiman/uint256"
)

// TransactionRecord is one row of the transactions table. The field order is
// the column order of the lake table, the arrow schema and the parquet file.
// New columns are only ever appended.
type TransactionRecord struct {
	Network     string    `parquet:"network,dict" json:"network"`
	Subnet      string    `parquet:"subnet,dict" json:"subnet"`
	VMType      string    `parquet:"vm_type,dict" json:"vm_type"`
	BlockTime   time.Time `parquet:"block_time,timestamp(microsecond)" json:"block_time"`
	Year        int32     `parquet:"year" json:"year"`
	Month       int32     `parquet:"month" json:"month"`
	Day         int32     `parquet:"day" json:"day"`
	Hour        int32     `parquet:"hour" json:"hour"`
	BlockHash   string    `parquet:"block_hash" json:"block_hash"`
	BlockNumber *uint64   `parquet:"block_number,optional" json:"block_number"`
	TxHash      string    `parquet:"tx_hash" json:"tx_hash"`
	TxIndex     uint64    `parquet:"tx_index" json:"tx_index"`
	FromAddress string    `parquet:"from_address" json:"from_address"`
	ToAddress   *string   `parquet:"to_address,optional" json:"to_address"`
	Value       string    `parquet:"value" json:"value"`
	GasPrice    uint64    `parquet:"gas_price" json:"gas_price"`
	GasLimit    uint64    `parquet:"gas_limit" json:"gas_limit"`
	Nonce       uint64    `parquet:"nonce" json:"nonce"`
	InputData   []byte    `parquet:"input_data" json:"input_data"`
	Success     bool      `parquet:"success" json:"success"`
}

// FromChainTransaction maps a decoded chain transaction into a row of the
// given partition. Hex numerics that fail to parse are left at zero, a
// missing or malformed block number is left unset.
func FromChainTransaction(tx common.Transaction, network, subnet, vmType string, blockTime time.Time) TransactionRecord {
	blockTime = blockTime.UTC()
	r := TransactionRecord{
		Network:     network,
		Subnet:      subnet,
		VMType:      vmType,
		BlockTime:   blockTime,
		Year:        int32(blockTime.Year()),
		Month:       int32(blockTime.Month()),
		Day:         int32(blockTime.Day()),
		Hour:        int32(blockTime.Hour()),
		BlockHash:   tx.BlockHash,
		TxHash:      tx.Hash,
		FromAddress: tx.From,
		Value:       decimalValue(tx.Value),
		Success:     tx.Succeeded(),
	}

	if n, ok := common.HexToUint64(tx.BlockNumber); ok {
		r.BlockNumber = &n
	}
	if !tx.IsContractCreation() {
		to := *tx.To
		r.ToAddress = &to
	}
	r.TxIndex, _ = common.HexToUint64(tx.TransactionIndex)
	r.GasPrice, _ = common.HexToUint64(tx.GasPrice)
	r.GasLimit, _ = common.HexToUint64(tx.Gas)
	r.Nonce, _ = common.HexToUint64(tx.Nonce)
	if input, ok := common.HexToBytes(tx.Input); ok {
		r.InputData = input
	} else {
		r.InputData = []byte{}
	}
	return r
}

// decimalValue renders a hex wei amount in base 10. Amounts that are not
// valid 256-bit quantities become "0".
func decimalValue(hex string) string {
	b, ok := common.HexToBigInt(hex)
	if !ok {
		return "0"
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return "0"
	}
	return v.Dec()
}

// BatchMetadata describes one committed batch. It is written once and never
// changed.
type BatchMetadata struct {
	Partition    common.PartitionConfig `json:"partition"`
	MinBlock     *uint64                `json:"min_block"`
	MaxBlock     *uint64                `json:"max_block"`
	MinBlockTime time.Time              `json:"min_block_time"`
	MaxBlockTime time.Time              `json:"max_block_time"`
	TxCount      int                    `json:"tx_count"`
	FilePath     string                 `json:"file_path"`
	FileSize     int64                  `json:"file_size"`
	Checksum     string                 `json:"checksum"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewBatchMetadata summarizes records. Storage fields are filled in by the
// caller once the batch file exists.
func NewBatchMetadata(p common.PartitionConfig, records []TransactionRecord) BatchMetadata {
	m := BatchMetadata{Partition: p, TxCount: len(records), CreatedAt: time.Now().UTC()}
	for i := range records {
		r := &records[i]
		if m.MinBlockTime.IsZero() || r.BlockTime.Before(m.MinBlockTime) {
			m.MinBlockTime = r.BlockTime
		}
		if r.BlockTime.After(m.MaxBlockTime) {
			m.MaxBlockTime = r.BlockTime
		}
		if r.BlockNumber == nil {
			continue
		}
		n := *r.BlockNumber
		if m.MinBlock == nil || n < *m.MinBlock {
			m.MinBlock = &n
		}
		if m.MaxBlock == nil || n > *m.MaxBlock {
			v := n
			m.MaxBlock = &v
		}
	}
	return m
}
