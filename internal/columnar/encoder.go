package columnar

import (
	"fmt"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
)

// Column positions in Schema.
const (
	colNetwork = iota
	colSubnet
	colVMType
	colBlockTime
	colYear
	colMonth
	colDay
	colHour
	colBlockHash
	colBlockNumber
	colTxHash
	colTxIndex
	colFromAddress
	colToAddress
	colValue
	colGasPrice
	colGasLimit
	colNonce
	colInputData
	colSuccess
)

var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "network", Type: arrow.BinaryTypes.String},
	{Name: "subnet", Type: arrow.BinaryTypes.String},
	{Name: "vm_type", Type: arrow.BinaryTypes.String},
	{Name: "block_time", Type: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}},
	{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	{Name: "month", Type: arrow.PrimitiveTypes.Int32},
	{Name: "day", Type: arrow.PrimitiveTypes.Int32},
	{Name: "hour", Type: arrow.PrimitiveTypes.Int32},
	{Name: "block_hash", Type: arrow.BinaryTypes.String},
	{Name: "block_number", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
	{Name: "tx_hash", Type: arrow.BinaryTypes.String},
	{Name: "tx_index", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "from_address", Type: arrow.BinaryTypes.String},
	{Name: "to_address", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "value", Type: arrow.BinaryTypes.String},
	{Name: "gas_price", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "gas_limit", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "nonce", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "input_data", Type: arrow.BinaryTypes.Binary},
	{Name: "success", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// ColumnNames returns the table columns in schema order.
func ColumnNames() []string {
	names := make([]string, len(Schema.Fields()))
	for i, f := range Schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// EncodeColumnar builds a record batch holding records in input order. It
// returns nil for an empty input. The caller owns the record and must
// Release it.
func EncodeColumnar(records []TransactionRecord) arrow.Record {
	if len(records) == 0 {
		return nil
	}

	b := array.NewRecordBuilder(memory.NewGoAllocator(), Schema)
	defer b.Release()
	b.Reserve(len(records))

	network := b.Field(colNetwork).(*array.StringBuilder)
	subnet := b.Field(colSubnet).(*array.StringBuilder)
	vmType := b.Field(colVMType).(*array.StringBuilder)
	blockTime := b.Field(colBlockTime).(*array.TimestampBuilder)
	year := b.Field(colYear).(*array.Int32Builder)
	month := b.Field(colMonth).(*array.Int32Builder)
	day := b.Field(colDay).(*array.Int32Builder)
	hour := b.Field(colHour).(*array.Int32Builder)
	blockHash := b.Field(colBlockHash).(*array.StringBuilder)
	blockNumber := b.Field(colBlockNumber).(*array.Uint64Builder)
	txHash := b.Field(colTxHash).(*array.StringBuilder)
	txIndex := b.Field(colTxIndex).(*array.Uint64Builder)
	from := b.Field(colFromAddress).(*array.StringBuilder)
	to := b.Field(colToAddress).(*array.StringBuilder)
	value := b.Field(colValue).(*array.StringBuilder)
	gasPrice := b.Field(colGasPrice).(*array.Uint64Builder)
	gasLimit := b.Field(colGasLimit).(*array.Uint64Builder)
	nonce := b.Field(colNonce).(*array.Uint64Builder)
	input := b.Field(colInputData).(*array.BinaryBuilder)
	success := b.Field(colSuccess).(*array.BooleanBuilder)

	for i := range records {
		r := &records[i]
		network.Append(r.Network)
		subnet.Append(r.Subnet)
		vmType.Append(r.VMType)
		blockTime.Append(arrow.Timestamp(r.BlockTime.UnixMicro()))
		year.Append(r.Year)
		month.Append(r.Month)
		day.Append(r.Day)
		hour.Append(r.Hour)
		blockHash.Append(r.BlockHash)
		if r.BlockNumber != nil {
			blockNumber.Append(*r.BlockNumber)
		} else {
			blockNumber.AppendNull()
		}
		txHash.Append(r.TxHash)
		txIndex.Append(r.TxIndex)
		from.Append(r.FromAddress)
		if r.ToAddress != nil {
			to.Append(*r.ToAddress)
		} else {
			to.AppendNull()
		}
		value.Append(r.Value)
		gasPrice.Append(r.GasPrice)
		gasLimit.Append(r.GasLimit)
		nonce.Append(r.Nonce)
		input.Append(r.InputData)
		success.Append(r.Success)
	}

	return b.NewRecord()
}

// RowArgs returns the values of one row in column order, ready to be bound
// to a prepared insert. Null cells are returned as untyped nil.
func RowArgs(rec arrow.Record, row int) ([]any, error) {
	if rec == nil || row < 0 || row >= int(rec.NumRows()) {
		return nil, fmt.Errorf("row %d out of range", row)
	}
	args := make([]any, rec.NumCols())
	for i, col := range rec.Columns() {
		if col.IsNull(row) {
			args[i] = nil
			continue
		}
		switch c := col.(type) {
		case *array.String:
			args[i] = c.Value(row)
		case *array.Timestamp:
			args[i] = time.UnixMicro(int64(c.Value(row))).UTC()
		case *array.Int32:
			args[i] = c.Value(row)
		case *array.Uint64:
			args[i] = c.Value(row)
		case *array.Binary:
			// the builder's buffer is released with the record
			v := c.Value(row)
			cp := make([]byte, len(v))
			copy(cp, v)
			args[i] = cp
		case *array.Boolean:
			args[i] = c.Value(row)
		default:
			return nil, fmt.Errorf("unsupported column type %s for %s", col.DataType(), rec.ColumnName(i))
		}
	}
	return args, nil
}
