package common

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexToUint64 parses a 0x-prefixed quantity. It reports false on anything
// that is not a valid hex number.
func HexToUint64(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	digits := s[2:]
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HexToBigInt parses a 0x-prefixed quantity of arbitrary size.
func HexToBigInt(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, false
	}
	return v, true
}

// HexToBytes decodes call data. Odd-length input is left-padded with a zero
// nibble the way most nodes tolerate it.
func HexToBytes(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return []byte{}, true
	}
	switch {
	case strings.HasPrefix(s, "0X"):
		s = "0x" + s[2:]
	case !strings.HasPrefix(s, "0x"):
		s = "0x" + s
	}
	if len(s)%2 == 1 {
		s = "0x0" + s[2:]
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
