package oracle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WordSize is the width of one encoded clear value.
const WordSize = 32

// EncodeClearValues packs values as consecutive 32-byte big-endian words in
// category order.
func EncodeClearValues(values []uint64) []byte {
	out := make([]byte, 0, len(values)*WordSize)
	for _, v := range values {
		out = append(out, common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), WordSize)...)
	}
	return out
}

// DecodeClearValues unpacks exactly arity words. Each word must fit in uint64.
func DecodeClearValues(data []byte, arity int) ([]uint64, error) {
	if arity <= 0 || len(data) != arity*WordSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedClearValues, arity*WordSize, len(data))
	}
	out := make([]uint64, arity)
	for i := range out {
		word := new(big.Int).SetBytes(data[i*WordSize : (i+1)*WordSize])
		if !word.IsUint64() {
			return nil, fmt.Errorf("%w: value %d exceeds uint64", ErrMalformedClearValues, i)
		}
		out[i] = word.Uint64()
	}
	return out, nil
}
