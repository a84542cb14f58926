package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/golang/snappy"
)

var errCorruptBlock = errors.New("store: corrupt sample block")

// encodeBlock packs one batch of raw samples: a uvarint count, varint
// timestamp deltas (the first relative to zero), then the x and y columns
// as little-endian float64. The result is snappy-compressed.
func encodeBlock(ts []int64, xs, ys []float64) []byte {
	n := len(ts)
	buf := make([]byte, 0, binary.MaxVarintLen64*(n+1)+16*n)
	buf = binary.AppendUvarint(buf, uint64(n))
	var prev int64
	for _, t := range ts {
		buf = binary.AppendVarint(buf, t-prev)
		prev = t
	}
	for _, x := range xs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	for _, y := range ys {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(y))
	}
	return snappy.Encode(nil, buf)
}

// decodeBlock reverses encodeBlock.
func decodeBlock(payload []byte) (ts []int64, xs, ys []float64, err error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", errCorruptBlock, err)
	}

	count, k := binary.Uvarint(raw)
	if k <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: bad count", errCorruptBlock)
	}
	raw = raw[k:]
	if count > uint64(len(raw)) {
		return nil, nil, nil, fmt.Errorf("%w: count %d exceeds payload", errCorruptBlock, count)
	}
	n := int(count)

	ts = make([]int64, n)
	var prev int64
	for i := range ts {
		d, k := binary.Varint(raw)
		if k <= 0 {
			return nil, nil, nil, fmt.Errorf("%w: timestamp %d", errCorruptBlock, i)
		}
		raw = raw[k:]
		prev += d
		ts[i] = prev
	}

	if len(raw) != 16*n {
		return nil, nil, nil, fmt.Errorf("%w: %d coordinate bytes for %d samples", errCorruptBlock, len(raw), n)
	}
	xs = make([]float64, n)
	ys = make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		ys[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*(n+i):]))
	}
	return ts, xs, ys, nil
}
