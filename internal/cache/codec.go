package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Entry is one cached baseline. Absent marks a cell with no history in the
// baseline window, so repeated lookups for quiet cells also hit the cache.
type Entry struct {
	Absent bool    `json:"a,omitempty"`
	Median float64 `json:"m,omitempty"`
	Sigma  float64 `json:"s,omitempty"`
}

// codec serializes entries as zstd-compressed JSON. Encoders are safe for
// concurrent EncodeAll; decoders are pooled.
type codec struct {
	encoder  *zstd.Encoder
	decoders sync.Pool
}

func newCodec() *codec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	return &codec{
		encoder: enc,
		decoders: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

func (c *codec) encode(e Entry) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal baseline entry: %w", err)
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *codec) decode(data []byte) (Entry, error) {
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("zstd decompression failed: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal baseline entry: %w", err)
	}
	return e, nil
}
