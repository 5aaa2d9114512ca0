// Package codec stores JSON documents zstd-compressed.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// JSON is safe for concurrent use.
type JSON struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewJSON() (*JSON, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &JSON{encoder: encoder, decoder: decoder}, nil
}

func (c *JSON) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *JSON) Unmarshal(data []byte, v any) error {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	return json.Unmarshal(raw, v)
}
