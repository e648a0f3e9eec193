package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor packs integer columns (timestamps, counter values) for the
// journal using delta-of-delta encoding followed by zstd
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a new compressor. Levels 1-4 map to the zstd
// speed presets from fastest to best compression.
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Compress encodes a column of int64 values. Evenly spaced input (minute
// timestamps, index counters) collapses to a run of zero deltas.
func (c *Compressor) Compress(column []int64) ([]byte, error) {
	if len(column) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	buf.Grow(len(column) * 8)

	// First value as-is
	if err := binary.Write(buf, binary.LittleEndian, column[0]); err != nil {
		return nil, err
	}

	var prevDelta int64
	for i := 1; i < len(column); i++ {
		delta := column[i] - column[i-1]
		if err := binary.Write(buf, binary.LittleEndian, delta-prevDelta); err != nil {
			return nil, err
		}
		prevDelta = delta
	}

	return c.encoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/4)), nil
}

// Decompress reverses Compress. count must match the original length.
func (c *Compressor) Decompress(data []byte, count int) ([]int64, error) {
	if len(data) == 0 || count == 0 {
		return nil, nil
	}

	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(decompressed) != count*8 {
		return nil, fmt.Errorf("decompressed %d bytes, expected %d values", len(decompressed), count)
	}

	buf := bytes.NewReader(decompressed)
	column := make([]int64, count)

	if err := binary.Read(buf, binary.LittleEndian, &column[0]); err != nil {
		return nil, err
	}

	var prevDelta int64
	for i := 1; i < count; i++ {
		var deltaOfDelta int64
		if err := binary.Read(buf, binary.LittleEndian, &deltaOfDelta); err != nil {
			return nil, err
		}

		delta := deltaOfDelta + prevDelta
		column[i] = column[i-1] + delta
		prevDelta = delta
	}

	return column, nil
}

// Close releases the zstd encoder and decoder
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
