package encoder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/bufemit/pkg/encoder"
	"github.com/jittakal/bufemit/pkg/event"
)

// Factory builds encoders for one configured format and codec.
type Factory struct {
	format      event.FileFormat
	compression string
}

// NewFactory creates a new encoder factory. An empty compression selects
// the format default.
func NewFactory(format event.FileFormat, compression string) *Factory {
	if compression == "" {
		compression = DefaultCompression(format)
	}
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder returns a fresh encoder for the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	if !slices.Contains(SupportedCompressions(f.format), strings.ToLower(f.compression)) {
		return nil, fmt.Errorf("unsupported compression %q for format %s", f.compression, f.format)
	}
	switch f.format {
	case event.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case event.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{
		event.FormatParquet,
		event.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format event.FileFormat) []string {
	switch format {
	case event.FormatParquet:
		return []string{"uncompressed", "none", "snappy", "gzip", "lz4", "zstd"}
	case event.FormatAvro:
		return []string{"uncompressed", "none", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format event.FileFormat) string {
	switch format {
	case event.FormatParquet:
		return "snappy"
	case event.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}
