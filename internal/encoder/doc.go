// Package encoder turns a batch of buffered Kafka records into a file.
//
// Two formats are supported:
//
//   - Parquet: columnar, one row per record, timestamps as TIMESTAMP_MICROS
//   - Avro: Object Container File with an embedded schema
//
// Build encoders through a Factory so the codec is checked against the format:
//
//	factory := encoder.NewFactory(event.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := enc.Encode(filePath, records)
//
// FileStats carries the record count, file size and the offset range of the
// batch, which the sink reports back through the emitter's done callback.
//
// Supported codecs:
//
//	Parquet: "snappy" (default), "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip" (default), "uncompressed"
//
// Gzip-wrapped Avro files get the ".avro.gz" extension.
//
// Encoders hold no per-batch state and are safe for concurrent use, which
// lets thread-mode emitters of several partitions share one instance.
package encoder
