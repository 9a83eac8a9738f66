// Package archive writes expired dispatch ticks to object storage as
// zstd-compressed JSON Lines.
package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ContentType is the media type recorded on uploaded batches.
const ContentType = "application/zstd"

// EncodeJSONL writes one JSON document per line and compresses the result.
// An empty input produces a valid, empty zstd frame.
func EncodeJSONL[T any](records []T) ([]byte, error) {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encoding record %d: %w", i, err)
		}
	}

	w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer w.Close()
	return w.EncodeAll(raw.Bytes(), nil), nil
}

// DecodeJSONL reverses EncodeJSONL, returning each line undecoded.
func DecodeJSONL(data []byte) ([]json.RawMessage, error) {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer d.Close()

	plain, err := d.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	var out []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(plain))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, json.RawMessage(bytes.Clone(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading archive lines: %w", err)
	}
	return out, nil
}

// ObjectKey names a batch by the day of its oldest tick:
// ticks/YYYY/MM/DD/batch_<uuid>.jsonl.zst.
func ObjectKey(oldest time.Time) string {
	oldest = oldest.UTC()
	return fmt.Sprintf("ticks/%04d/%02d/%02d/batch_%s.jsonl.zst",
		oldest.Year(), oldest.Month(), oldest.Day(), uuid.NewString())
}
