// Package journal appends per-tick simulation output to a zstd-compressed
// log so a session can be replayed or inspected after the fact. Writes are
// best-effort; a journal failure never stalls the tick loop.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Recorder writes one JSON document per line into a zstd stream.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

// Open creates (or truncates) the journal at path.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		file.Close()
		return nil, err
	}
	buf := bufio.NewWriter(zw)
	return &Recorder{
		file: file,
		zw:   zw,
		buf:  buf,
		enc:  json.NewEncoder(buf),
	}, nil
}

// Record appends one entry. Encoder output is newline-delimited already.
func (r *Recorder) Record(entry any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(entry)
}

// Close flushes and closes the stream.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.buf.Flush(); err != nil {
		r.zw.Close()
		r.file.Close()
		return err
	}
	if err := r.zw.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Replay streams every entry of a journal, decoded as raw JSON, to fn.
// Iteration stops on the first fn error.
func Replay(path string, fn func(json.RawMessage) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	for dec.More() {
		var entry json.RawMessage
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("decode journal entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}
