// Package fileio reads file contents and metadata for analysis,
// classifying each file as text or binary before anything is held in
// memory.
package fileio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// sniffLen is how many leading bytes are inspected for the binary
// check before the full content is read.
const sniffLen = 8192

// FileData is the result of reading one file. For binary and oversize
// files Content is always empty; only metadata is populated.
type FileData struct {
	Size    int64
	Ext     string
	ModTime time.Time
	Binary  bool
	Content string

	// DecodeFailed marks a file that looked like text in the leading
	// sample but turned out not to be valid UTF-8 in full, so it was
	// downgraded to binary instead of failing the read.
	DecodeFailed bool

	// Oversize marks a file whose size exceeded the reader's limit;
	// content was deliberately not loaded.
	Oversize bool
}

// Reader performs safe file reads. maxSize of 0 means no size limit.
type Reader struct {
	maxSize int64
	logger  *zap.Logger
}

// NewReader returns a Reader. A nil logger falls back to a no-op one.
func NewReader(maxSize int64, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{maxSize: maxSize, logger: logger}
}

// Read loads metadata and, for text files within the size limit, the
// full content of the file at path. An error return means the file
// could not be opened or statted; callers are expected to record it
// and move on rather than abort.
func (r *Reader) Read(path string) (FileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileData{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileData{}, fmt.Errorf("stat %s: %w", path, err)
	}

	data := FileData{
		Size:    info.Size(),
		Ext:     filepath.Ext(path),
		ModTime: info.ModTime(),
	}

	// Empty files are valid text with no content.
	if data.Size == 0 {
		return data, nil
	}

	if r.maxSize > 0 && data.Size > r.maxSize {
		r.logger.Debug("skipping content of oversize file",
			zap.String("path", path),
			zap.Int64("size", data.Size),
			zap.Int64("limit", r.maxSize))
		data.Oversize = true
		return data, nil
	}

	sample := make([]byte, sniffLen)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FileData{}, fmt.Errorf("reading %s: %w", path, err)
	}
	sample = sample[:n]

	if isBinary(sample, n == sniffLen) {
		data.Binary = true
		return data, nil
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		return FileData{}, fmt.Errorf("reading %s: %w", path, err)
	}
	full := append(sample, rest...)

	// The sample looked like text but the whole file does not decode:
	// downgrade to binary rather than erroring out.
	if !utf8.Valid(full) {
		r.logger.Debug("decode failure, downgrading to binary", zap.String("path", path))
		data.Binary = true
		data.DecodeFailed = true
		return data, nil
	}

	data.Content = string(full)
	return data, nil
}

// isBinary classifies a leading sample. A null byte is a certain
// binary marker; otherwise the sample must be valid UTF-8. When the
// sample was truncated at sniffLen, up to utf8.UTFMax-1 trailing bytes
// may belong to a rune cut in half and are excluded from validation.
func isBinary(sample []byte, truncated bool) bool {
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(sample) > 0; i++ {
			if utf8.Valid(sample) {
				return false
			}
			sample = sample[:len(sample)-1]
		}
	}
	return !utf8.Valid(sample)
}
