// Package backup writes and restores compressed snapshots of a workout
// journal. Compression is picked from the file extension:
// .zst / .zstd (zstd), .br (brotli), .gz (gzip), anything else is plain.
package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/kjk/workoutlog/journal"
)

// Format is a compression format of a backup file
type Format string

const (
	FormatZstd   Format = "zstd"
	FormatBrotli Format = "br"
	FormatGzip   Format = "gz"
	FormatPlain  Format = "txt"
)

// Ext returns file extension (with a dot) for the format
func (f Format) Ext() string {
	switch f {
	case FormatZstd:
		return ".zst"
	case FormatBrotli:
		return ".br"
	case FormatGzip:
		return ".gz"
	}
	return ".txt"
}

// ParseFormat returns a format from its name, e.g. "zstd"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "zstd", "zst":
		return FormatZstd, nil
	case "br", "brotli":
		return FormatBrotli, nil
	case "gz", "gzip":
		return FormatGzip, nil
	case "txt", "plain", "":
		return FormatPlain, nil
	}
	return "", fmt.Errorf("unknown backup format '%s'", s)
}

// FormatFromPath guesses the format from file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return FormatZstd
	case ".br":
		return FormatBrotli
	case ".gz":
		return FormatGzip
	}
	return FormatPlain
}

// FileName returns a backup file name for a given time, e.g.
// workouts-20240310-153000.zst
func FileName(prefix string, t time.Time, f Format) string {
	return prefix + "-" + t.UTC().Format("20060102-150405") + f.Ext()
}

func getErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func zstdNewWriter(dst io.Writer) (*zstd.Encoder, error) {
	// journals are small, best compression is cheap
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
}

// Compress compresses d in a given format
func Compress(d []byte, f Format) ([]byte, error) {
	var dst bytes.Buffer
	switch f {
	case FormatZstd:
		w, err := zstdNewWriter(&dst)
		if err != nil {
			return nil, err
		}
		_, err = w.Write(d)
		err2 := w.Close()
		if err = getErr(err, err2); err != nil {
			return nil, err
		}
	case FormatBrotli:
		w := brotli.NewWriterLevel(&dst, brotli.BestCompression)
		_, err := w.Write(d)
		err2 := w.Close()
		if err = getErr(err, err2); err != nil {
			return nil, err
		}
	case FormatGzip:
		w, err := gzip.NewWriterLevel(&dst, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		_, err = w.Write(d)
		err2 := w.Close()
		if err = getErr(err, err2); err != nil {
			return nil, err
		}
	case FormatPlain:
		return append([]byte(nil), d...), nil
	default:
		return nil, fmt.Errorf("unknown backup format '%s'", f)
	}
	return dst.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(d []byte, f Format) ([]byte, error) {
	r := bytes.NewReader(d)
	switch f {
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case FormatBrotli:
		return io.ReadAll(brotli.NewReader(r))
	case FormatGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return io.ReadAll(gr)
	case FormatPlain:
		return d, nil
	}
	return nil, fmt.Errorf("unknown backup format '%s'", f)
}

// Write compresses journal data d (format based on extension of dstPath)
// and writes it atomically to dstPath
func Write(dstPath string, d []byte) error {
	cd, err := Compress(d, FormatFromPath(dstPath))
	if err != nil {
		return fmt.Errorf("compressing backup '%s': %w", dstPath, err)
	}
	return journal.WriteFileAtomically(dstPath, cd)
}

// Read reads and decompresses a backup and verifies it's a valid journal
func Read(path string) ([]byte, error) {
	cd, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Decompress(cd, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decompressing backup '%s': %w", path, err)
	}
	if _, _, err = journal.ReadAll(bytes.NewReader(d)); err != nil {
		return nil, fmt.Errorf("backup '%s' is not a valid journal: %w", path, err)
	}
	return d, nil
}

// Restore decompresses backup at srcPath and atomically replaces
// the journal at dstPath with it. The store using dstPath must be
// re-opened afterwards.
func Restore(srcPath string, dstPath string) error {
	d, err := Read(srcPath)
	if err != nil {
		return err
	}
	return journal.WriteFileAtomically(dstPath, d)
}
