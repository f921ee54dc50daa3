package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Append appends records to the journal at path, creating it if needed.
// If sync is true, the data is flushed to disk before returning.
// If writing fails, the file is truncated back to its previous size
// so that a failed append leaves no trace.
func Append(path string, sync bool, recs ...*Record) error {
	var buf bytes.Buffer
	for _, r := range recs {
		if err := r.Marshal(&buf); err != nil {
			return err
		}
	}
	return appendToFileRobust(path, buf.Bytes(), sync)
}

func appendToFileRobust(path string, data []byte, sync bool) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	off, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return err
	}
	_, err = file.Write(data)
	if err == nil && sync {
		err = file.Sync()
	}
	if err != nil {
		err = undoAppend(file, off, err)
		file.Close()
		return err
	}
	return file.Close()
}

type truncater interface {
	Truncate(size int64) error
}

// undoAppend cuts f back to off after a failed write so that a partial
// record doesn't end up in the middle of the file once later appends
// succeed. If that fails too, both errors are returned.
func undoAppend(f truncater, off int64, err error) error {
	if errTrunc := f.Truncate(off); errTrunc != nil {
		return errors.Join(err, fmt.Errorf("truncate to %d: %w", off, errTrunc))
	}
	return err
}

// Truncate cuts the journal at path to size. Used to drop a partially
// written record at the end.
func Truncate(path string, size int64) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	err = file.Truncate(size)
	if err == nil {
		err = file.Sync()
	}
	err2 := file.Close()
	if err != nil {
		return err
	}
	return err2
}

// WriteFileAtomically writes data to a temporary file in the same directory
// as path, syncs it and renames it over path.
// Either the whole data ends up in path or path is unchanged.
// Some references:
// - https://lwn.net/Articles/457667/
func WriteFileAtomically(path string, data []byte) error {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(dir, fName+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	didRename := false
	defer func() {
		if !didRename {
			// ignoring error on this one
			_ = os.Remove(tmpPath)
		}
	}()

	_, err = tmpFile.Write(data)
	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()
	if err = firstErr(err, errSync, errClose); err != nil {
		return fmt.Errorf("writing '%s': %w", tmpPath, err)
	}
	// this will over-write path (if it exists)
	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}
	didRename = true
	// for extra protection against crashes elsewhere,
	// sync directory after rename
	fdir, _ := os.Open(dir)
	if fdir != nil {
		// ignore errors as those are a nice have, not must have
		_ = fdir.Sync()
		_ = fdir.Close()
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
