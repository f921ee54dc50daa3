package journal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ErrTorn is returned by Reader.Err() when the data ends in the middle
// of a record, which happens when a process crashes while appending
var ErrTorn = errors.New("journal: partially written record at the end")

// Reader reads (deserializes) journal records from a bufio.Reader
type Reader struct {
	r *bufio.Reader

	// Record is available after ReadNext().
	// It's over-written in next ReadNext().
	Record Record

	// position of the current record within the reader.
	// After ErrTorn it's where the partial record starts so that
	// the caller can truncate the file there.
	CurrRecordPos int64

	// position of the next record within the reader
	NextRecordPos int64

	data []byte
	err  error

	// true if reached end of file with io.EOF
	done bool
}

// NewReader creates a new reader
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r: r,
	}
}

// Done returns true if we're finished reading from the reader
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// Err returns error from last ReadNext. We swallow io.EOF to make it easier
// to use
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) setErr(format string, args ...any) bool {
	r.err = fmt.Errorf("journal: record at offset %d: %s", r.CurrRecordPos, fmt.Sprintf(format, args...))
	return false
}

// ReadNext reads next record, returns false when no more records.
// If returns false, check Err() to see if there were errors.
func (r *Reader) ReadNext() bool {
	if r.Done() {
		return false
	}
	r.CurrRecordPos = r.NextRecordPos

	// header in the format:
	// "--- ${size} ${timestamp_in_unix_epoch_ms} ${op}\n"
	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			r.err = err
			return false
		}
		if len(hdr) > 0 {
			r.err = ErrTorn
			return false
		}
		r.done = true
		return false
	}
	recSize := int64(len(hdr))

	rest, ok := bytes.CutPrefix(hdr[:len(hdr)-1], hdrPrefix)
	if !ok {
		return r.setErr("header '%s' doesn't start with '%s'", hdr[:len(hdr)-1], hdrPrefix)
	}
	parts := bytes.Split(rest, []byte{' '})
	if len(parts) != 3 {
		return r.setErr("unexpected header '%s'", rest)
	}
	size, err := strconv.ParseInt(string(parts[0]), 10, 64)
	if err != nil || size < 0 {
		return r.setErr("invalid size in header '%s'", rest)
	}
	timeMs, err := strconv.ParseInt(string(parts[1]), 10, 64)
	if err != nil || timeMs < 0 {
		return r.setErr("invalid timestamp in header '%s'", rest)
	}
	op := Op(parts[2])
	if !op.isValid() {
		return r.setErr("unknown op '%s'", op)
	}

	// re-use buffer, records are small
	if size > int64(cap(r.data)) {
		r.data = make([]byte, size)
	} else {
		r.data = r.data[:size]
	}
	_, err = io.ReadFull(r.r, r.data)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.err = ErrTorn
		} else {
			r.err = err
		}
		return false
	}
	recSize += size

	rec := &r.Record
	rec.Op = op
	rec.Timestamp = time.UnixMilli(timeMs)
	if err = unmarshalBody(r.data, rec); err != nil {
		return r.setErr("%s", err)
	}
	r.NextRecordPos += recSize
	return true
}

// ReadAll reads all records from r.
// If the data ends with a partially written record, the records before it
// are returned together with ErrTorn and validLen tells where the partial
// record starts. Any other error means the data is corrupted.
func ReadAll(r io.Reader) (recs []*Record, validLen int64, err error) {
	jr := NewReader(bufio.NewReader(r))
	for jr.ReadNext() {
		rec := jr.Record
		recs = append(recs, &rec)
	}
	err = jr.Err()
	if err == ErrTorn {
		return recs, jr.CurrRecordPos, err
	}
	if err != nil {
		return nil, 0, err
	}
	return recs, jr.NextRecordPos, nil
}
