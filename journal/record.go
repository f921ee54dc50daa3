package journal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

/*
A journal is a line-oriented, human-readable, append-only file of records.

Each record is a header line followed by a body of "key: value" lines:

--- ${body_len} ${timestamp_in_unix_epoch_ms} ${op}\n
date: 2024-03-10\n
entry: squat_5_5_100.5kg\n

The body always ends with '\n' and body_len includes it.

An "add" record carries any number of "entry:" lines, in order. It's how
a change that touches more than one entry is written: the whole change
is a single record so a crash can't leave only a part of it in the file.
*/

// Op is the kind of change a record describes
type Op string

const (
	// OpDate registers a date with no entries
	OpDate Op = "date"
	// OpEntry appends an entry to a registered date
	OpEntry Op = "entry"
	// OpClear removes all entries of a date, keeping the date
	OpClear Op = "clear"
	// OpRemove removes a date and its entries
	OpRemove Op = "remove"
	// OpAdd registers a date (if not registered) and appends
	// zero or more entries to it
	OpAdd Op = "add"
)

const (
	keyDate  = "date"
	keyEntry = "entry"
)

var hdrPrefix = []byte("--- ")

// Record is a single change to the store
type Record struct {
	Op    Op
	Date  string
	Entry   string   // only for OpEntry
	Entries []string // only for OpAdd
	// when writing, if not provided we use current time
	Timestamp time.Time
}

func (op Op) isValid() bool {
	switch op {
	case OpDate, OpEntry, OpClear, OpRemove, OpAdd:
		return true
	}
	return false
}

func (r *Record) String() string {
	switch r.Op {
	case OpEntry:
		return fmt.Sprintf("%s %s %s", r.Op, r.Date, r.Entry)
	case OpAdd:
		return fmt.Sprintf("%s %s %s", r.Op, r.Date, strings.Join(r.Entries, " "))
	}
	return fmt.Sprintf("%s %s", r.Op, r.Date)
}

func serializableOnLine(s string) bool {
	n := len(s)
	for i := 0; i < n; i++ {
		b := s[i]
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}

func checkValue(key, val string) error {
	if val == "" {
		return fmt.Errorf("empty value for '%s'", key)
	}
	if !serializableOnLine(val) {
		return fmt.Errorf("value '%q' for '%s' must be printable ascii", val, key)
	}
	return nil
}

// Validate returns an error if the record can't be written
func (r *Record) Validate() error {
	if !r.Op.isValid() {
		return fmt.Errorf("unknown op '%s'", r.Op)
	}
	if err := checkValue(keyDate, r.Date); err != nil {
		return err
	}
	if r.Op != OpAdd && len(r.Entries) > 0 {
		return fmt.Errorf("op '%s' can't have a list of entries", r.Op)
	}
	if r.Op == OpEntry {
		return checkValue(keyEntry, r.Entry)
	}
	if r.Entry != "" {
		return fmt.Errorf("op '%s' can't have an entry", r.Op)
	}
	for _, e := range r.Entries {
		if err := checkValue(keyEntry, e); err != nil {
			return err
		}
	}
	return nil
}

func writeKeyValue(buf *bytes.Buffer, key, val string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(val)
	buf.WriteByte('\n')
}

func (r *Record) marshalBody(buf *bytes.Buffer) {
	writeKeyValue(buf, keyDate, r.Date)
	if r.Op == OpEntry {
		writeKeyValue(buf, keyEntry, r.Entry)
	}
	for _, e := range r.Entries {
		writeKeyValue(buf, keyEntry, e)
	}
}

// Marshal appends serialized r to wb. If r.Timestamp is zero,
// uses current time.
func (r *Record) Marshal(wb *bytes.Buffer) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var body bytes.Buffer
	r.marshalBody(&body)
	t := r.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	wb.Write(MarshalLine(string(r.Op), t, body.Bytes(), nil))
	return nil
}

// MarshalAll serializes records in order
func MarshalAll(recs []*Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range recs {
		if err := r.Marshal(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// MarshalLine frames d as a record named name.
// If t is time.Zero(), it's not marshalled.
// Re-uses wb if provided.
func MarshalLine(name string, t time.Time, d []byte, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	// it's ok to estimate more, estimating less will require an alloc
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 32)

	wb.Write(hdrPrefix)
	dataLen := len(d)
	wb.WriteString(strconv.Itoa(dataLen))
	if !t.IsZero() {
		wb.WriteByte(' ')
		wb.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	}
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	// for readability, if the data doesn't end with newline,
	// we add one at the end
	if dataLen > 0 {
		wb.Write(d)
		if d[dataLen-1] != '\n' {
			wb.WriteByte('\n')
		}
	}
	return wb.Bytes()
}

// unmarshalBody parses "key: value" lines of a record body into r
func unmarshalBody(d []byte, r *Record) error {
	r.Date = ""
	r.Entry = ""
	r.Entries = nil
	for len(d) > 0 {
		idx := bytes.IndexByte(d, '\n')
		if idx == -1 {
			return fmt.Errorf("missing '\\n' at the end of '%s'", d)
		}
		line := d[:idx]
		d = d[idx+1:]
		key, val, ok := bytes.Cut(line, []byte(": "))
		if !ok {
			return fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		switch string(key) {
		case keyDate:
			if r.Date != "" {
				return fmt.Errorf("duplicate '%s' in record", keyDate)
			}
			r.Date = string(val)
		case keyEntry:
			if r.Op == OpAdd {
				r.Entries = append(r.Entries, string(val))
				continue
			}
			if r.Entry != "" {
				return fmt.Errorf("duplicate '%s' in record", keyEntry)
			}
			r.Entry = string(val)
		default:
			return fmt.Errorf("unknown key '%s'", key)
		}
	}
	return r.Validate()
}
