package workout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kjk/workoutlog/backup"
	"github.com/kjk/workoutlog/journal"
	"github.com/kjk/workoutlog/log"
	"github.com/kjk/workoutlog/u"
	"github.com/kjk/workoutlog/validate"
)

const (
	// DefaultCompactThreshold is used when Store.CompactThreshold is 0
	DefaultCompactThreshold = 256
	// DefaultDisplaySeparator replaces '_' in DisplayEntries
	DefaultDisplaySeparator = " | "
)

// Store maps dates to ordered lists of exercise entries and mirrors
// the mapping to a journal file.
type Store struct {
	// path of the journal file, created if doesn't exist
	Path string
	// the journal is re-written when it has more than this many
	// obsolete records. 0 means DefaultCompactThreshold, < 0 disables
	// automatic compaction
	CompactThreshold int
	// replaces '_' in DisplayEntries, DefaultDisplaySeparator if empty
	DisplaySeparator string
	// if true, we don't fsync after every append.
	// Much faster but a crash might lose the last changes.
	NoSync bool

	path string
	// date => entries, an empty (non-nil) slice is a registered date
	// without entries
	records map[string][]string
	// date => time of the last change, kept by compaction
	updated map[string]time.Time
	// number of records in the journal file. A compacted journal
	// has one record per date
	nJournal int
	mu       sync.Mutex
}

// Open opens a store backed by a journal file at path
func Open(path string) (*Store, error) {
	s := &Store{
		Path: path,
	}
	if err := OpenStore(s); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenStore reads the journal and builds in-memory state of s.
// Options must be set on s before calling.
func OpenStore(s *Store) error {
	if s.Path == "" {
		return fmt.Errorf("store path is not set")
	}
	var err error
	s.path, err = filepath.Abs(s.Path)
	if err != nil {
		return storageErr("resolve", s.Path, err)
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return storageErr("mkdir", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return storageErr("open", s.path, err)
	}
	recs, validLen, err := journal.ReadAll(file)
	errClose := file.Close()
	if err == journal.ErrTorn {
		// the process crashed while appending so the change was never
		// reported as successful. It's safe to drop it
		log.Logf("workout: dropping partially written record at offset %d in '%s'\n", validLen, s.path)
		if err = journal.Truncate(s.path, validLen); err != nil {
			return storageErr("truncate", s.path, err)
		}
	}
	if err != nil {
		return storageErr("parse", s.path, err)
	}
	if errClose != nil {
		return storageErr("close", s.path, errClose)
	}

	s.records = map[string][]string{}
	s.updated = map[string]time.Time{}
	s.nJournal = 0
	for i, r := range recs {
		if err = checkRecord(r); err == nil {
			err = s.apply(r)
		}
		if err != nil {
			return storageErr("parse", s.path, fmt.Errorf("record %d (%s): %w", i, r, err))
		}
		s.nJournal++
	}
	log.Verbosef("workout: opened '%s', %d workouts, %d journal records\n", s.path, len(s.records), s.nJournal)
	s.maybeCompact()
	return nil
}

// a journal is only written by us so it should only have valid values
func checkRecord(r *journal.Record) error {
	if err := validate.Date(r.Date); err != nil {
		return err
	}
	if r.Op == journal.OpEntry {
		return validate.Entry(r.Entry)
	}
	for _, e := range r.Entries {
		if err := validate.Entry(e); err != nil {
			return err
		}
	}
	return nil
}

// apply updates in-memory state with a journal record
func (s *Store) apply(r *journal.Record) error {
	entries, exists := s.records[r.Date]
	if !exists && r.Op != journal.OpDate && r.Op != journal.OpAdd {
		return notFound(r.Date)
	}
	if entries == nil {
		entries = []string{}
	}
	switch r.Op {
	case journal.OpDate:
		s.records[r.Date] = entries
	case journal.OpEntry:
		s.records[r.Date] = append(entries, r.Entry)
	case journal.OpAdd:
		s.records[r.Date] = append(entries, r.Entries...)
	case journal.OpClear:
		s.records[r.Date] = []string{}
	case journal.OpRemove:
		delete(s.records, r.Date)
		delete(s.updated, r.Date)
		return nil
	default:
		return fmt.Errorf("unknown op '%s'", r.Op)
	}
	s.updated[r.Date] = r.Timestamp
	return nil
}

func (s *Store) mustBeOpen() {
	u.PanicIf(s.records == nil, "workout: store '%s' is not open, call OpenStore()", s.Path)
}

// write appends recs to the journal as one write and only then applies
// them to in-memory state. Must be called with s.mu locked.
func (s *Store) write(recs ...*journal.Record) error {
	timeStart := time.Now()
	for _, r := range recs {
		if r.Timestamp.IsZero() {
			r.Timestamp = timeStart
		}
	}
	if err := journal.Append(s.path, !s.NoSync, recs...); err != nil {
		return storageErr("append", s.path, err)
	}
	for _, r := range recs {
		// callers check everything apply() checks
		u.PanicIfErr(s.apply(r))
		s.nJournal++
		switch r.Op {
		case journal.OpEntry:
			log.Event("workout."+string(r.Op), "date", r.Date, "entry", r.Entry)
		case journal.OpAdd:
			log.Event("workout."+string(r.Op), "date", r.Date, "entries", strings.Join(r.Entries, " "))
		default:
			log.Event("workout."+string(r.Op), "date", r.Date)
		}
	}
	log.Verbosef("workout: appended %d records in %s\n", len(recs), time.Since(timeStart))
	s.maybeCompact()
	return nil
}

func (s *Store) compactThreshold() int {
	if s.CompactThreshold == 0 {
		return DefaultCompactThreshold
	}
	return s.CompactThreshold
}

// maybeCompact re-writes the journal if it has too many obsolete records.
// The journal is valid either way so a failure is only logged.
func (s *Store) maybeCompact() {
	threshold := s.compactThreshold()
	if threshold < 0 || s.obsolete() <= threshold {
		return
	}
	log.IfErrf(s.compact())
}

// obsolete returns how many journal records compaction would remove
func (s *Store) obsolete() int {
	return s.nJournal - len(s.records)
}

// snapshot returns the smallest journal that re-creates current state:
// one add record per date, in chronological order.
// A record's timestamp is the time of the last change of its date,
// times of earlier changes are not kept.
func (s *Store) snapshot() []*journal.Record {
	recs := make([]*journal.Record, 0, len(s.records))
	for _, date := range s.dates() {
		entries := s.records[date]
		r := &journal.Record{
			Op:        journal.OpAdd,
			Date:      date,
			Timestamp: s.updated[date],
		}
		if len(entries) > 0 {
			r.Entries = append([]string(nil), entries...)
		}
		recs = append(recs, r)
	}
	return recs
}

func (s *Store) compact() error {
	timeStart := time.Now()
	d, err := journal.MarshalAll(s.snapshot())
	if err != nil {
		return storageErr("compact", s.path, err)
	}
	if err = journal.WriteFileAtomically(s.path, d); err != nil {
		return storageErr("compact", s.path, err)
	}
	before := s.nJournal
	s.nJournal = len(s.records)
	log.EventWithDuration("workout.compact", time.Since(timeStart), "before", before, "after", s.nJournal)
	log.Verbosef("workout: compacted '%s' from %d to %d records\n", s.path, before, s.nJournal)
	return nil
}

// Compact re-writes the journal so that it only has records needed
// to re-create current state
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()
	return s.compact()
}

// RegisterDate creates an empty workout for date.
// Registering an existing date is a no-op.
func (s *Store) RegisterDate(date string) error {
	if err := validate.Date(date); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	if _, ok := s.records[date]; ok {
		return nil
	}
	return s.write(&journal.Record{Op: journal.OpDate, Date: date})
}

// AppendEntry adds entry at the end of workout for date.
// The date must be registered.
func (s *Store) AppendEntry(date string, entry string) error {
	if err := validate.Date(date); err != nil {
		return err
	}
	if err := validate.Entry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	if _, ok := s.records[date]; !ok {
		return notFound(date)
	}
	return s.write(&journal.Record{Op: journal.OpEntry, Date: date, Entry: entry})
}

// Add registers date (if needed) and appends entries to it.
// It's written as a single journal record so either all changes
// are saved or none, even if the process crashes while writing.
func (s *Store) Add(date string, entries ...string) error {
	if err := validate.Date(date); err != nil {
		return err
	}
	for _, e := range entries {
		if err := validate.Entry(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	if _, ok := s.records[date]; ok && len(entries) == 0 {
		return nil
	}
	r := &journal.Record{Op: journal.OpAdd, Date: date}
	if len(entries) > 0 {
		r.Entries = append([]string(nil), entries...)
	}
	return s.write(r)
}

// Entries returns a copy of entries for date, in storage form
func (s *Store) Entries(date string) ([]string, error) {
	if err := validate.Date(date); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	entries, ok := s.records[date]
	if !ok {
		return nil, notFound(date)
	}
	res := make([]string, len(entries))
	copy(res, entries)
	return res, nil
}

// Exercises returns entries for date parsed into fields
func (s *Store) Exercises(date string) ([]validate.Exercise, error) {
	entries, err := s.Entries(date)
	if err != nil {
		return nil, err
	}
	res := make([]validate.Exercise, len(entries))
	for i, e := range entries {
		// entries are validated before being stored
		res[i], err = validate.ParseEntry(e)
		u.PanicIfErr(err)
	}
	return res, nil
}

// FormatEntry converts entry from storage to display form,
// e.g. "squat_5_5_100kg" => "squat | 5 | 5 | 100kg" for " | " separator
func FormatEntry(entry string, sep string) string {
	return strings.ReplaceAll(entry, "_", sep)
}

func (s *Store) displaySeparator() string {
	if s.DisplaySeparator == "" {
		return DefaultDisplaySeparator
	}
	return s.DisplaySeparator
}

// DisplayEntries is like Entries but returns entries in display form
func (s *Store) DisplayEntries(date string) ([]string, error) {
	entries, err := s.Entries(date)
	if err != nil {
		return nil, err
	}
	sep := s.displaySeparator()
	for i, e := range entries {
		entries[i] = FormatEntry(e, sep)
	}
	return entries, nil
}

// ClearRecord removes all entries of date but keeps the date
func (s *Store) ClearRecord(date string) error {
	if err := validate.Date(date); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	entries, ok := s.records[date]
	if !ok {
		return notFound(date)
	}
	if len(entries) == 0 {
		return nil
	}
	return s.write(&journal.Record{Op: journal.OpClear, Date: date})
}

// RemoveDate removes date and all its entries
func (s *Store) RemoveDate(date string) error {
	if err := validate.Date(date); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	if _, ok := s.records[date]; !ok {
		return notFound(date)
	}
	return s.write(&journal.Record{Op: journal.OpRemove, Date: date})
}

// Contains returns true if date is registered.
// An invalid date is never registered.
func (s *Store) Contains(date string) bool {
	if validate.Date(date) != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	_, ok := s.records[date]
	return ok
}

func (s *Store) dates() []string {
	res := make([]string, 0, len(s.records))
	for date := range s.records {
		res = append(res, date)
	}
	// YYYY-MM-DD sorts chronologically
	sort.Strings(res)
	return res
}

// Dates returns registered dates in chronological order
func (s *Store) Dates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()
	return s.dates()
}

// Len returns number of registered dates
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// JournalPath returns absolute path of the journal file
func (s *Store) JournalPath() string {
	return s.path
}

// Backup writes a compacted copy of the store to dstPath, compressed
// according to its extension (see package backup)
func (s *Store) Backup(dstPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustBeOpen()

	d, err := journal.MarshalAll(s.snapshot())
	if err != nil {
		return storageErr("backup", dstPath, err)
	}
	if err = backup.Write(dstPath, d); err != nil {
		return storageErr("backup", dstPath, err)
	}
	log.Event("workout.backup", "path", dstPath, "size", len(d))
	return nil
}

// BackupToDir writes a backup named after the journal and current time
// to dir, in a given format ("zstd", "br", "gz", "txt").
// Returns path of the backup.
func (s *Store) BackupToDir(dir string, format string) (string, error) {
	f, err := backup.ParseFormat(format)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return "", storageErr("mkdir", dir, err)
	}
	base := u.TrimExt(filepath.Base(s.path))
	path := filepath.Join(dir, backup.FileName(base, time.Now(), f))
	return path, s.Backup(path)
}
