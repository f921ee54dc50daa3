package workout

import (
	"path/filepath"
	"sync"

	"github.com/kjk/workoutlog/backup"
	"github.com/kjk/workoutlog/config"
	"github.com/kjk/workoutlog/log"
	"github.com/kjk/workoutlog/validate"
)

// Tracker is what a front-end talks to. It wraps a Store and remembers
// the last date it was given (current date) so that follow-up calls
// can omit it.
type Tracker struct {
	// directory for Backup, "backups" next to the journal if empty
	BackupDir string
	// format for Backup, see backup.ParseFormat. "zstd" if empty
	BackupFormat string

	store *Store

	currentDate string
	mu          sync.Mutex
}

// NewTracker creates a tracker over an opened store
func NewTracker(s *Store) *Tracker {
	return &Tracker{
		store: s,
	}
}

// OpenTracker opens a store at path and returns a tracker for it
func OpenTracker(path string) (*Tracker, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewTracker(s), nil
}

// OpenFromConfig sets up logging and opens a store as described by c
func OpenFromConfig(c *config.Config) (*Tracker, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log.Init(&log.Config{
		Dir:     c.LogDir,
		Verbose: c.Verbose,
	})
	s := &Store{
		Path:             c.File,
		CompactThreshold: c.CompactThreshold,
		DisplaySeparator: c.DisplaySeparator,
		NoSync:           c.NoSync,
	}
	if err := OpenStore(s); err != nil {
		return nil, err
	}
	t := NewTracker(s)
	t.BackupDir = c.BackupDir
	t.BackupFormat = c.BackupFormat
	return t, nil
}

// Store returns the underlying store
func (t *Tracker) Store() *Store {
	return t.store
}

// CurrentDate returns the last date successfully used, "" if none
func (t *Tracker) CurrentDate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDate
}

func (t *Tracker) setCurrentDate(date string) {
	t.mu.Lock()
	t.currentDate = date
	t.mu.Unlock()
}

func (t *Tracker) getCurrentDate() (string, error) {
	date := t.CurrentDate()
	if date == "" {
		return "", ErrNoCurrentDate
	}
	return date, nil
}

// AddWorkout registers a workout for date and makes it current
func (t *Tracker) AddWorkout(date string) error {
	if err := t.store.RegisterDate(date); err != nil {
		return err
	}
	t.setCurrentDate(date)
	return nil
}

// AddWorkoutWithExercise registers a workout for date (if needed),
// adds the exercise and makes the date current
func (t *Tracker) AddWorkoutWithExercise(date string, exercise string) error {
	if err := t.store.Add(date, exercise); err != nil {
		return err
	}
	t.setCurrentDate(date)
	return nil
}

// AddExercise adds the exercise to the current workout
func (t *Tracker) AddExercise(exercise string) error {
	// validate first so that a bad exercise is reported as such
	// even without current date
	if err := validate.Entry(exercise); err != nil {
		return err
	}
	date, err := t.getCurrentDate()
	if err != nil {
		return err
	}
	return t.store.AppendEntry(date, exercise)
}

// Workout returns exercises of a workout for date in display form
// and makes the date current
func (t *Tracker) Workout(date string) ([]string, error) {
	res, err := t.store.DisplayEntries(date)
	if err != nil {
		return nil, err
	}
	t.setCurrentDate(date)
	return res, nil
}

// CurrentWorkout returns exercises of the current workout in display form
func (t *Tracker) CurrentWorkout() ([]string, error) {
	date, err := t.getCurrentDate()
	if err != nil {
		return nil, err
	}
	return t.store.DisplayEntries(date)
}

// CurrentWorkoutRaw returns exercises of the current workout in storage form
func (t *Tracker) CurrentWorkoutRaw() ([]string, error) {
	date, err := t.getCurrentDate()
	if err != nil {
		return nil, err
	}
	return t.store.Entries(date)
}

// ClearWorkout removes all exercises from a workout for date
func (t *Tracker) ClearWorkout(date string) error {
	if err := t.store.ClearRecord(date); err != nil {
		return err
	}
	t.setCurrentDate(date)
	return nil
}

// ClearCurrentWorkout removes all exercises from the current workout
func (t *Tracker) ClearCurrentWorkout() error {
	date, err := t.getCurrentDate()
	if err != nil {
		return err
	}
	return t.store.ClearRecord(date)
}

// HasWorkout returns true if there's a workout for date.
// A valid date becomes current even if there's no workout for it.
func (t *Tracker) HasWorkout(date string) bool {
	if validate.Date(date) != nil {
		return false
	}
	t.setCurrentDate(date)
	return t.store.Contains(date)
}

// RemoveWorkout removes a workout for date
func (t *Tracker) RemoveWorkout(date string) error {
	if err := t.store.RemoveDate(date); err != nil {
		return err
	}
	t.setCurrentDate(date)
	return nil
}

// Backup writes a timestamped backup of the store to BackupDir.
// Returns path of the backup.
func (t *Tracker) Backup() (string, error) {
	dir := t.BackupDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(t.store.JournalPath()), "backups")
	}
	format := t.BackupFormat
	if format == "" {
		format = string(backup.FormatZstd)
	}
	return t.store.BackupToDir(dir, format)
}

// CurrentExercises returns exercises of the current workout parsed into fields
func (t *Tracker) CurrentExercises() ([]validate.Exercise, error) {
	date, err := t.getCurrentDate()
	if err != nil {
		return nil, err
	}
	return t.store.Exercises(date)
}
