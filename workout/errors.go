package workout

import (
	"errors"
	"fmt"

	"github.com/kjk/workoutlog/validate"
)

var (
	// ErrFormat means a date or entry doesn't match the required syntax
	ErrFormat = validate.ErrFormat
	// ErrRange means a well-formed date names an impossible day
	ErrRange = validate.ErrRange
	// ErrNotFound means the date is not registered in the store
	ErrNotFound = errors.New("workout not found")
	// ErrStorage means reading or writing the backing file failed
	ErrStorage = errors.New("storage error")
	// ErrNoCurrentDate is returned by Tracker methods that use
	// the current date before any date was set. It's also ErrNotFound.
	ErrNoCurrentDate = fmt.Errorf("%w: no current date", ErrNotFound)
)

// StorageError records a failed file operation
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s '%s': %s", ErrStorage, e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for every *StorageError
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

func notFound(date string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, date)
}

// ErrorKind classifies errors returned by this package
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindFormat
	KindRange
	KindNotFound
	KindStorage
	// not returned by this package
	KindOther
)

var kindNames = []string{"none", "format", "range", "not found", "storage", "other"}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf returns the kind of err, KindNone if err is nil
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStorage):
		// checked first: a corrupted journal is reported as a storage
		// error that wraps the reason
		return KindStorage
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrRange):
		return KindRange
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindOther
}
