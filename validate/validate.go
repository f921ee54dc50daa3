// Package validate checks the textual forms used by the workout log:
// dates (YYYY-MM-DD) and exercise entries (name_sets_reps_intensity+unit).
//
// Functions are pure: no state and no I/O.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrFormat is returned when a date or entry doesn't match the required syntax
	ErrFormat = errors.New("invalid format")
	// ErrRange is returned for a well-formed date that names an impossible day
	ErrRange = errors.New("date out of range")
)

var (
	rxDate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	rxEntry = regexp.MustCompile(`^[A-Za-z-]+_\d+_\d+_\d+(\.\d+)?(kg|sec|min)$`)
)

// Units lists valid intensity units
var Units = []string{"kg", "sec", "min"}

// IsLeapYear returns true if year has 29 days in February
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns number of days in a month (1-12) of a given year.
// Returns 0 if month is out of range.
func DaysInMonth(year int, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

// Date returns an error if s is not a valid YYYY-MM-DD date.
// Day 00 is accepted, matching the historical behavior of the log.
func Date(s string) error {
	if !rxDate.MatchString(s) {
		return fmt.Errorf("%w: date '%s' should be formatted YYYY-MM-DD", ErrFormat, s)
	}
	// can't fail, the regexp guarantees digits
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[5:7])
	day, _ := strconv.Atoi(s[8:10])

	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d in '%s'", ErrRange, month, s)
	}
	if n := DaysInMonth(year, month); day > n {
		return fmt.Errorf("%w: day %d in '%s', %04d-%02d has %d days", ErrRange, day, s, year, month, n)
	}
	return nil
}

// Entry returns an error if s is not a valid exercise entry
// in storage form, e.g. "squat_5_5_100.5kg"
func Entry(s string) error {
	if !rxEntry.MatchString(s) {
		return fmt.Errorf("%w: exercise '%s' should be formatted name_sets_reps_intensity(kg|sec|min)", ErrFormat, s)
	}
	return nil
}

// Exercise is a parsed entry
type Exercise struct {
	Name      string
	Sets      int
	Reps      int
	Intensity float64
	Unit      string
}

// ParseEntry validates s and splits it into fields
func ParseEntry(s string) (Exercise, error) {
	var res Exercise
	if err := Entry(s); err != nil {
		return res, err
	}
	parts := strings.Split(s, "_")
	// name can't contain '_' so we always get exactly 4 parts
	res.Name = parts[0]
	var err error
	if res.Sets, err = strconv.Atoi(parts[1]); err != nil {
		return res, fmt.Errorf("%w: sets in '%s': %w", ErrFormat, s, err)
	}
	if res.Reps, err = strconv.Atoi(parts[2]); err != nil {
		return res, fmt.Errorf("%w: reps in '%s': %w", ErrFormat, s, err)
	}
	last := parts[3]
	for _, unit := range Units {
		if v, ok := strings.CutSuffix(last, unit); ok {
			res.Unit = unit
			last = v
			break
		}
	}
	if res.Intensity, err = strconv.ParseFloat(last, 64); err != nil {
		return res, fmt.Errorf("%w: intensity in '%s': %w", ErrFormat, s, err)
	}
	return res, nil
}
