// Package workout is a personal exercise log: for every date (YYYY-MM-DD)
// it keeps an ordered list of exercise entries and mirrors them to a file.
//
// # Entries
//
// An entry is stored as "<name>_<sets>_<reps>_<intensity><unit>", e.g.
// "squat_5_5_100.5kg", where unit is one of kg, sec, min.
// DisplayEntries returns them as "squat | 5 | 5 | 100.5kg".
//
// # Basic Usage
//
//	s, err := workout.Open("workouts.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = s.RegisterDate("2024-03-10")
//	err = s.AppendEntry("2024-03-10", "squat_5_5_100.5kg")
//	entries, err := s.Entries("2024-03-10")
//
// Tracker wraps a Store and remembers the current date:
//
//	t := workout.NewTracker(s)
//	err = t.AddWorkout("2024-03-11")
//	err = t.AddExercise("bench-press_3_8_60kg")
//	exercises, err := t.CurrentWorkout()
//
// # Storage
//
// The file is a journal (see package journal): every change is appended
// as a single record and flushed to disk before the call returns, so a crash
// never leaves half of a change. When the journal has enough obsolete records
// it's atomically re-written with one record per date.
//
// # Errors
//
// Errors match one of ErrFormat, ErrRange, ErrNotFound, ErrStorage with
// errors.Is(). KindOf(err) returns the same as an ErrorKind.
//
// # Thread Safety
//
// Store and Tracker are safe for concurrent use within a process.
// Only one process should use a given file.
package workout
