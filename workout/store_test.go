package workout

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert"

	"github.com/kjk/workoutlog/backup"
	"github.com/kjk/workoutlog/journal"
	"github.com/kjk/workoutlog/require"
	"github.com/kjk/workoutlog/validate"
)

func openTestStore(t *testing.T, path string) *Store {
	s := &Store{
		Path:   path,
		NoSync: true,
	}
	assert.NoError(t, OpenStore(s))
	return s
}

func tempStorePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "workouts.txt")
}

func storeContent(t *testing.T, s *Store) map[string][]string {
	res := map[string][]string{}
	for _, date := range s.Dates() {
		entries, err := s.Entries(date)
		assert.NoError(t, err)
		res[date] = entries
	}
	return res
}

func fileSize(t *testing.T, path string) int64 {
	st, err := os.Stat(path)
	assert.NoError(t, err)
	return st.Size()
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "workouts.txt")
	s, err := Open(path)
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), fileSize(t, path))
	assert.Equal(t, []string{}, s.Dates())
}

func TestOpenErrors(t *testing.T) {
	err := OpenStore(&Store{})
	assert.Error(t, err)

	// path is a directory
	_, err = Open(t.TempDir())
	require.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, KindStorage, KindOf(err))

	var serr *StorageError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, "open", serr.Op)
}

func TestScenario(t *testing.T) {
	s := openTestStore(t, tempStorePath(t))
	assert.NoError(t, s.RegisterDate("2024-03-10"))
	assert.NoError(t, s.AppendEntry("2024-03-10", "squat_5_5_100.5kg"))

	got, err := s.DisplayEntries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squat | 5 | 5 | 100.5kg"}, got)

	got, err = s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squat_5_5_100.5kg"}, got)

	s.DisplaySeparator = " / "
	got, err = s.DisplayEntries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squat / 5 / 5 / 100.5kg"}, got)
}

func TestAppendWithoutRegister(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	err := s.AppendEntry("2099-01-01", "squat_5_5_100kg")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.False(t, s.Contains("2099-01-01"))
	assert.Equal(t, int64(0), fileSize(t, path))
}

func TestRegisterIdempotent(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.RegisterDate("2024-03-10"))
	assert.NoError(t, s.AppendEntry("2024-03-10", "squat_5_5_100kg"))
	size := fileSize(t, path)

	assert.NoError(t, s.RegisterDate("2024-03-10"))
	assert.Equal(t, size, fileSize(t, path))
	got, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squat_5_5_100kg"}, got)
}

func TestDuplicateEntriesKeepOrder(t *testing.T) {
	s := openTestStore(t, tempStorePath(t))
	assert.NoError(t, s.RegisterDate("2024-03-10"))
	entries := []string{"squat_5_5_100kg", "bench_3_8_60kg", "squat_5_5_100kg", "plank_3_1_60sec"}
	for _, e := range entries {
		assert.NoError(t, s.AppendEntry("2024-03-10", e))
	}
	got, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestEntriesIsCopy(t *testing.T) {
	s := openTestStore(t, tempStorePath(t))
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
	got, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	got[0] = "changed"
	_ = append(got, "more")
	got2, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{"squat_5_5_100kg"}, got2)
}

func TestClearRecord(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg", "bench_3_8_60kg"))
	assert.NoError(t, s.ClearRecord("2024-03-10"))
	assert.True(t, s.Contains("2024-03-10"))
	got, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Equal(t, []string{}, got)

	// clearing an empty record is a no-op
	size := fileSize(t, path)
	assert.NoError(t, s.ClearRecord("2024-03-10"))
	assert.Equal(t, size, fileSize(t, path))

	require.ErrorIs(t, s.ClearRecord("2024-03-11"), ErrNotFound)

	s2 := openTestStore(t, path)
	assert.Equal(t, map[string][]string{"2024-03-10": {}}, storeContent(t, s2))
}

func TestRemoveDate(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
	assert.NoError(t, s.RegisterDate("2024-03-11"))
	assert.NoError(t, s.RemoveDate("2024-03-10"))
	assert.False(t, s.Contains("2024-03-10"))
	_, err := s.Entries("2024-03-10")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.DisplayEntries("2024-03-10")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.RemoveDate("2024-03-10")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	s2 := openTestStore(t, path)
	assert.Equal(t, []string{"2024-03-11"}, s2.Dates())
}

func TestValidationBeforeStorage(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.RegisterDate("2024-03-10"))
	size := fileSize(t, path)

	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{s.RegisterDate("2024-3-10"), KindFormat},
		{s.RegisterDate("2023-02-29"), KindRange},
		{s.AppendEntry("2024-03-10", "squat_5_5_100lb"), KindFormat},
		{s.AppendEntry("2024-03-32", "squat_5_5_100kg"), KindRange},
		{s.Add("2024-03-11", "squat_5_5_100kg", "bad"), KindFormat},
		{s.ClearRecord("10-03-2024"), KindFormat},
		{s.RemoveDate("2024-02-30"), KindRange},
	}
	for i, test := range tests {
		assert.Equal(t, test.kind, KindOf(test.err), "test %d: %v", i, test.err)
	}
	_, err := s.Entries("2024-13-01")
	assert.Equal(t, KindRange, KindOf(err))
	assert.False(t, s.Contains("not a date"))
	assert.False(t, s.Contains("2024-03-11"))

	assert.Equal(t, size, fileSize(t, path))
	assert.Equal(t, []string{"2024-03-10"}, s.Dates())
}

func TestLeapDay(t *testing.T) {
	s := openTestStore(t, tempStorePath(t))
	assert.NoError(t, s.RegisterDate("2024-02-29"))
	require.ErrorIs(t, s.RegisterDate("2023-02-29"), ErrRange)
	// day 0 is accepted
	assert.NoError(t, s.RegisterDate("2024-02-00"))
	assert.Equal(t, []string{"2024-02-00", "2024-02-29"}, s.Dates())
}

func TestAdd(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10"))
	assert.True(t, s.Contains("2024-03-10"))
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg", "bench_3_8_60kg"))
	assert.NoError(t, s.Add("2024-03-10", "row_3_10_50kg"))

	s2 := openTestStore(t, path)
	exp := map[string][]string{
		"2024-03-10": {"squat_5_5_100kg", "bench_3_8_60kg", "row_3_10_50kg"},
	}
	assert.Equal(t, exp, storeContent(t, s2))
}

var testDates = []string{"2024-01-31", "2024-02-29", "2024-03-10", "2024-03-11", "2023-12-00"}
var testEntries = []string{"squat_5_5_100.5kg", "bench-press_3_8_60kg", "plank_3_1_90sec", "run_1_1_30min"}

// applyRandomOps runs n random operations on s and a reference map
func applyRandomOps(t *testing.T, rng *rand.Rand, s *Store, exp map[string][]string, n int) {
	for i := 0; i < n; i++ {
		date := testDates[rng.Intn(len(testDates))]
		_, exists := exp[date]
		switch rng.Intn(10) {
		case 0, 1:
			assert.NoError(t, s.RegisterDate(date))
			if !exists {
				exp[date] = []string{}
			}
		case 2, 3, 4, 5:
			e := testEntries[rng.Intn(len(testEntries))]
			err := s.AppendEntry(date, e)
			if !exists {
				require.ErrorIs(t, err, ErrNotFound)
				continue
			}
			assert.NoError(t, err)
			exp[date] = append(exp[date], e)
		case 6:
			err := s.ClearRecord(date)
			if !exists {
				require.ErrorIs(t, err, ErrNotFound)
				continue
			}
			assert.NoError(t, err)
			exp[date] = []string{}
		case 7:
			err := s.RemoveDate(date)
			if !exists {
				require.ErrorIs(t, err, ErrNotFound)
				continue
			}
			assert.NoError(t, err)
			delete(exp, date)
		default:
			e := testEntries[rng.Intn(len(testEntries))]
			assert.NoError(t, s.Add(date, e))
			exp[date] = append(exp[date], e)
		}
	}
}

func TestRoundtripRandom(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			path := tempStorePath(t)
			s := &Store{Path: path, NoSync: true, CompactThreshold: -1}
			assert.NoError(t, OpenStore(s))
			exp := map[string][]string{}
			applyRandomOps(t, rng, s, exp, 300)
			assert.Equal(t, exp, storeContent(t, s))

			s2 := &Store{Path: path, NoSync: true, CompactThreshold: -1}
			assert.NoError(t, OpenStore(s2))
			assert.Equal(t, exp, storeContent(t, s2))
		})
	}
}

func TestCompaction(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	path := tempStorePath(t)
	s := &Store{Path: path, NoSync: true, CompactThreshold: -1}
	assert.NoError(t, OpenStore(s))
	exp := map[string][]string{}
	applyRandomOps(t, rng, s, exp, 500)
	sizeBefore := fileSize(t, path)

	assert.NoError(t, s.Compact())
	assert.True(t, fileSize(t, path) < sizeBefore, "%d >= %d", fileSize(t, path), sizeBefore)
	assert.Equal(t, 0, s.obsolete())
	assert.Equal(t, len(s.records), s.nJournal)
	assert.Equal(t, exp, storeContent(t, s))

	// changes after compaction are appended to the new file
	assert.NoError(t, s.Add("2024-04-01", "squat_5_5_100kg"))
	exp["2024-04-01"] = []string{"squat_5_5_100kg"}

	s2 := openTestStore(t, path)
	assert.Equal(t, exp, storeContent(t, s2))
}

func TestAutoCompaction(t *testing.T) {
	path := tempStorePath(t)
	s := &Store{Path: path, NoSync: true, CompactThreshold: 10}
	assert.NoError(t, OpenStore(s))
	for i := 0; i < 20; i++ {
		assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
		assert.NoError(t, s.RemoveDate("2024-03-10"))
		assert.True(t, s.obsolete() <= 10, "obsolete records: %d", s.obsolete())
	}
	assert.NoError(t, s.RegisterDate("2024-03-11"))
	assert.True(t, fileSize(t, path) < 2000)

	s2 := openTestStore(t, path)
	assert.Equal(t, map[string][]string{"2024-03-11": {}}, storeContent(t, s2))
}

func TestCompactOnOpen(t *testing.T) {
	path := tempStorePath(t)
	s := &Store{Path: path, NoSync: true, CompactThreshold: -1}
	assert.NoError(t, OpenStore(s))
	for i := 0; i < 10; i++ {
		assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
		assert.NoError(t, s.ClearRecord("2024-03-10"))
	}
	sizeBefore := fileSize(t, path)

	s2 := &Store{Path: path, NoSync: true, CompactThreshold: 5}
	assert.NoError(t, OpenStore(s2))
	assert.True(t, fileSize(t, path) < sizeBefore)
	assert.Equal(t, 1, s2.nJournal)
}

func TestTornTail(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
	size := fileSize(t, path)

	// simulate a crash in the middle of an append
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NoError(t, err)
	_, err = f.WriteString("--- 42 1710000000000 entry\ndate: 2024-03-10\nentr")
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	s2 := openTestStore(t, path)
	assert.Equal(t, map[string][]string{"2024-03-10": {"squat_5_5_100kg"}}, storeContent(t, s2))
	assert.Equal(t, size, fileSize(t, path))

	// appends after recovery are readable
	assert.NoError(t, s2.AppendEntry("2024-03-10", "bench_3_8_60kg"))
	s3 := openTestStore(t, path)
	assert.Equal(t, map[string][]string{"2024-03-10": {"squat_5_5_100kg", "bench_3_8_60kg"}}, storeContent(t, s3))
}

func TestCorruptedJournal(t *testing.T) {
	tests := []string{
		"garbage\n",
		// entry for a date that was never registered
		"--- 42 1710000000000 entry\ndate: 2024-03-10\nentry: squat_5_5_100.5kg\n",
		// invalid date
		"--- 17 1710000000000 date\ndate: 2023-02-29\n",
		// invalid entry
		"--- 17 1710000000000 date\ndate: 2024-03-10\n--- 40 1710000000000 entry\ndate: 2024-03-10\nentry: squat_5_5_100.5\n",
		// remove of unknown date
		"--- 17 1710000000000 remove\ndate: 2024-03-10\n",
	}
	for i, content := range tests {
		path := filepath.Join(t.TempDir(), "workouts.txt")
		assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := Open(path)
		require.ErrorIs(t, err, ErrStorage)
		assert.Equal(t, KindStorage, KindOf(err), "test %d: %v", i, err)
		// file is not modified
		d, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.Equal(t, content, string(d))
	}
}

func TestWriteFailure(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))

	// make appends fail by replacing the journal with a directory
	assert.NoError(t, os.Remove(path))
	assert.NoError(t, os.Mkdir(path, 0755))

	err := s.AppendEntry("2024-03-10", "bench_3_8_60kg")
	require.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, KindStorage, KindOf(err))
	err = s.RegisterDate("2024-03-11")
	require.ErrorIs(t, err, ErrStorage)
	err = s.RemoveDate("2024-03-10")
	require.ErrorIs(t, err, ErrStorage)

	// memory is unchanged
	assert.Equal(t, map[string][]string{"2024-03-10": {"squat_5_5_100kg"}}, storeContent(t, s))
}

func TestBackup(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg", "bench_3_8_60kg"))
	assert.NoError(t, s.RegisterDate("2024-03-11"))
	exp := storeContent(t, s)

	dir := t.TempDir()
	for _, format := range []string{"zstd", "br", "gz", "txt"} {
		bkpPath, err := s.BackupToDir(filepath.Join(dir, "backups"), format)
		assert.NoError(t, err)
		f, err := backup.ParseFormat(format)
		assert.NoError(t, err)
		assert.Equal(t, f.Ext(), filepath.Ext(bkpPath))
		assert.Equal(t, "workouts-", filepath.Base(bkpPath)[:len("workouts-")])

		restored := filepath.Join(dir, "restored-"+format+".txt")
		assert.NoError(t, backup.Restore(bkpPath, restored))
		s2 := openTestStore(t, restored)
		assert.Equal(t, exp, storeContent(t, s2))
	}

	_, err := s.BackupToDir(dir, "rar")
	assert.Error(t, err)
}

func TestConcurrentAppends(t *testing.T) {
	path := tempStorePath(t)
	s := openTestStore(t, path)
	assert.NoError(t, s.RegisterDate("2024-03-10"))

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				errs <- s.AppendEntry("2024-03-10", "squat_5_5_100kg")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := s.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Len(t, got, 200)
	s2 := openTestStore(t, path)
	got, err = s2.Entries("2024-03-10")
	assert.NoError(t, err)
	assert.Len(t, got, 200)
}

func TestFormatEntry(t *testing.T) {
	assert.Equal(t, "squat | 5 | 5 | 100.5kg", FormatEntry("squat_5_5_100.5kg", " | "))
	assert.Equal(t, "bench-press 3 8 60kg", FormatEntry("bench-press_3_8_60kg", " "))
}

func TestAddCrashLeavesNoTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workouts.txt")
	s := openTestStore(t, path)
	assert.NoError(t, s.Add("2024-03-09", "run_1_1_30min"))
	sizeBefore := fileSize(t, path)
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg", "bench_3_8_60kg"))
	d, err := os.ReadFile(path)
	assert.NoError(t, err)
	exp := map[string][]string{"2024-03-09": {"run_1_1_30min"}}

	// a crash at any point while writing Add must look like Add never happened
	for n := sizeBefore + 1; n < int64(len(d)); n++ {
		cutPath := filepath.Join(dir, fmt.Sprintf("cut-%d.txt", n))
		assert.NoError(t, os.WriteFile(cutPath, d[:n], 0644))
		s2 := openTestStore(t, cutPath)
		assert.False(t, s2.Contains("2024-03-10"), "cut at %d", n)
		assert.Equal(t, exp, storeContent(t, s2), "cut at %d", n)
		assert.Equal(t, sizeBefore, fileSize(t, cutPath), "cut at %d", n)
	}

	s3 := openTestStore(t, path)
	exp["2024-03-10"] = []string{"squat_5_5_100kg", "bench_3_8_60kg"}
	assert.Equal(t, exp, storeContent(t, s3))
}

func TestCompactionKeepsLastChangeTime(t *testing.T) {
	path := tempStorePath(t)
	s := &Store{Path: path, NoSync: true, CompactThreshold: -1}
	assert.NoError(t, OpenStore(s))
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100kg"))
	assert.NoError(t, s.AppendEntry("2024-03-10", "bench_3_8_60kg"))
	assert.NoError(t, s.RegisterDate("2024-03-11"))
	updated := map[string]time.Time{}
	for date, tm := range s.updated {
		updated[date] = tm
	}

	assert.NoError(t, s.Compact())
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	recs, _, err := journal.ReadAll(f)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, journal.OpAdd, r.Op)
		assert.Equal(t, updated[r.Date].UnixMilli(), r.Timestamp.UnixMilli(), "%s", r.Date)
	}
	assert.Equal(t, []string{"squat_5_5_100kg", "bench_3_8_60kg"}, recs[0].Entries)
	assert.Len(t, recs[1].Entries, 0)
}

func TestExercises(t *testing.T) {
	s := openTestStore(t, tempStorePath(t))
	assert.NoError(t, s.Add("2024-03-10", "squat_5_5_100.5kg", "plank_3_1_90sec"))
	got, err := s.Exercises("2024-03-10")
	assert.NoError(t, err)
	exp := []validate.Exercise{
		{Name: "squat", Sets: 5, Reps: 5, Intensity: 100.5, Unit: "kg"},
		{Name: "plank", Sets: 3, Reps: 1, Intensity: 90, Unit: "sec"},
	}
	assert.Equal(t, exp, got)

	_, err = s.Exercises("2024-03-11")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Exercises("2024-3-11")
	require.ErrorIs(t, err, ErrFormat)
}
