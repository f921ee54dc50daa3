// Package journal implements the on-disk format of the workout store:
// an append-only, line-oriented log of changes (register date, append entry,
// clear date, remove date, add a date with several entries at once).
//
// Appends are robust: a failed write is truncated away and a record
// torn by a crash is detected by the Reader (see ErrTorn).
// WriteFileAtomically is used to replace the whole journal with a compacted
// version.
package journal
