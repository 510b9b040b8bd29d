package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBusy reports that another writer held the database past the busy
// timeout.
var ErrBusy = errors.New("pin database is locked by another writer")

// IsBusy checks if an error is a SQLite lock error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// wrapBusy replaces a driver lock error with ErrBusy, keeping the original
// text for the log.
func wrapBusy(err error) error {
	if err == nil || errors.Is(err, ErrBusy) || !IsBusy(err) {
		return err
	}
	return fmt.Errorf("%w (%v)", ErrBusy, err)
}
