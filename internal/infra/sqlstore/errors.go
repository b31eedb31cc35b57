package sqlstore

import (
	"errors"
	"fmt"

	"github.com/uptrace/bun/driver/pgdriver"
	// Also registers the pure Go "sqlite" driver used by OpenSQLite.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"quiz-readiness-service/internal/domain"
)

// Postgres SQLSTATEs that mean "try again later".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// classify maps driver lock/serialization failures onto domain.ErrContention
// and leaves everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %v", domain.ErrContention, err)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", domain.ErrContention, err)
		}
	}
	return err
}
