package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes that mean the server refused to store more data.
const (
	pgDiskFull             = "53100"
	pgOutOfMemory          = "53200"
	pgProgramLimitExceeded = "54000"
)

// IsQuotaExceeded reports whether err is a Postgres resource-limit failure, i.e. the
// payload (or the server) is too large to accept the write as-is.
func IsQuotaExceeded(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgDiskFull, pgOutOfMemory, pgProgramLimitExceeded:
		return true
	}
	return false
}
