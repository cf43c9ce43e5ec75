package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/lib/pq"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	sentryService "github.com/parcelbase/parcelbase/internal/sentry"
)

// PostgreSQL error codes the repositories branch on
const (
	pgErrUniqueViolation = "23505"
	pgErrCheckViolation  = "23514"
	pgErrInvalidText     = "22P02"

	pgClassConnectionException = "08"
	pgClassTransactionRollback = "40"
	pgClassInsufficientRes     = "53"
	pgClassOperatorIntervene   = "57"
)

const spanOp = "db.postgres"

func startSpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	return sentryService.StartRepositorySpan(ctx, spanOp, repository, operation, params)
}

// isTransient reports failures worth retrying: lost connections, timeouts,
// serialization failures and server restarts.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code.Class()) {
		case pgClassConnectionException, pgClassTransactionRollback, pgClassInsufficientRes, pgClassOperatorIntervene:
			return true
		}
	}
	return false
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// wrapError converts a driver error into a marked error. hint is shown to
// the operator for failures that are not more specific.
func wrapError(err error, hint string, details map[string]any) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	case pqCode(err) == pgErrUniqueViolation:
		return ierr.WithError(err).
			WithHint("A record with the same key already exists").
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	case pqCode(err) == pgErrCheckViolation:
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrInvalidOperation)
	case pqCode(err) == pgErrInvalidText:
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	case isTransient(err):
		return ierr.WithError(err).
			WithHint("The database is temporarily unavailable, please try again").
			WithReportableDetails(details).
			Mark(ierr.ErrUnavailable)
	default:
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}
}

// paginate appends ORDER BY, LIMIT and OFFSET. sortable maps api sort keys
// to columns; unknown keys fall back to created_at.
func paginate(query string, args []interface{}, sort, order string, limit, offset int, sortable map[string]string) (string, []interface{}) {
	column, ok := sortable[sort]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if order == "asc" {
		direction = "ASC"
	}
	query += " ORDER BY " + column + " " + direction + ", id " + direction
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT " + placeholder(len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += " OFFSET " + placeholder(len(args))
	}
	return query, args
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
