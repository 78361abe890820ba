package observability

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// DB error classes
const (
	DBErrUniqueViolation = "unique_violation"
	DBErrTimeout         = "timeout"
	DBErrConnection      = "connection"
	DBErrUnknown         = "unknown"
)

// ObserveDB records latency and error class for one logical DB operation.
// A nil receiver just runs fn.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, ClassifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func ClassifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return DBErrUniqueViolation
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		case "57P01", "57P02", "57P03", "53300":
			return DBErrConnection
		default:
			return "pg_" + pgErr.Code
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return DBErrTimeout
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) {
		return DBErrConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return DBErrTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "closed pool"):
		return DBErrConnection
	default:
		return DBErrUnknown
	}
}

// IsUnavailable reports whether err means the store could not be reached in time.
func IsUnavailable(err error) bool {
	switch ClassifyDBErr(err) {
	case DBErrTimeout, DBErrConnection:
		return true
	}
	return false
}
