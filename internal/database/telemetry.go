package database

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tradeway/forecast-service/internal/logging"
	"github.com/tradeway/forecast-service/internal/telemetry"
)

const defaultSlowQueryThreshold = 500 * time.Millisecond

// Pool is the subset of *pgxpool.Pool the service uses. pgxmock pools
// satisfy it as well.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// TracedDB wraps a pool and opens a client span per statement.
type TracedDB struct {
	Pool               Pool
	logger             *logrus.Logger
	events             *logging.StandardLogger
	slowQueryThreshold time.Duration
}

// NewTracedDB creates a new traced database connection
func NewTracedDB(pool Pool, logger *logrus.Logger) *TracedDB {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TracedDB{
		Pool:               pool,
		logger:             logger,
		events:             logging.NewStandardLoggerWithWriter(io.Discard, "error"),
		slowQueryThreshold: defaultSlowQueryThreshold,
	}
}

// WithEventLogger records every statement as a database_operation event.
func (db *TracedDB) WithEventLogger(events *logging.StandardLogger) *TracedDB {
	if events != nil {
		db.events = events
	}
	return db
}

func (db *TracedDB) startSpan(ctx context.Context, name string, sql string) (context.Context, trace.Span) {
	return telemetry.GetDatabaseTracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operationName(sql)),
			attribute.String("db.statement", sql),
		),
	)
}

func (db *TracedDB) finish(span trace.Span, op, sql string, start time.Time, rows int64, err error) {
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("db.duration_ms", duration.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		telemetry.SetSpanStatus(span, codes.Ok, "")
	}
	span.End()

	db.events.LogDatabaseOperation(op, tableName(sql), duration.Milliseconds(), rows)

	if duration >= db.slowQueryThreshold {
		db.logger.WithFields(logrus.Fields{
			"operation":   op,
			"duration_ms": duration.Milliseconds(),
		}).Warn("Slow database operation")
	}
}

// Query executes a query that returns rows.
func (db *TracedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, span := db.startSpan(ctx, "db.query", sql)
	start := time.Now()
	rows, err := db.Pool.Query(ctx, sql, args...)
	db.finish(span, "query", sql, start, 0, err)
	return rows, err
}

// QueryRow executes a query that returns a single row. Errors surface on Scan.
func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, span := db.startSpan(ctx, "db.query_row", sql)
	start := time.Now()
	row := db.Pool.QueryRow(ctx, sql, args...)
	db.finish(span, "query_row", sql, start, 0, nil)
	return row
}

// Exec executes a statement without returning rows.
func (db *TracedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, span := db.startSpan(ctx, "db.exec", sql)
	start := time.Now()
	tag, err := db.Pool.Exec(ctx, sql, args...)
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	db.finish(span, "exec", sql, start, tag.RowsAffected(), err)
	return tag, err
}

// CopyFrom bulk-loads rows into tableName.
func (db *TracedDB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	stmt := "COPY " + tableName.Sanitize()
	ctx, span := db.startSpan(ctx, "db.copy_from", stmt)
	start := time.Now()
	n, err := db.Pool.CopyFrom(ctx, tableName, columnNames, rowSrc)
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	db.finish(span, "copy_from", stmt, start, n, err)
	return n, err
}

// Ping verifies the connection to the database.
func (db *TracedDB) Ping(ctx context.Context) error {
	ctx, span := db.startSpan(ctx, "db.ping", "")
	start := time.Now()
	err := db.Pool.Ping(ctx)
	db.finish(span, "ping", "", start, 0, err)
	return err
}

// operationName returns the leading SQL keyword in upper case.
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

var tableModifiers = map[string]bool{"IF": true, "NOT": true, "EXISTS": true, "ONLY": true}

// tableName returns the identifier following the first FROM, INTO, TABLE,
// TRUNCATE or COPY keyword, without quotes.
func tableName(sql string) string {
	fields := strings.Fields(sql)
	for i := 0; i < len(fields)-1; i++ {
		switch strings.ToUpper(fields[i]) {
		case "FROM", "INTO", "TABLE", "TRUNCATE", "COPY":
			j := i + 1
			for j < len(fields)-1 && tableModifiers[strings.ToUpper(fields[j])] {
				j++
			}
			return strings.Trim(strings.TrimRight(fields[j], ",;("), `"`)
		}
	}
	return ""
}

// RecordDatabaseError records err on the span in ctx, if any.
func RecordDatabaseError(ctx context.Context, err error, operation string) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("db.operation", operation)))
	span.SetStatus(codes.Error, operation+" failed")
}

// AddDatabaseSpanAttributes adds table and row count to the span in ctx.
func AddDatabaseSpanAttributes(ctx context.Context, table string, rows int64) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("db.sql.table", table),
		attribute.Int64("db.rows", rows),
	)
}
