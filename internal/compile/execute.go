package compile

import (
	"context"
	"errors"
	"time"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/logging"
	"github.com/kyleking/report-engine/internal/report"
	"github.com/kyleking/report-engine/internal/storage"
)

// ExecutionResult carries the rows of one executed report query along
// with its column metadata, the compiled statement, and timing
type ExecutionResult struct {
	Columns      []OutputColumn
	Rows         [][]interface{}
	RowCount     int
	ElapsedMS    int64
	SQL          string
	Bindings     []interface{}
	JoinedTables []string
}

// Executor compiles and runs report queries against the database
type Executor struct {
	db       *storage.DB
	compiler *Compiler
	timeout  time.Duration
}

// NewExecutor creates an executor with the configured timeout ceiling.
// A non-positive timeout disables the ceiling.
func NewExecutor(db *storage.DB, compiler *Compiler, timeout time.Duration) *Executor {
	return &Executor{db: db, compiler: compiler, timeout: timeout}
}

// Execute compiles the configuration and runs it. The timeout ceiling
// is enforced twice: as a context deadline handed to the driver, and as
// a post-hoc elapsed-time check for drivers that return results after
// the deadline has technically passed.
func (e *Executor) Execute(ctx context.Context, cfg *report.QueryConfig) (*ExecutionResult, error) {
	logger := logging.GetLogger()

	compiled, err := e.compiler.Compile(cfg)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	logger.WithFields(map[string]interface{}{
		"table":    cfg.Table.Name,
		"sql":      compiled.SQL,
		"bindings": len(compiled.Bindings),
	}).Debug("executing report query")

	start := time.Now()

	names, rows, err := e.db.QueryRows(ctx, compiled.SQL, compiled.Bindings...)

	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, enginerrors.Wrapf(err, enginerrors.ErrTypeTimeout,
				"query exceeded the %s execution limit", e.timeout)
		}

		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeDatabase, "query execution failed")
	}

	if e.timeout > 0 && elapsed > e.timeout {
		return nil, enginerrors.Newf(enginerrors.ErrTypeTimeout,
			"query took %s, exceeding the %s execution limit", elapsed.Round(time.Millisecond), e.timeout)
	}

	logger.WithFields(map[string]interface{}{
		"table":      cfg.Table.Name,
		"rows":       len(rows),
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("report query completed")

	return &ExecutionResult{
		Columns:      alignColumns(compiled.Columns, names),
		Rows:         rows,
		RowCount:     len(rows),
		ElapsedMS:    elapsed.Milliseconds(),
		SQL:          compiled.SQL,
		Bindings:     compiled.Bindings,
		JoinedTables: joinedTables(compiled),
	}, nil
}

// joinedTables lists every joined table as "table AS alias" in join
// order
func joinedTables(compiled *CompiledQuery) []string {
	joins := make([]string, 0, len(compiled.AutoJoins)+len(compiled.ManualJoins))
	for _, join := range compiled.AutoJoins {
		joins = append(joins, join.Table+" AS "+join.Alias)
	}

	for _, join := range compiled.ManualJoins {
		joins = append(joins, join.Table+" AS "+join.Alias)
	}

	return joins
}

// alignColumns matches compiled column metadata to the names the driver
// actually returned, falling back to bare string columns on mismatch
func alignColumns(compiled []OutputColumn, names []string) []OutputColumn {
	if len(compiled) == len(names) {
		return compiled
	}

	columns := make([]OutputColumn, len(names))
	for i, name := range names {
		columns[i] = OutputColumn{Name: name, Label: name, Type: "string"}
	}

	return columns
}
