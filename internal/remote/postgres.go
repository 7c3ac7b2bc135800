package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore upserts straight into PostgreSQL with INSERT ... ON CONFLICT.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Upsert(ctx context.Context, spec TableSpec, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query, args := buildUpsert(spec, rows)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("%w: %s: %s (%s)", ErrRejected, spec.Name, pqErr.Message, pqErr.Code)
		}
		return fmt.Errorf("%w: %s: %v", ErrNetwork, spec.Name, err)
	}

	affected, _ := res.RowsAffected()
	s.logger.Debug("Upserted rows",
		zap.String("table", spec.Name),
		zap.Int("rows", len(rows)),
		zap.Int64("affected", affected),
	)
	return nil
}

// buildUpsert renders one multi-row statement. Missing columns are NULL.
func buildUpsert(spec TableSpec, rows []Row) (string, []any) {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = pq.QuoteIdentifier(c)
	}

	conflict := make(map[string]bool, len(spec.Conflict))
	conflictCols := make([]string, len(spec.Conflict))
	for i, c := range spec.Conflict {
		conflict[c] = true
		conflictCols[i] = pq.QuoteIdentifier(c)
	}

	var sets []string
	for _, c := range spec.Columns {
		if !conflict[c] {
			q := pq.QuoteIdentifier(c)
			sets = append(sets, q+" = EXCLUDED."+q)
		}
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*len(spec.Columns))
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(spec.Name), strings.Join(cols, ", "))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c, col := range spec.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, row[col])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictCols, ", "), strings.Join(sets, ", "))

	return b.String(), args
}
