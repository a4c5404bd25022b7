package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var _ usecase.Store = (*SQLStore)(nil)

// SQLStore persists to Postgres (pgx driver) or SQLite (modernc driver).
// Queries are written with "?" placeholders and rebound for Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens the database, checks connectivity, and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one connection: ":memory:" databases are per connection and
		// SQLite serializes writers anyway
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const insertCardSQL = `INSERT INTO sim_cards (
	id, serial_number, batch_id, lot_number, status, team_id, assigned_to_user_id,
	sold_by_user_id, customer_name, customer_phone, sold_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertMany writes the chunk in one transaction.
func (s *SQLStore) InsertMany(ctx context.Context, cards []entity.SimCard) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertCardSQL))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err = stmt.ExecContext(ctx,
			c.ID, c.SerialNumber, c.BatchID, c.LotNumber, string(c.Status),
			c.TeamID, c.AssignedToUserID, c.SoldByUserID,
			c.CustomerName, c.CustomerPhone, c.SoldAt, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert serial %s: %w", c.SerialNumber, mapErr(err))
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *SQLStore) DeleteByBatch(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sim_cards WHERE batch_id = ?`), batchID); err != nil {
		return fmt.Errorf("delete batch %s: %w", batchID, err)
	}
	return nil
}

const batchColumns = `id, status, err, started_at, ended_at, total, inserted, failed, percent, rollback_state`

func (s *SQLStore) CreateBatch(ctx context.Context, meta entity.Batch) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sim_batches (`+batchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		meta.ID, string(meta.Status), meta.Err, meta.StartedAt, meta.EndedAt,
		meta.Total, meta.Inserted, meta.Failed, meta.Percent, meta.RollbackState,
	)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *SQLStore) UpdateBatch(ctx context.Context, batchID string, fn func(meta *entity.Batch)) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta, err := scanBatch(tx.QueryRowContext(ctx, s.rebind(`SELECT `+batchColumns+` FROM sim_batches WHERE id = ?`), batchID))
	if err != nil {
		return err
	}

	fn(&meta)

	if _, err = tx.ExecContext(ctx, s.rebind(`UPDATE sim_batches SET status = ?, err = ?, started_at = ?, ended_at = ?,
		total = ?, inserted = ?, failed = ?, percent = ?, rollback_state = ? WHERE id = ?`),
		string(meta.Status), meta.Err, meta.StartedAt, meta.EndedAt,
		meta.Total, meta.Inserted, meta.Failed, meta.Percent, meta.RollbackState, batchID,
	); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) GetBatch(ctx context.Context, batchID string) (entity.Batch, error) {
	return scanBatch(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+batchColumns+` FROM sim_batches WHERE id = ?`), batchID))
}

const cardColumns = `id, serial_number, batch_id, lot_number, status, team_id, assigned_to_user_id,
	sold_by_user_id, customer_name, customer_phone, sold_at, created_at`

func (s *SQLStore) ListCards(ctx context.Context, filter usecase.CardFilter, page, pageSize int) ([]entity.SimCard, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.BatchID != "" {
		conds = append(conds, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM sim_cards`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cards: %w", err)
	}

	query := `SELECT ` + cardColumns + ` FROM sim_cards` + where + ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]entity.SimCard, 0, pageSize)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, card)
	}

	return items, total, rows.Err()
}

func (s *SQLStore) GetCard(ctx context.Context, serial string) (entity.SimCard, error) {
	return scanCard(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+cardColumns+` FROM sim_cards WHERE serial_number = ?`), serial))
}

func (s *SQLStore) UpdateCard(ctx context.Context, serial string, fn func(card *entity.SimCard) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err := scanCard(tx.QueryRowContext(ctx, s.rebind(`SELECT `+cardColumns+` FROM sim_cards WHERE serial_number = ?`), serial))
	if err != nil {
		return err
	}

	if err = fn(&card); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, s.rebind(`UPDATE sim_cards SET status = ?, team_id = ?, assigned_to_user_id = ?,
		sold_by_user_id = ?, customer_name = ?, customer_phone = ?, sold_at = ? WHERE serial_number = ?`),
		string(card.Status), card.TeamID, card.AssignedToUserID, card.SoldByUserID,
		card.CustomerName, card.CustomerPhone, card.SoldAt, serial,
	); err != nil {
		return fmt.Errorf("update card: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) AppendActivity(ctx context.Context, act entity.Activity) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sim_activities (id, batch_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?)`),
		act.ID, act.BatchID, string(act.Kind), act.Detail, act.CreatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *SQLStore) ListActivities(ctx context.Context, batchID string) ([]entity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, batch_id, kind, detail, created_at FROM sim_activities WHERE batch_id = ? ORDER BY created_at, id`), batchID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := []entity.Activity{}
	for rows.Next() {
		var (
			act  entity.Activity
			kind string
		)
		if err := rows.Scan(&act.ID, &act.BatchID, &kind, &act.Detail, &act.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		act.Kind = entity.EventType(kind)
		out = append(out, act)
	}

	return out, rows.Err()
}

// rebind turns "?" placeholders into "$1, $2, ..." for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (entity.Batch, error) {
	var (
		meta   entity.Batch
		status string
	)
	err := row.Scan(&meta.ID, &status, &meta.Err, &meta.StartedAt, &meta.EndedAt,
		&meta.Total, &meta.Inserted, &meta.Failed, &meta.Percent, &meta.RollbackState)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Batch{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	meta.Status = entity.BatchStatus(status)
	return meta, nil
}

func scanCard(row rowScanner) (entity.SimCard, error) {
	var (
		card                       entity.SimCard
		status                     string
		teamID, assignedTo, soldBy sql.NullString
	)
	err := row.Scan(&card.ID, &card.SerialNumber, &card.BatchID, &card.LotNumber, &status,
		&teamID, &assignedTo, &soldBy, &card.CustomerName, &card.CustomerPhone, &card.SoldAt, &card.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.SimCard{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.SimCard{}, fmt.Errorf("scan card: %w", err)
	}
	card.Status = entity.SimStatus(status)
	card.TeamID = nullable(teamID)
	card.AssignedToUserID = nullable(assignedTo)
	card.SoldByUserID = nullable(soldBy)
	return card, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// mapErr turns unique-key violations from either driver into ErrConflict.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, pkgerror.ErrConflict)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		unique := code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
		if unique {
			return fmt.Errorf("%s: %w", liteErr.Error(), pkgerror.ErrConflict)
		}
	}

	return err
}
