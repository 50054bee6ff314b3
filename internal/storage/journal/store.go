package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"taskboard/internal/models"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// ErrNotFound is returned when a move record does not exist.
var ErrNotFound = errors.New("move record not found")

// Store persists the move journal in SQLite or MySQL.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	now    func() time.Time
}

// Filter narrows ListMoves. Zero fields match everything.
type Filter struct {
	Kind    models.TaskKind
	TaskID  string
	ActorID string
	Outcome models.MoveOutcome
	Limit   int
}

// Open connects to the journal database and runs the migrations. For SQLite
// dsn is a file path; for MySQL it is a go-sql-driver DSN.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty journal dsn")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var conn *sql.DB
	var err error
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		conn, err = sql.Open(DriverSQLite, fmt.Sprintf("file:%s?_busy_timeout=5000", dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime=") {
			dsn += sep(dsn) + "parseTime=true"
		}
		conn, err = sql.Open(DriverMySQL, dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		conn.SetMaxOpenConns(8)
		conn.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	s := &Store{db: conn, driver: driver, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Debug("journal opened", slog.String("driver", driver))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports which database backs the store.
func (s *Store) Driver() string {
	return s.driver
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func sep(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}

func (s *Store) migrate() error {
	var stmts []string
	switch s.driver {
	case DriverMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS moves (
                id CHAR(36) NOT NULL PRIMARY KEY,
                kind VARCHAR(32) NOT NULL,
                task_id VARCHAR(64) NOT NULL,
                actor_id VARCHAR(64) NOT NULL,
                actor_role VARCHAR(32) NOT NULL,
                from_status VARCHAR(32) NOT NULL,
                to_status VARCHAR(32) NOT NULL,
                from_index INT NOT NULL,
                to_index INT NOT NULL,
                outcome VARCHAR(16) NOT NULL,
                error TEXT NOT NULL,
                created_at DATETIME(6) NOT NULL,
                INDEX idx_moves_task (task_id, created_at),
                INDEX idx_moves_created (created_at)
            ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS moves (
                id TEXT PRIMARY KEY,
                kind TEXT NOT NULL,
                task_id TEXT NOT NULL,
                actor_id TEXT NOT NULL,
                actor_role TEXT NOT NULL,
                from_status TEXT NOT NULL,
                to_status TEXT NOT NULL,
                from_index INTEGER NOT NULL,
                to_index INTEGER NOT NULL,
                outcome TEXT NOT NULL,
                error TEXT NOT NULL DEFAULT '',
                created_at DATETIME NOT NULL
            );`,
			`CREATE INDEX IF NOT EXISTS idx_moves_task ON moves(task_id, created_at);`,
			`CREATE INDEX IF NOT EXISTS idx_moves_created ON moves(created_at);`,
		}
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// RecordMove appends a move to the journal, assigning an id and timestamp
// when they are missing.
func (s *Store) RecordMove(ctx context.Context, rec models.MoveRecord) error {
	if strings.TrimSpace(rec.TaskID) == "" {
		return fmt.Errorf("move record without task id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO moves(id, kind, task_id, actor_id, actor_role, from_status, to_status, from_index, to_index, outcome, error, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.TaskID, rec.ActorID, rec.ActorRole, rec.From, rec.To,
		rec.FromIndex, rec.ToIndex, rec.Outcome, rec.Error, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert move: %w", err)
	}
	return nil
}

const moveColumns = `id, kind, task_id, actor_id, actor_role, from_status, to_status, from_index, to_index, outcome, error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMove(row scanner) (models.MoveRecord, error) {
	var m models.MoveRecord
	err := row.Scan(&m.ID, &m.Kind, &m.TaskID, &m.ActorID, &m.ActorRole, &m.From, &m.To,
		&m.FromIndex, &m.ToIndex, &m.Outcome, &m.Error, &m.CreatedAt)
	return m, err
}

// GetMove fetches a single record by id.
func (s *Store) GetMove(ctx context.Context, id string) (models.MoveRecord, error) {
	m, err := scanMove(s.db.QueryRowContext(ctx, `SELECT `+moveColumns+` FROM moves WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MoveRecord{}, ErrNotFound
	}
	if err != nil {
		return models.MoveRecord{}, fmt.Errorf("get move: %w", err)
	}
	return m, nil
}

// ListMoves returns records matching f, newest first.
func (s *Store) ListMoves(ctx context.Context, f Filter) ([]models.MoveRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}

	query := `SELECT ` + moveColumns + ` FROM moves`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = 100
	case limit > 1000:
		limit = 1000
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var moves []models.MoveRecord
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// Prune deletes records older than before and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moves WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune moves: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.logger.Info("journal pruned", slog.Int64("removed", affected))
	}
	return affected, nil
}
