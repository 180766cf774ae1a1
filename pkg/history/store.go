// Package history persists user accounts and the record of every
// recommendation and evaluation a signed-in user ran.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultListLimit caps history listings when the caller passes no limit
const DefaultListLimit = 50

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store keeps users and history entries in SQLite or Postgres
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database and creates the schema. For SQLite the dsn
// is a file path, or ":memory:" for a private in-memory database.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		db, err := sqlx.Connect(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		return newStore(db, driver)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// OpenSQLite opens a WAL-mode SQLite database at path
func OpenSQLite(path string) (*Store, error) {
	memory := path == ":memory:"
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	if memory {
		dsn = "file::memory:"
	}

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if memory {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(db, DriverSQLite)
}

func newStore(db *sqlx.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "DATETIME"
	if s.driver == DriverPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			` + seq + `,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			input_payload TEXT NOT NULL,
			result_payload TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// historyRow carries payloads as text so both drivers scan them the same way
type historyRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	Input     string    `db:"input_payload"`
	Result    string    `db:"result_payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r historyRow) entry() models.HistoryEntry {
	return models.HistoryEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		Kind:      models.HistoryKind(r.Kind),
		Input:     []byte(r.Input),
		Result:    []byte(r.Result),
		CreatedAt: r.CreatedAt,
	}
}

// Save inserts a history entry. CreatedAt is stored in UTC at second precision.
func (s *Store) Save(ctx context.Context, e *models.HistoryEntry) error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("history entry needs an id and a user id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)

	query := s.db.Rebind(`
		INSERT INTO history (id, user_id, kind, input_payload, result_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, string(e.Kind), payload(e.Input), payload(e.Result), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

func payload(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// ListByUser returns a user's entries newest first. An empty kind lists every kind.
func (s *Store) ListByUser(ctx context.Context, userID string, kind models.HistoryKind, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(kind))
	}
	args = append(args, limit)

	query := s.db.Rebind(`
		SELECT id, user_id, kind, input_payload, result_payload, created_at
		FROM history
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`)

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// DeleteOlderThan removes entries created before cutoff and reports how many
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM history WHERE created_at < ?`), cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// CreateUser inserts a user; the email must not be registered yet
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.GetUserByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.CreatedAt = u.CreatedAt.UTC().Truncate(time.Second)

	query := s.db.Rebind(`
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUser looks a user up by id
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	query := s.db.Rebind(`SELECT id, name, email, password_hash, created_at FROM users WHERE ` + column + ` = ?`)
	err := s.db.GetContext(ctx, &u, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
