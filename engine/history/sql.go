package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Dialect names the SQL flavour behind a DSN.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// SQLStore keeps exchanges in the conversations table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ Recorder = (*SQLStore)(nil)
	_ Reader   = (*SQLStore)(nil)
)

// ParseDSN picks the driver for a DATABASE_URL. postgres:// and
// postgresql:// go to pgx; sqlite: and file: URLs, or bare *.db paths, go
// to SQLite.
func ParseDSN(dsn string) (driver, source string, d Dialect, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, Postgres, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", sqlitePragmas(strings.TrimPrefix(dsn, "sqlite://")), SQLite, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", sqlitePragmas(strings.TrimPrefix(dsn, "sqlite:")), SQLite, nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite", sqlitePragmas(dsn), SQLite, nil
	}
	return "", "", "", fmt.Errorf("history: unsupported database url %q", redact(dsn))
}

func sqlitePragmas(source string) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return source + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// redact drops credentials from a DSN before it reaches a log line.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}

// Open connects to dsn, checks the connection and creates the schema.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, source, dialect, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping %s: %w", redact(dsn), err)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/" + string(s.dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("history: schema: %w", err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}
	return nil
}

// Dialect reports which database the store talks to.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// Ping checks the connection, for health reporting.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
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

// Record appends one exchange. A zero CreatedAt is stamped with the current
// UTC time.
func (s *SQLStore) Record(ctx context.Context, ex domain.ChatExchange) error {
	created := ex.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var contextText sql.NullString
	if ex.Context != "" {
		contextText = sql.NullString{String: ex.Context, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO conversations (session_id, user_message, ai_response, context, created_at) VALUES (?, ?, ?, ?, ?)`),
		ex.SessionID, ex.UserMessage, ex.AIResponse, contextText, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", ex.SessionID, err)
	}
	return nil
}

// ListBySession returns the session's exchanges ordered by creation time.
func (s *SQLStore) ListBySession(ctx context.Context, sessionID string) ([]domain.ChatExchange, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, user_message, ai_response, context, created_at
		 FROM conversations WHERE session_id = ? ORDER BY created_at, id`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("history: list %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := []domain.ChatExchange{}
	for rows.Next() {
		var (
			ex          domain.ChatExchange
			contextText sql.NullString
			created     timestamp
		)
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.UserMessage, &ex.AIResponse, &contextText, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		ex.Context = contextText.String
		ex.CreatedAt = time.Time(created)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list %s: %w", sessionID, err)
	}
	return out, nil
}

// timestamp scans the created_at column whether the driver hands back a
// time.Time or SQLite's text rendering of one.
type timestamp time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = timestamp(v.UTC())
		return nil
	case int64:
		*t = timestamp(time.Unix(v, 0).UTC())
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case nil:
		*t = timestamp(time.Time{})
		return nil
	}
	return fmt.Errorf("history: unsupported created_at type %T", src)
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = timestamp(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("history: unparseable created_at %q", s)
}
