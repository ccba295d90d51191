// infrastructure/sql_store.go
package infrastructure

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vitovidale/editia-orchestrator/config"
	"github.com/vitovidale/editia-orchestrator/domain"
	"github.com/vitovidale/editia-orchestrator/logging"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed width so TEXT timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore persists scripts and video requests. Postgres is the production
// backend; SQLite serves local development and tests.
type SQLStore struct {
	DB      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{DB: db, dialect: dialect, now: time.Now}
}

// OpenSQLStore connects using cfg, retrying the initial ping.
func OpenSQLStore(ctx context.Context, cfg config.Database, logger *slog.Logger) (*SQLStore, error) {
	logger = logging.NewComponentLogger(logger, "store")
	dialect := Dialect(cfg.Driver)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", cfg.URL)
	case DialectSQLite:
		db, err = sql.Open("sqlite", cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetimeSeconds > 0 {
			db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second)
		}
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			logger.Info("database connection established", slog.String("driver", string(dialect)))
			return NewSQLStore(db, dialect), nil
		}
		if i == attempts {
			break
		}
		logger.Warn("database not reachable, retrying",
			slog.Int("attempt", i),
			slog.Int("max_attempts", attempts),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
}

// Migrate creates the tables when missing and checks the recorded schema version.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.dialect == DialectSQLite {
		schema = sqliteSchema
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func (s *SQLStore) CreateScript(ctx context.Context, script *domain.Script) error {
	if script.ID == "" {
		script.ID = uuid.NewString()
	}
	if script.Status == "" {
		script.Status = domain.ScriptStatusDraft
	}
	now := s.now().UTC()
	script.CreatedAt, script.UpdatedAt = now, now

	query := `INSERT INTO scripts (id, user_id, raw_prompt, generated_script, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, s.rebind(query),
		script.ID, script.UserID, script.RawPrompt, nullString(script.GeneratedScript), string(script.Status),
		s.timeArg(now), s.timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert script: %w", err)
	}
	return nil
}

func (s *SQLStore) ValidateScript(ctx context.Context, scriptID, generated string) error {
	query := `UPDATE scripts SET status = ?, generated_script = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := s.DB.ExecContext(ctx, s.rebind(query),
		string(domain.ScriptStatusValidated), generated, s.timeArg(s.now().UTC()), scriptID, string(domain.ScriptStatusDraft),
	)
	if err != nil {
		return fmt.Errorf("failed to validate script: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to validate script: %w", err)
	}
	if updated > 0 {
		return nil
	}
	if _, err := s.FindScript(ctx, scriptID); err != nil {
		return err
	}
	return domain.Wrap(domain.ErrConflict, "validate script", "script is not a draft", nil)
}

func (s *SQLStore) FindScript(ctx context.Context, scriptID string) (*domain.Script, error) {
	var sc domain.Script
	var generated sql.NullString
	query := `SELECT id, user_id, raw_prompt, generated_script, status, created_at, updated_at FROM scripts WHERE id = ?`
	err := s.DB.QueryRowContext(ctx, s.rebind(query), scriptID).Scan(
		&sc.ID, &sc.UserID, &sc.RawPrompt, &generated, &sc.Status,
		timeColumn{&sc.CreatedAt}, timeColumn{&sc.UpdatedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Wrap(domain.ErrNotFound, "find script", "script not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query script: %w", err)
	}
	sc.GeneratedScript = generated.String
	return &sc, nil
}

func (s *SQLStore) CreateVideoRequest(ctx context.Context, request *domain.VideoRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RenderStatus == "" {
		request.RenderStatus = domain.RenderStatusQueued
	}
	if request.SelectedVideos == nil {
		request.SelectedVideos = []string{}
	}
	now := s.now().UTC()
	request.CreatedAt, request.UpdatedAt = now, now

	clips, err := s.clipsArg(request.SelectedVideos)
	if err != nil {
		return err
	}
	query := `INSERT INTO video_requests (id, user_id, script_id, selected_videos, render_status, render_id, render_url, render_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.DB.ExecContext(ctx, s.rebind(query),
		request.ID, request.UserID, request.ScriptID, clips, string(request.RenderStatus),
		nullString(request.RenderID), nullString(request.RenderURL), nullString(request.RenderError),
		s.timeArg(now), s.timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert video request: %w", err)
	}
	return nil
}

func (s *SQLStore) MarkRendering(ctx context.Context, requestID, renderID string) (bool, error) {
	query := `UPDATE video_requests SET render_status = ?, render_id = ?, updated_at = ? WHERE id = ? AND render_status = ?`
	res, err := s.DB.ExecContext(ctx, s.rebind(query),
		string(domain.RenderStatusRendering), renderID, s.timeArg(s.now().UTC()), requestID, string(domain.RenderStatusQueued),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark video request rendering: %w", err)
	}
	moved, err := rowsChanged(res)
	if err != nil || moved {
		return moved, err
	}

	// A terminal write won the race; keep the accepted job id.
	backfill := `UPDATE video_requests SET render_id = ? WHERE id = ? AND render_id IS NULL`
	if _, err := s.DB.ExecContext(ctx, s.rebind(backfill), renderID, requestID); err != nil {
		return false, fmt.Errorf("failed to record render id: %w", err)
	}
	return false, nil
}

func (s *SQLStore) CompleteRender(ctx context.Context, requestID string, status domain.RenderStatus, renderURL, renderError string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("complete render: %q is not a terminal status", status)
	}
	if status == domain.RenderStatusDone {
		renderError = ""
	} else {
		renderURL = ""
	}
	open := domain.NonTerminalRenderStatuses()
	query := `UPDATE video_requests SET render_status = ?, render_url = ?, render_error = ?, updated_at = ?
		WHERE id = ? AND render_status IN (?, ?)`
	res, err := s.DB.ExecContext(ctx, s.rebind(query),
		string(status), nullString(renderURL), nullString(renderError), s.timeArg(s.now().UTC()),
		requestID, string(open[0]), string(open[1]),
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete video request: %w", err)
	}
	return rowsChanged(res)
}

const videoRequestColumns = `id, user_id, script_id, selected_videos, render_status, render_id, render_url, render_error, created_at, updated_at`

func (s *SQLStore) FindVideoRequest(ctx context.Context, requestID string) (*domain.VideoRequest, error) {
	query := `SELECT ` + videoRequestColumns + ` FROM video_requests WHERE id = ?`
	v, err := s.scanVideoRequest(s.DB.QueryRowContext(ctx, s.rebind(query), requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Wrap(domain.ErrNotFound, "find video request", "video request not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query video request: %w", err)
	}
	return v, nil
}

func (s *SQLStore) FindVideoRequestsByUserID(ctx context.Context, userID string) ([]domain.VideoRequest, error) {
	query := `SELECT ` + videoRequestColumns + ` FROM video_requests WHERE user_id = ? ORDER BY created_at DESC, id`
	rows, err := s.DB.QueryContext(ctx, s.rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query video requests: %w", err)
	}
	defer rows.Close()

	videos := []domain.VideoRequest{}
	for rows.Next() {
		v, err := s.scanVideoRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video request: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over video requests: %w", err)
	}
	return videos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanVideoRequest(row rowScanner) (*domain.VideoRequest, error) {
	var v domain.VideoRequest
	var renderID, renderURL, renderError sql.NullString
	err := row.Scan(
		&v.ID, &v.UserID, &v.ScriptID, s.clipsScanner(&v.SelectedVideos), &v.RenderStatus,
		&renderID, &renderURL, &renderError,
		timeColumn{&v.CreatedAt}, timeColumn{&v.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	v.RenderID = renderID.String
	v.RenderURL = renderURL.String
	v.RenderError = renderError.String
	if v.SelectedVideos == nil {
		v.SelectedVideos = []string{}
	}
	return &v, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
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

func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (s *SQLStore) clipsArg(clips []string) (any, error) {
	if s.dialect == DialectPostgres {
		return pq.Array(clips), nil
	}
	encoded, err := json.Marshal(clips)
	if err != nil {
		return nil, fmt.Errorf("encode selected videos: %w", err)
	}
	return string(encoded), nil
}

func (s *SQLStore) clipsScanner(dst *[]string) any {
	if s.dialect == DialectPostgres {
		return pq.Array(dst)
	}
	return jsonStrings{dst}
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

type jsonStrings struct {
	dst *[]string
}

func (j jsonStrings) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*j.dst = []string{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("selected_videos: unsupported column type %T", src)
	}
	return json.Unmarshal(raw, j.dst)
}

type timeColumn struct {
	dst *time.Time
}

func (tc timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*tc.dst = time.Time{}
		return nil
	case time.Time:
		*tc.dst = v.UTC()
		return nil
	case string:
		return tc.parse(v)
	case []byte:
		return tc.parse(string(v))
	default:
		return fmt.Errorf("timestamp: unsupported column type %T", src)
	}
}

func (tc timeColumn) parse(value string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			*tc.dst = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: cannot parse %q", value)
}
