package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const driverLibsql = "libsql"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,
}

// SQLStore keeps users in a libsql (SQLite or Turso) database.
type SQLStore struct {
	DB *sql.DB
}

// OpenSQLStore opens the database at path (local file or :memory:) or url
// (remote Turso) and applies the schema.
func OpenSQLStore(ctx context.Context, path, rawURL, authToken string) (*SQLStore, error) {
	dsn, err := buildLibsqlDSN(path, rawURL, authToken)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}

	store := &SQLStore{DB: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate users schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, email string) (*User, error) {
	var user User
	row := s.DB.QueryRowContext(ctx, `
		SELECT email, username, password
		FROM users
		WHERE email = ?
	`, NormalizeEmail(email))

	if err := row.Scan(&user.Email, &user.Username, &user.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return &user, nil
}

func (s *SQLStore) Put(ctx context.Context, user User) error {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (email, username, password, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, NormalizeEmail(user.Email), user.Username, user.Password, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if affected == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *SQLStore) UpdatePassword(ctx context.Context, email, hash string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password = ? WHERE email = ?`, hash, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// buildLibsqlDSN prefers a remote url, carrying authToken as its query
// parameter unless the url already has one. Otherwise path becomes a local
// file DSN and its directory is created.
func buildLibsqlDSN(path, rawURL, authToken string) (string, error) {
	if rawURL = strings.TrimSpace(rawURL); rawURL != "" {
		remote, err := url.Parse(rawURL)
		if err != nil || remote.Scheme == "" || remote.Host == "" {
			return "", fmt.Errorf("invalid store url %q", rawURL)
		}
		if authToken = strings.TrimSpace(authToken); authToken != "" {
			params := remote.Query()
			if !params.Has("authToken") {
				params.Set("authToken", authToken)
			}
			remote.RawQuery = params.Encode()
		}
		return remote.String(), nil
	}

	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", errors.New("store path or url is required")
	case path == ":memory:", strings.HasPrefix(path, "file:"), strings.HasPrefix(path, "libsql:"):
		return path, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create store directory: %w", err)
		}
	}
	return "file:" + filepath.Clean(path), nil
}
