package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"user_service/internal/models"

	"github.com/gofrs/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"
)

const usersTable = "users"

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	db, err := sql.Open("pgx", DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newPostgresStorage(db), nil
}

func newPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Migrate creates the users table when it does not exist yet.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	const op = "storage.Migrate"

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         uuid PRIMARY KEY,
	email      text NOT NULL,
	password   text NOT NULL,
	status     text NOT NULL DEFAULT 'active',
	last_login timestamptz,
	fields     jsonb NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS users_email_idx ON %s (email);`, usersTable, usersTable)

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) InsertUser(ctx context.Context, user models.User) (models.InsertResult, error) {
	const op = "storage.InsertUser"

	id, err := uuid.NewV4()
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	fields := user.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	rawFields, err := json.Marshal(fields)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf("INSERT INTO %s(id, email, password, status, fields) VALUES ($1, $2, $3, $4, $5);", usersTable)

	_, err = p.db.ExecContext(ctx, query, id.String(), user.Email, user.Password, string(user.Status), rawFields)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.InsertResult{
		Acknowledged: true,
		InsertedID:   id.String(),
	}, nil
}

func (p *PostgresStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	query := fmt.Sprintf("SELECT id, email, password, status, last_login, fields FROM %s;", usersTable)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf("SELECT id, email, password, status, last_login, fields FROM %s WHERE email=$1 LIMIT 1;", usersTable)

	user, err := scanUser(p.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) TouchLastLogin(ctx context.Context, email string, at time.Time) error {
	const op = "storage.TouchLastLogin"

	// touches a single row even when the email repeats
	query := fmt.Sprintf(
		"UPDATE %s SET last_login=$1 WHERE id = (SELECT id FROM %s WHERE email=$2 LIMIT 1);",
		usersTable, usersTable,
	)

	if _, err := p.db.ExecContext(ctx, query, at, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) SetStatus(ctx context.Context, ids []string, status models.Status) (models.UpdateResult, error) {
	const op = "storage.SetStatus"

	uuids, err := parseUUIDs(ids)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(uuids) == 0 {
		return models.UpdateResult{Acknowledged: true}, nil
	}

	query := fmt.Sprintf("UPDATE %s SET status=$1 WHERE id IN (%s);", usersTable, placeholders(2, len(uuids)))

	args := make([]any, 0, len(uuids)+1)
	args = append(args, string(status))
	args = append(args, uuids...)

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  affected,
		ModifiedCount: affected,
	}, nil
}

func (p *PostgresStorage) DeleteUsers(ctx context.Context, ids []string) (models.DeleteResult, error) {
	const op = "storage.DeleteUsers"

	uuids, err := parseUUIDs(ids)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(uuids) == 0 {
		return models.DeleteResult{Acknowledged: true}, nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s);", usersTable, placeholders(1, len(uuids)))

	res, err := p.db.ExecContext(ctx, query, uuids...)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.DeleteResult{
		Acknowledged: true,
		DeletedCount: affected,
	}, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	const op = "storage.Ping"

	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) Close(_ context.Context) error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user      models.User
		status    string
		lastLogin sql.NullTime
		rawFields []byte
	)

	if err := row.Scan(&user.ID, &user.Email, &user.Password, &status, &lastLogin, &rawFields); err != nil {
		return models.User{}, err
	}

	user.Status = models.ParseStatus(status)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLogin = &t
	}

	user.Fields = map[string]any{}
	if len(rawFields) > 0 {
		if err := json.Unmarshal(rawFields, &user.Fields); err != nil {
			return models.User{}, fmt.Errorf("decode fields of user %s: %w", user.ID, err)
		}
	}

	return user, nil
}

// parseUUIDs returns the ids as driver arguments, already in canonical form.
func parseUUIDs(ids []string) ([]any, error) {
	uuids := make([]any, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.FromString(id)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidID, id, err)
		}
		uuids = append(uuids, parsed.String())
	}
	return uuids, nil
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
