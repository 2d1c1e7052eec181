// Package postgresdb is the PostgreSQL-backed implementation of the user
// record store. It owns one connection pool for the process lifetime,
// runs schema migrations on construction and exposes the four CRUD
// operations over the users table.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/usersvc/internal/models"
)

// PostgresDB holds the shared connection pool. database/sql checks a
// connection out of the pool per statement or transaction and releases it
// on every exit path; callers beyond the pool ceiling block until a
// connection frees up, bounded by their request context.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	poolSize    int
	maxOverflow int
	dbPreReset  bool
}

// InitOption configures database initialization.
type InitOption func(*initOptions)

// WithPoolSize sets the number of idle connections kept in the pool.
func WithPoolSize(size int) InitOption {
	return func(options *initOptions) {
		options.poolSize = size
	}
}

// WithMaxOverflow sets how many extra connections beyond the idle pool may
// be opened under burst load. The pool ceiling is poolSize + maxOverflow.
func WithMaxOverflow(overflow int) InitOption {
	return func(options *initOptions) {
		options.maxOverflow = overflow
	}
}

// WithDBPreReset drops all public tables before migrating.
// Intended for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.dbPreReset = value
	}
}

// New opens the connection pool, verifies connectivity and runs goose
// migrations from migrationsDir.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		poolSize:    10,
		maxOverflow: 20,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	database.SetMaxIdleConns(options.poolSize)
	database.SetMaxOpenConns(options.poolSize + options.maxOverflow)

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if options.dbPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("resetting database: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return result, nil
}

// ListUsers returns up to `limit` records starting at `offset`, ordered by id.
func (db *PostgresDB) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, name, surname, password, created_at, updated_at
				FROM users
				ORDER BY id
				LIMIT $1 OFFSET $2
		`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.User{}
	for rows.Next() {
		var usr models.User
		err = rows.Scan(
			&usr.ID,
			&usr.Name,
			&usr.Surname,
			&usr.Password,
			&usr.CreatedAt,
			&usr.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		result = append(result, usr)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetUser fetches a user by id. The boolean reports whether the record exists.
func (db *PostgresDB) GetUser(ctx context.Context, userID int) (*models.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, name, surname, password, created_at, updated_at
				FROM users
				WHERE id = $1
		`,
		userID,
	)

	var usr models.User
	err := row.Scan(
		&usr.ID,
		&usr.Name,
		&usr.Surname,
		&usr.Password,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &usr, true, nil
}

// CreateUser inserts a new record and returns it fully populated.
// The store assigns id, created_at and updated_at; created_at equals
// updated_at on a fresh record.
func (db *PostgresDB) CreateUser(
	ctx context.Context,
	name,
	surname,
	password string,
) (*models.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (name, surname, password, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
				RETURNING id, name, surname, password, created_at, updated_at
		`,
		name,
		surname,
		password,
	)

	var usr models.User
	err := row.Scan(
		&usr.ID,
		&usr.Name,
		&usr.Surname,
		&usr.Password,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &usr, nil
}

// UpdateUser applies the non-nil fields of the patch to the record with the
// given id inside a transaction. The boolean reports whether the record
// exists. updated_at is refreshed only when at least one field actually
// changed in value; an empty or no-op patch returns the current record
// without a write.
func (db *PostgresDB) UpdateUser(
	ctx context.Context,
	userID int,
	patch models.UserPatch,
) (*models.User, bool, error) {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	row := transaction.QueryRowContext(
		ctx,
		`
			SELECT id, name, surname, password, created_at, updated_at
				FROM users
				WHERE id = $1
				FOR UPDATE
		`,
		userID,
	)

	var usr models.User
	err = row.Scan(
		&usr.ID,
		&usr.Name,
		&usr.Surname,
		&usr.Password,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	changed := false
	if patch.Name != nil && *patch.Name != usr.Name {
		usr.Name = *patch.Name
		changed = true
	}
	if patch.Surname != nil && *patch.Surname != usr.Surname {
		usr.Surname = *patch.Surname
		changed = true
	}
	if patch.Password != nil && *patch.Password != usr.Password {
		usr.Password = *patch.Password
		changed = true
	}

	if !changed {
		if err := transaction.Commit(); err != nil {
			return nil, false, err
		}

		return &usr, true, nil
	}

	row = transaction.QueryRowContext(
		ctx,
		`
			UPDATE users
				SET name = $2, surname = $3, password = $4, updated_at = now()
				WHERE id = $1
				RETURNING id, name, surname, password, created_at, updated_at
		`,
		userID,
		usr.Name,
		usr.Surname,
		usr.Password,
	)
	err = row.Scan(
		&usr.ID,
		&usr.Name,
		&usr.Surname,
		&usr.Password,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}

	if err := transaction.Commit(); err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// DeleteUser removes the record with the given id. The boolean reports
// whether a record was actually removed.
func (db *PostgresDB) DeleteUser(ctx context.Context, userID int) (bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`DELETE FROM users WHERE id = $1 RETURNING id`,
		userID,
	)

	var deletedID int
	err := row.Scan(&deletedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Ping verifies connectivity with the database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the connection pool and releases its resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("dropping public tables: %w", err)
	}

	return nil
}
