package configserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const undefinedTable = "42P01"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, application, profile string) (map[string]string, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value
		FROM properties
		WHERE application = $1 AND profile = $2
	`, application, profile)
	if err != nil {
		return nil, false, translate(err)
	}
	defer func() { _ = rows.Close() }()

	props := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, false, err
		}
		props[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return props, len(props) > 0, nil
}

func (s *PostgresStore) Merge(ctx context.Context, application, profile string, props map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range props {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO properties (application, profile, key, value, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (application, profile, key)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, application, profile, k, v)
		if err != nil {
			return translate(err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Delete(ctx context.Context, application, profile, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM properties
		WHERE application = $1 AND profile = $2 AND key = $3
	`, application, profile, key)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("properties table missing, run the migrations: %w", err)
	}
	return err
}
