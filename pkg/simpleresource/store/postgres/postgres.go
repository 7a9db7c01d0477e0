package postgres

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements simpleresource.PrimaryStore using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE resource (
//	    id         TEXT PRIMARY KEY,
//	    category   TEXT NOT NULL,
//	    data       JSONB NOT NULL DEFAULT '{}'::jsonb,
//	    owner      TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    updated_by TEXT NOT NULL DEFAULT '',
//	    version    BIGINT NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX resource_category_idx ON resource (category, id DESC);
//
// Ids are time-ordered, so the (category, id DESC) index yields
// newest-first pages and carries the keyset cursor.
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL primary store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL primary store with a connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

const resourceColumns = "id, category, data, owner, created_at, updated_at, updated_by, version, expires_at"

func scanResource(row pgx.Row) (*simpleresource.Resource, error) {
	var res simpleresource.Resource
	var data []byte
	err := row.Scan(&res.ID, &res.Category, &data, &res.Owner,
		&res.CreatedAt, &res.UpdatedAt, &res.UpdatedBy, &res.Version, &res.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &res.Data); err != nil {
		return nil, fmt.Errorf("malformed payload for resource %s: %w", res.ID, err)
	}
	return &res, nil
}

func (s *Store) PutIfNotExists(ctx context.Context, res *simpleresource.Resource) error {
	data, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", res.ID, err)
	}

	// A conflicting row past its retention window is displaced rather
	// than reported: Get already hides such rows, so their ids are free
	// for reuse before the reaper removes them.
	query := `
		INSERT INTO resource (` + resourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			data = EXCLUDED.data,
			owner = EXCLUDED.owner,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by,
			version = EXCLUDED.version,
			expires_at = EXCLUDED.expires_at
		WHERE resource.expires_at <= now()`

	tag, err := s.db.Exec(ctx, query,
		res.ID, string(res.Category), data, res.Owner,
		res.CreatedAt, res.UpdatedAt, res.UpdatedBy, res.Version, res.ExpiresAt)
	if err != nil {
		return s.storeError("put_if_not_exists", res.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return simpleresource.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*simpleresource.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE id = $1 AND expires_at > now()`

	res, err := scanResource(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, s.storeError("get", id, err)
	}
	return res, nil
}

func (s *Store) Put(ctx context.Context, res *simpleresource.Resource) error {
	data, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", res.ID, err)
	}

	query := `
		INSERT INTO resource (` + resourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by,
			version = EXCLUDED.version,
			expires_at = EXCLUDED.expires_at`

	_, err = s.db.Exec(ctx, query,
		res.ID, string(res.Category), data, res.Owner,
		res.CreatedAt, res.UpdatedAt, res.UpdatedBy, res.Version, res.ExpiresAt)
	if err != nil {
		return s.storeError("put", res.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, params simpleresource.UpdateParams) (*simpleresource.Resource, error) {
	patch, err := json.Marshal(params.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update fields for %s: %w", params.ID, err)
	}

	// Single statement so the existence check, field merge, and version
	// increment are atomic.
	query := `
		UPDATE resource
		SET data = data || $2::jsonb,
		    updated_at = $3,
		    updated_by = $4,
		    version = version + 1
		WHERE id = $1
		RETURNING ` + resourceColumns

	res, err := scanResource(s.db.QueryRow(ctx, query, params.ID, patch, params.Now, params.UpdatedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleresource.ErrNotFound
		}
		return nil, s.storeError("update", params.ID, err)
	}
	return res, nil
}

func (s *Store) DeleteIfExists(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM resource WHERE id = $1`, id)
	if err != nil {
		return false, s.storeError("delete", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Query(ctx context.Context, q simpleresource.Query) (*simpleresource.ResourceList, error) {
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE category = $1`
	args := []interface{}{string(q.Category)}

	if q.NextToken != "" {
		afterID, err := decodeToken(q.NextToken)
		if err != nil {
			return nil, err
		}
		args = append(args, afterID)
		query += fmt.Sprintf(" AND id < $%d", len(args))
	}
	if q.CreatedAfter != nil {
		args = append(args, *q.CreatedAfter)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	// Fetch one extra row to decide whether a continuation token is due.
	args = append(args, q.Limit+1)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, s.storeError("query", string(q.Category), err)
	}
	defer rows.Close()

	var items []*simpleresource.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, s.storeError("query", string(q.Category), err)
		}
		items = append(items, res)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("query", string(q.Category), err)
	}

	list := &simpleresource.ResourceList{}
	if len(items) > q.Limit {
		items = items[:q.Limit]
		list.NextToken = encodeToken(items[len(items)-1].ID)
	}
	list.Items = items
	list.Count = len(items)
	return list, nil
}

// storeError maps pgx failures onto the shared taxonomy. Connection
// exhaustion and shutdown states count as throttling for alerting
// purposes; everything else is a plain upstream outage.
func (s *Store) storeError(op, key string, err error) error {
	throttled := false
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "53300", "53400", "57P03": // too many connections, config limit, cannot connect now
			throttled = true
		}
	}
	return &simpleresource.StoreError{
		Store:     "postgres",
		Op:        op,
		Key:       key,
		Throttled: throttled,
		Err:       fmt.Errorf("%w: %v", simpleresource.ErrUpstreamUnavailable, err),
	}
}

func encodeToken(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed continuation token: %w", err)
	}
	return string(raw), nil
}

// EnsureSchema creates the resource table and category index if they do
// not exist. Convenience for development environments; production
// schemas are managed by migrations.
func EnsureSchema(ctx context.Context, db DBTX) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS resource (
			id         TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			data       JSONB NOT NULL DEFAULT '{}'::jsonb,
			owner      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			updated_by TEXT NOT NULL DEFAULT '',
			version    BIGINT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS resource_category_idx ON resource (category, id DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
