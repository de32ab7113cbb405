package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncore/oncore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `id, resource_type, resource_id, label, author, url, snapshot, diff, context, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.ResourceType, &e.ResourceID, &e.Label, &e.Author,
		&e.URL, &e.Snapshot, &e.Diff, &e.Context, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Insert(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO events (id, resource_type, resource_id, label, author, url, snapshot, diff, context)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.ResourceType, e.ResourceID, e.Label, e.Author, e.URL, e.Snapshot, e.Diff, e.Context)
	return err
}

func (r *repoPG) ListBySubject(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE resource_type = $1 AND resource_id = $2`,
		resourceType, resourceID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+eventCols+` FROM events
		 WHERE resource_type = $1 AND resource_id = $2
		 ORDER BY created_at, id LIMIT $3 OFFSET $4`,
		resourceType, resourceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, resourceType string, resourceID, eventID uuid.UUID) (*Event, error) {
	return scanEvent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+eventCols+` FROM events
		 WHERE resource_type = $1 AND resource_id = $2 AND id = $3`,
		resourceType, resourceID, eventID))
}

func (r *repoPG) LatestSnapshot(ctx context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, error) {
	var snapshot json.RawMessage
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT snapshot FROM events
		 WHERE resource_type = $1 AND resource_id = $2 AND label IN ('create', 'update')
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		resourceType, resourceID).Scan(&snapshot)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *repoPG) MetaFor(ctx context.Context, resourceType string, resourceID uuid.UUID) (*Meta, error) {
	meta := &Meta{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT MIN(created_at), MAX(created_at)
		FROM events
		WHERE resource_type = $1 AND resource_id = $2 AND label IN ('create', 'update')`,
		resourceType, resourceID).Scan(&meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MIN(author), '')
		FROM events
		WHERE resource_type = $1 AND resource_id = $2 AND label = 'create'`,
		resourceType, resourceID).Scan(&meta.CreatedBy); err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT author FROM events
		WHERE resource_type = $1 AND resource_id = $2 AND label = 'update'
		ORDER BY author`,
		resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var author string
		if err := rows.Scan(&author); err != nil {
			return nil, err
		}
		meta.UpdatedBy = append(meta.UpdatedBy, author)
	}
	return meta, rows.Err()
}

func (r *repoPG) ContributorsFor(ctx context.Context, resourceTypes []string, resourceIDs []uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT author FROM events
		WHERE resource_type = ANY($1) AND resource_id = ANY($2) AND author <> ''
		ORDER BY author`,
		resourceTypes, resourceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}
