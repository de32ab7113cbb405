package datasets

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type datasetRepoPG struct{ pool *pgxpool.Pool }

func NewDatasetRepoPG(pool *pgxpool.Pool) DatasetRepository {
	return &datasetRepoPG{pool: pool}
}

const datasetCols = `id, project_id, name, rules, created_at, updated_at`

func scanDataset(row pgx.Row) (*Dataset, error) {
	var d Dataset
	var rules []byte
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &rules, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &d.Rules); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (r *datasetRepoPG) Create(ctx context.Context, d *Dataset) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	rules, err := json.Marshal(d.Rules)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO datasets (id, project_id, name, rules)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.ProjectID, d.Name, rules)
	return err
}

func (r *datasetRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	return scanDataset(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+datasetCols+` FROM datasets WHERE id = $1`, id))
}

func (r *datasetRepoPG) Update(ctx context.Context, d *Dataset) error {
	rules, err := json.Marshal(d.Rules)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		UPDATE datasets SET name=$2, rules=$3, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, rules)
	return err
}

func (r *datasetRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	return err
}

func (r *datasetRepoPG) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Dataset, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM datasets WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+datasetCols+` FROM datasets WHERE project_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
