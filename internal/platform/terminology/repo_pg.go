package terminology

import (
	"context"

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

func (r *repoPG) Get(ctx context.Context, system, code string) (*Concept, error) {
	var c Concept
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT system, code, display, COALESCE(parent_code, '')
		 FROM concepts WHERE system = $1 AND code = $2`,
		system, code).Scan(&c.System, &c.Code, &c.Display, &c.ParentCode)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Descendants(ctx context.Context, system, code string) ([]string, error) {
	// Walk the parent tree downwards. Bounded by the codesystem size.
	rows, err := r.conn(ctx).Query(ctx, `
		WITH RECURSIVE closure AS (
			SELECT code FROM concepts WHERE system = $1 AND code = $2
			UNION
			SELECT c.code FROM concepts c
			JOIN closure ON c.parent_code = closure.code AND c.system = $1
		)
		SELECT code FROM closure`,
		system, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *repoPG) Group(ctx context.Context, system, codePrefix string) (*Concept, error) {
	var c Concept
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT system, code, display, COALESCE(parent_code, '')
		 FROM concepts WHERE system = $1 AND code = $2`,
		system, codePrefix).Scan(&c.System, &c.Code, &c.Display, &c.ParentCode)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
