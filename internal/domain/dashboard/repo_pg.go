package dashboard

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Counts(ctx context.Context) (cases, projects, cohorts, users int, err error) {
	err = conn(ctx, r.pool).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM patient_cases),
		       (SELECT COUNT(*) FROM projects),
		       (SELECT COUNT(*) FROM cohorts),
		       (SELECT COUNT(*) FROM users)`).Scan(&cases, &projects, &cohorts, &users)
	return cases, projects, cohorts, users, err
}

func (r *repoPG) CompletionRates(ctx context.Context) ([]float64, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT COUNT(dc.id)
		FROM patient_cases c
		LEFT JOIN data_completions dc ON dc.case_id = c.id
		GROUP BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		counts = append(counts, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rates := make([]float64, len(counts))
	for i, n := range counts {
		rates[i] = float64(n) / completionCategoryCount
	}
	return rates, nil
}

func (r *repoPG) PrimarySites(ctx context.Context) ([]SiteSample, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT n.topography->>'system', n.topography->>'code', n.topography->>'display', COUNT(*)
		FROM neoplastic_entities n
		WHERE n.relationship = 'primary' AND n.topography->>'code' IS NOT NULL
		GROUP BY 1, 2, 3
		ORDER BY 4 DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []SiteSample
	for rows.Next() {
		var s SiteSample
		if err := rows.Scan(&s.Topography.System, &s.Topography.Code, &s.Topography.Display, &s.Count); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (r *repoPG) CasesByMonth(ctx context.Context) ([]MonthCount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT to_char(created_at, 'YYYY-MM'), COUNT(*)
		FROM patient_cases
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var months []MonthCount
	for rows.Next() {
		var m MonthCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}
