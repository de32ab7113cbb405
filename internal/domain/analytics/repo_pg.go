package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncore/oncore/internal/domain/assessments"
	"github.com/oncore/oncore/internal/platform/db"
	"github.com/oncore/oncore/pkg/clinical"
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

func (r *repoPG) SurvivalDurations(ctx context.Context, caseIDs []uuid.UUID) ([]*float64, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT c.date_of_death,
		       (SELECT MIN(n.assertion_date) FROM neoplastic_entities n WHERE n.case_id = c.id)
		FROM patient_cases c
		WHERE c.id = ANY($1)`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var durations []*float64
	for rows.Next() {
		var death, first *time.Time
		if err := rows.Scan(&death, &first); err != nil {
			return nil, err
		}
		if death == nil || first == nil {
			durations = append(durations, nil)
			continue
		}
		months := clinical.MonthsBetween(*first, *death)
		durations = append(durations, &months)
	}
	return durations, rows.Err()
}

func (r *repoPG) LineSamples(ctx context.Context, caseIDs []uuid.UUID, intent string, ordinal int) ([]*LineSample, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT l.id, l.case_id, l.period_start, l.period_end,
		       (SELECT MIN(tr.date) FROM treatment_responses tr
		        WHERE tr.case_id = l.case_id AND tr.date IS NOT NULL
		          AND tr.recist->>'code' = $4
		          AND l.period_start IS NOT NULL AND tr.date >= l.period_start),
		       COALESCE(ARRAY(
		           SELECT m.drug->>'display'
		           FROM systemic_therapies st
		           JOIN systemic_therapy_medications m ON m.therapy_id = st.id
		           WHERE st.therapy_line_id = l.id AND m.drug->>'display' IS NOT NULL
		           ORDER BY 1), '{}'),
		       COALESCE(ARRAY(
		           SELECT m.therapy_category->>'display'
		           FROM systemic_therapies st
		           JOIN systemic_therapy_medications m ON m.therapy_id = st.id
		           WHERE st.therapy_line_id = l.id AND m.therapy_category->>'display' IS NOT NULL
		           ORDER BY 1), '{}'),
		       EXISTS (SELECT 1 FROM radiotherapies rt WHERE rt.therapy_line_id = l.id)
		FROM therapy_lines l
		WHERE l.case_id = ANY($1) AND l.intent = $2 AND l.ordinal = $3`,
		caseIDs, intent, ordinal, assessments.ProgressionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []*LineSample
	for rows.Next() {
		var s LineSample
		if err := rows.Scan(&s.LineID, &s.CaseID, &s.PeriodStart, &s.PeriodEnd,
			&s.FirstProgression, &s.Drugs, &s.Categories, &s.HasRadiotherapy); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}

func (r *repoPG) ResponseCategories(ctx context.Context, caseIDs []uuid.UUID, intent string, ordinal int) ([]string, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT tr.recist->>'display'
		FROM treatment_responses tr
		JOIN therapy_lines l ON l.case_id = tr.case_id AND l.intent = $2 AND l.ordinal = $3
		WHERE tr.case_id = ANY($1) AND tr.date IS NOT NULL AND tr.recist->>'display' IS NOT NULL
		  AND (EXISTS (SELECT 1 FROM systemic_therapies st
		               WHERE st.therapy_line_id = l.id
		                 AND st.period_start <= tr.date
		                 AND (st.period_end IS NULL OR tr.date <= st.period_end))
		    OR EXISTS (SELECT 1 FROM radiotherapies rt
		               WHERE rt.therapy_line_id = l.id
		                 AND rt.period_start <= tr.date
		                 AND (rt.period_end IS NULL OR tr.date <= rt.period_end)))`,
		caseIDs, intent, ordinal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repoPG) GeneCounts(ctx context.Context, caseIDs []uuid.UUID) ([]GeneCount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT v.gene->>'display', COUNT(*)
		FROM genomic_variants v
		WHERE v.case_id = ANY($1) AND v.gene->>'display' IS NOT NULL
		GROUP BY 1
		ORDER BY 2 DESC, 1`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []GeneCount
	for rows.Next() {
		var gc GeneCount
		if err := rows.Scan(&gc.Gene, &gc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, gc)
	}
	return counts, rows.Err()
}
