package cohorts

import (
	"context"
	"fmt"

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

type cohortRepoPG struct{ pool *pgxpool.Pool }

func NewCohortRepoPG(pool *pgxpool.Pool) CohortRepository {
	return &cohortRepoPG{pool: pool}
}

const cohortCols = `id, project_id, name, include_criteria, exclude_criteria,
	manual_choices, frozen_set, created_at, updated_at`

func scanCohort(row pgx.Row) (*Cohort, error) {
	var c Cohort
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.IncludeCriteria, &c.ExcludeCriteria,
		&c.ManualChoices, &c.FrozenSet, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *cohortRepoPG) Create(ctx context.Context, c *Cohort) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cohorts (id, project_id, name, include_criteria, exclude_criteria, manual_choices, frozen_set)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.ProjectID, c.Name, c.IncludeCriteria, c.ExcludeCriteria, c.ManualChoices, c.FrozenSet)
	return err
}

func (r *cohortRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Cohort, error) {
	return scanCohort(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cohortCols+` FROM cohorts WHERE id = $1`, id))
}

func (r *cohortRepoPG) Update(ctx context.Context, c *Cohort) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE cohorts SET name=$2, include_criteria=$3, exclude_criteria=$4,
			manual_choices=$5, frozen_set=$6, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.IncludeCriteria, c.ExcludeCriteria, c.ManualChoices, c.FrozenSet)
	return err
}

func (r *cohortRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM cohorts WHERE id = $1`, id)
	return err
}

func (r *cohortRepoPG) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM cohorts WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+cohortCols+` FROM cohorts WHERE project_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *cohortRepoPG) Members(ctx context.Context, cohortID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT case_id FROM cohort_cases WHERE cohort_id = $1 ORDER BY case_id`, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *cohortRepoPG) ReplaceMembers(ctx context.Context, cohortID uuid.UUID, caseIDs []uuid.UUID) error {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, `DELETE FROM cohort_cases WHERE cohort_id = $1`, cohortID); err != nil {
		return err
	}
	if len(caseIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO cohort_cases (cohort_id, case_id)
		SELECT $1, unnest($2::uuid[])`, cohortID, caseIDs)
	return err
}

func (r *cohortRepoPG) FindCaseIDs(ctx context.Context, predicate string, args []interface{}) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT pc.id FROM patient_cases pc WHERE %s ORDER BY pc.id`, predicate), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *cohortRepoPG) TraitRows(ctx context.Context, caseIDs []uuid.UUID) ([]TraitRow, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, gender->>'display', consent_status, date_of_birth, date_of_death, cause_of_death IS NOT NULL
		FROM patient_cases WHERE id = ANY($1)`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TraitRow
	for rows.Next() {
		var t TraitRow
		if err := rows.Scan(&t.CaseID, &t.Gender, &t.ConsentStatus, &t.DateOfBirth, &t.DateOfDeath, &t.HasCauseOfDeath); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *cohortRepoPG) PrimarySiteCounts(ctx context.Context, caseIDs []uuid.UUID) ([]ValueCount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT topography->>'display', COUNT(*)
		FROM neoplastic_entities
		WHERE case_id = ANY($1) AND relationship = 'primary' AND topography IS NOT NULL
		GROUP BY topography->>'display'
		ORDER BY COUNT(*) DESC, topography->>'display'`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
