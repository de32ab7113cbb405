package projects

import (
	"context"

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

// -- Project --

type projectRepoPG struct{ pool *pgxpool.Pool }

func NewProjectRepoPG(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepoPG{pool: pool}
}

const projectCols = `id, title, summary, status, leader_id, clinical_centers,
	ethics_approval_number, data_constraints, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Title, &p.Summary, &p.Status, &p.LeaderID, &p.ClinicalCenters,
		&p.EthicsApprovalNumber, &p.DataConstraints, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *projectRepoPG) Create(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO projects (id, title, summary, status, leader_id, clinical_centers,
			ethics_approval_number, data_constraints)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Title, p.Summary, p.Status, p.LeaderID, p.ClinicalCenters,
		p.EthicsApprovalNumber, p.DataConstraints)
	return err
}

func (r *projectRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return scanProject(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = $1`, id))
}

func (r *projectRepoPG) GetByTitle(ctx context.Context, title string) (*Project, error) {
	return scanProject(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectCols+` FROM projects WHERE title = $1`, title))
}

func (r *projectRepoPG) Update(ctx context.Context, p *Project) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE projects SET title=$2, summary=$3, status=$4, leader_id=$5, clinical_centers=$6,
			ethics_approval_number=$7, data_constraints=$8, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Title, p.Summary, p.Status, p.LeaderID, p.ClinicalCenters,
		p.EthicsApprovalNumber, p.DataConstraints)
	return err
}

func (r *projectRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

func (r *projectRepoPG) List(ctx context.Context, limit, offset int) ([]*Project, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+projectCols+` FROM projects ORDER BY title LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectProjects(rows, total)
}

func (r *projectRepoPG) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Project, int, error) {
	const where = `leader_id = $1 OR id IN (SELECT project_id FROM project_memberships WHERE user_id = $1)`
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE `+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+projectCols+` FROM projects WHERE `+where+` ORDER BY title LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectProjects(rows, total)
}

func collectProjects(rows pgx.Rows, total int) ([]*Project, int, error) {
	var items []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// -- ProjectMembership --

type membershipRepoPG struct{ pool *pgxpool.Pool }

func NewMembershipRepoPG(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{pool: pool}
}

func (r *membershipRepoPG) Create(ctx context.Context, m *ProjectMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO project_memberships (id, project_id, user_id) VALUES ($1,$2,$3)`,
		m.ID, m.ProjectID, m.UserID)
	return err
}

func (r *membershipRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ProjectMembership, error) {
	var m ProjectMembership
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, project_id, user_id, created_at, updated_at
		 FROM project_memberships WHERE id = $1`, id).
		Scan(&m.ID, &m.ProjectID, &m.UserID, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *membershipRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM project_memberships WHERE id = $1`, id)
	return err
}

func (r *membershipRepoPG) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ProjectMembership, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, project_id, user_id, created_at, updated_at
		 FROM project_memberships WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ProjectMembership
	for rows.Next() {
		var m ProjectMembership
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *membershipRepoPG) Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_memberships WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID).Scan(&exists)
	return exists, err
}

// -- ProjectDataManagerGrant --

type grantRepoPG struct{ pool *pgxpool.Pool }

func NewGrantRepoPG(pool *pgxpool.Pool) GrantRepository {
	return &grantRepoPG{pool: pool}
}

const grantCols = `id, project_id, user_id, validity_start, validity_end, revoked, created_at, updated_at`

func scanGrant(row pgx.Row) (*ProjectDataManagerGrant, error) {
	var g ProjectDataManagerGrant
	err := row.Scan(&g.ID, &g.ProjectID, &g.UserID, &g.ValidityPeriod.Start, &g.ValidityPeriod.End,
		&g.Revoked, &g.CreatedAt, &g.UpdatedAt)
	return &g, err
}

func (r *grantRepoPG) Create(ctx context.Context, g *ProjectDataManagerGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO project_data_manager_grants (id, project_id, user_id, validity_start, validity_end, revoked)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		g.ID, g.ProjectID, g.UserID, g.ValidityPeriod.Start, g.ValidityPeriod.End, g.Revoked)
	return err
}

func (r *grantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ProjectDataManagerGrant, error) {
	return scanGrant(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+grantCols+` FROM project_data_manager_grants WHERE id = $1`, id))
}

func (r *grantRepoPG) Update(ctx context.Context, g *ProjectDataManagerGrant) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE project_data_manager_grants SET validity_start=$2, validity_end=$3, revoked=$4, updated_at=NOW()
		WHERE id = $1`,
		g.ID, g.ValidityPeriod.Start, g.ValidityPeriod.End, g.Revoked)
	return err
}

func (r *grantRepoPG) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ProjectDataManagerGrant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+grantCols+` FROM project_data_manager_grants WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *grantRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ProjectDataManagerGrant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+grantCols+` FROM project_data_manager_grants WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows pgx.Rows) ([]*ProjectDataManagerGrant, error) {
	var items []*ProjectDataManagerGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}
