package neoplasms

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

// -- NeoplasticEntity --

type neoplasticEntityRepoPG struct{ pool *pgxpool.Pool }

func NewNeoplasticEntityRepoPG(pool *pgxpool.Pool) NeoplasticEntityRepository {
	return &neoplasticEntityRepoPG{pool: pool}
}

const neoplasticEntityCols = `id, case_id, relationship, related_primary_id, assertion_date,
	topography, morphology, differentiation, laterality, created_at, updated_at`

func scanNeoplasticEntity(row pgx.Row) (*NeoplasticEntity, error) {
	var ne NeoplasticEntity
	err := row.Scan(&ne.ID, &ne.CaseID, &ne.Relationship, &ne.RelatedPrimaryID, &ne.AssertionDate,
		&ne.Topography, &ne.Morphology, &ne.Differentiation, &ne.Laterality, &ne.CreatedAt, &ne.UpdatedAt)
	return &ne, err
}

func (r *neoplasticEntityRepoPG) Create(ctx context.Context, ne *NeoplasticEntity) error {
	if ne.ID == uuid.Nil {
		ne.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO neoplastic_entities (id, case_id, relationship, related_primary_id, assertion_date,
			topography, morphology, differentiation, laterality)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ne.ID, ne.CaseID, ne.Relationship, ne.RelatedPrimaryID, ne.AssertionDate,
		ne.Topography, ne.Morphology, ne.Differentiation, ne.Laterality)
	return err
}

func (r *neoplasticEntityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*NeoplasticEntity, error) {
	return scanNeoplasticEntity(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+neoplasticEntityCols+` FROM neoplastic_entities WHERE id = $1`, id))
}

func (r *neoplasticEntityRepoPG) Update(ctx context.Context, ne *NeoplasticEntity) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE neoplastic_entities SET relationship=$2, related_primary_id=$3, assertion_date=$4,
			topography=$5, morphology=$6, differentiation=$7, laterality=$8, updated_at=NOW()
		WHERE id = $1`,
		ne.ID, ne.Relationship, ne.RelatedPrimaryID, ne.AssertionDate,
		ne.Topography, ne.Morphology, ne.Differentiation, ne.Laterality)
	return err
}

func (r *neoplasticEntityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM neoplastic_entities WHERE id = $1`, id)
	return err
}

func (r *neoplasticEntityRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*NeoplasticEntity, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM neoplastic_entities WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+neoplasticEntityCols+` FROM neoplastic_entities WHERE case_id = $1
		 ORDER BY assertion_date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*NeoplasticEntity
	for rows.Next() {
		ne, err := scanNeoplasticEntity(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ne)
	}
	return items, total, rows.Err()
}

func (r *neoplasticEntityRepoPG) HasMetastatic(ctx context.Context, caseID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM neoplastic_entities WHERE case_id = $1 AND relationship = $2)`,
		caseID, RelationshipMetastatic).Scan(&exists)
	return exists, err
}

// -- Staging --

type stagingRepoPG struct{ pool *pgxpool.Pool }

func NewStagingRepoPG(pool *pgxpool.Pool) StagingRepository {
	return &stagingRepoPG{pool: pool}
}

const stagingCols = `id, case_id, neoplastic_entity_id, domain, staging_date, stage, details, created_at, updated_at`

func scanStaging(row pgx.Row) (*Staging, error) {
	var st Staging
	err := row.Scan(&st.ID, &st.CaseID, &st.NeoplasticEntityID, &st.Domain, &st.StagingDate,
		&st.Stage, &st.Details, &st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *stagingRepoPG) Create(ctx context.Context, st *Staging) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stagings (id, case_id, neoplastic_entity_id, domain, staging_date, stage, details)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		st.ID, st.CaseID, st.NeoplasticEntityID, st.Domain, st.StagingDate, st.Stage, st.Details)
	return err
}

func (r *stagingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staging, error) {
	return scanStaging(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+stagingCols+` FROM stagings WHERE id = $1`, id))
}

func (r *stagingRepoPG) Update(ctx context.Context, st *Staging) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE stagings SET neoplastic_entity_id=$2, domain=$3, staging_date=$4, stage=$5, details=$6, updated_at=NOW()
		WHERE id = $1`,
		st.ID, st.NeoplasticEntityID, st.Domain, st.StagingDate, st.Stage, st.Details)
	return err
}

func (r *stagingRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM stagings WHERE id = $1`, id)
	return err
}

func (r *stagingRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Staging, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM stagings WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+stagingCols+` FROM stagings WHERE case_id = $1
		 ORDER BY staging_date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Staging
	for rows.Next() {
		st, err := scanStaging(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, st)
	}
	return items, total, rows.Err()
}

// -- TumorMarker --

type tumorMarkerRepoPG struct{ pool *pgxpool.Pool }

func NewTumorMarkerRepoPG(pool *pgxpool.Pool) TumorMarkerRepository {
	return &tumorMarkerRepoPG{pool: pool}
}

const tumorMarkerCols = `id, case_id, date, analyte, value, interpretation, created_at, updated_at`

func scanTumorMarker(row pgx.Row) (*TumorMarker, error) {
	var tm TumorMarker
	err := row.Scan(&tm.ID, &tm.CaseID, &tm.Date, &tm.Analyte, &tm.Value, &tm.Interpretation,
		&tm.CreatedAt, &tm.UpdatedAt)
	return &tm, err
}

func (r *tumorMarkerRepoPG) Create(ctx context.Context, tm *TumorMarker) error {
	if tm.ID == uuid.Nil {
		tm.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tumor_markers (id, case_id, date, analyte, value, interpretation)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		tm.ID, tm.CaseID, tm.Date, tm.Analyte, tm.Value, tm.Interpretation)
	return err
}

func (r *tumorMarkerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TumorMarker, error) {
	return scanTumorMarker(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tumorMarkerCols+` FROM tumor_markers WHERE id = $1`, id))
}

func (r *tumorMarkerRepoPG) Update(ctx context.Context, tm *TumorMarker) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE tumor_markers SET date=$2, analyte=$3, value=$4, interpretation=$5, updated_at=NOW()
		WHERE id = $1`,
		tm.ID, tm.Date, tm.Analyte, tm.Value, tm.Interpretation)
	return err
}

func (r *tumorMarkerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tumor_markers WHERE id = $1`, id)
	return err
}

func (r *tumorMarkerRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorMarker, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM tumor_markers WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+tumorMarkerCols+` FROM tumor_markers WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TumorMarker
	for rows.Next() {
		tm, err := scanTumorMarker(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tm)
	}
	return items, total, rows.Err()
}

// -- RiskAssessment --

type riskAssessmentRepoPG struct{ pool *pgxpool.Pool }

func NewRiskAssessmentRepoPG(pool *pgxpool.Pool) RiskAssessmentRepository {
	return &riskAssessmentRepoPG{pool: pool}
}

const riskAssessmentCols = `id, case_id, date, methodology, result, created_at, updated_at`

func scanRiskAssessment(row pgx.Row) (*RiskAssessment, error) {
	var ra RiskAssessment
	err := row.Scan(&ra.ID, &ra.CaseID, &ra.Date, &ra.Methodology, &ra.Result, &ra.CreatedAt, &ra.UpdatedAt)
	return &ra, err
}

func (r *riskAssessmentRepoPG) Create(ctx context.Context, ra *RiskAssessment) error {
	if ra.ID == uuid.Nil {
		ra.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO risk_assessments (id, case_id, date, methodology, result)
		VALUES ($1,$2,$3,$4,$5)`,
		ra.ID, ra.CaseID, ra.Date, ra.Methodology, ra.Result)
	return err
}

func (r *riskAssessmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*RiskAssessment, error) {
	return scanRiskAssessment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+riskAssessmentCols+` FROM risk_assessments WHERE id = $1`, id))
}

func (r *riskAssessmentRepoPG) Update(ctx context.Context, ra *RiskAssessment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE risk_assessments SET date=$2, methodology=$3, result=$4, updated_at=NOW()
		WHERE id = $1`,
		ra.ID, ra.Date, ra.Methodology, ra.Result)
	return err
}

func (r *riskAssessmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM risk_assessments WHERE id = $1`, id)
	return err
}

func (r *riskAssessmentRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM risk_assessments WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+riskAssessmentCols+` FROM risk_assessments WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*RiskAssessment
	for rows.Next() {
		ra, err := scanRiskAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ra)
	}
	return items, total, rows.Err()
}

// -- TumorBoard --

type tumorBoardRepoPG struct{ pool *pgxpool.Pool }

func NewTumorBoardRepoPG(pool *pgxpool.Pool) TumorBoardRepository {
	return &tumorBoardRepoPG{pool: pool}
}

const tumorBoardCols = `id, case_id, kind, date, therapeutic_recommendations, created_at, updated_at`

func scanTumorBoard(row pgx.Row) (*TumorBoard, error) {
	var tb TumorBoard
	err := row.Scan(&tb.ID, &tb.CaseID, &tb.Kind, &tb.Date, &tb.TherapeuticRecommendations,
		&tb.CreatedAt, &tb.UpdatedAt)
	return &tb, err
}

func (r *tumorBoardRepoPG) Create(ctx context.Context, tb *TumorBoard) error {
	if tb.ID == uuid.Nil {
		tb.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tumor_boards (id, case_id, kind, date, therapeutic_recommendations)
		VALUES ($1,$2,$3,$4,$5)`,
		tb.ID, tb.CaseID, tb.Kind, tb.Date, tb.TherapeuticRecommendations)
	return err
}

func (r *tumorBoardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TumorBoard, error) {
	return scanTumorBoard(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tumorBoardCols+` FROM tumor_boards WHERE id = $1`, id))
}

func (r *tumorBoardRepoPG) Update(ctx context.Context, tb *TumorBoard) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE tumor_boards SET kind=$2, date=$3, therapeutic_recommendations=$4, updated_at=NOW()
		WHERE id = $1`,
		tb.ID, tb.Kind, tb.Date, tb.TherapeuticRecommendations)
	return err
}

func (r *tumorBoardRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tumor_boards WHERE id = $1`, id)
	return err
}

func (r *tumorBoardRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorBoard, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM tumor_boards WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+tumorBoardCols+` FROM tumor_boards WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TumorBoard
	for rows.Next() {
		tb, err := scanTumorBoard(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tb)
	}
	return items, total, rows.Err()
}
