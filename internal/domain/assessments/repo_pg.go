package assessments

import (
	"context"
	"time"

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

// -- AdverseEvent --

type adverseEventRepoPG struct{ pool *pgxpool.Pool }

func NewAdverseEventRepoPG(pool *pgxpool.Pool) AdverseEventRepository {
	return &adverseEventRepoPG{pool: pool}
}

const adverseEventCols = `id, case_id, date, event, grade, outcome, created_at, updated_at`

func scanAdverseEvent(row pgx.Row) (*AdverseEvent, error) {
	var ae AdverseEvent
	err := row.Scan(&ae.ID, &ae.CaseID, &ae.Date, &ae.Event, &ae.Grade, &ae.Outcome,
		&ae.CreatedAt, &ae.UpdatedAt)
	return &ae, err
}

func (r *adverseEventRepoPG) Create(ctx context.Context, ae *AdverseEvent) error {
	if ae.ID == uuid.Nil {
		ae.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO adverse_events (id, case_id, date, event, grade, outcome)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ae.ID, ae.CaseID, ae.Date, ae.Event, ae.Grade, ae.Outcome)
	return err
}

func (r *adverseEventRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AdverseEvent, error) {
	ae, err := scanAdverseEvent(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+adverseEventCols+` FROM adverse_events WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if ae.SuspectedCauses, err = r.ListCauses(ctx, ae.ID); err != nil {
		return nil, err
	}
	if ae.Mitigations, err = r.ListMitigations(ctx, ae.ID); err != nil {
		return nil, err
	}
	return ae, nil
}

func (r *adverseEventRepoPG) Update(ctx context.Context, ae *AdverseEvent) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE adverse_events SET date=$2, event=$3, grade=$4, outcome=$5, updated_at=NOW()
		WHERE id = $1`,
		ae.ID, ae.Date, ae.Event, ae.Grade, ae.Outcome)
	return err
}

func (r *adverseEventRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM adverse_events WHERE id = $1`, id)
	return err
}

func (r *adverseEventRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*AdverseEvent, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM adverse_events WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+adverseEventCols+` FROM adverse_events WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AdverseEvent
	for rows.Next() {
		ae, err := scanAdverseEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ae)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, ae := range items {
		if ae.SuspectedCauses, err = r.ListCauses(ctx, ae.ID); err != nil {
			return nil, 0, err
		}
		if ae.Mitigations, err = r.ListMitigations(ctx, ae.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *adverseEventRepoPG) CreateCause(ctx context.Context, sc *SuspectedCause) error {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO adverse_event_causes (id, adverse_event_id, cause, causality)
		VALUES ($1,$2,$3,$4)`,
		sc.ID, sc.AdverseEventID, sc.Cause, sc.Causality)
	return err
}

func (r *adverseEventRepoPG) GetCause(ctx context.Context, id uuid.UUID) (*SuspectedCause, error) {
	var sc SuspectedCause
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, adverse_event_id, cause, causality, created_at, updated_at
		 FROM adverse_event_causes WHERE id = $1`, id).
		Scan(&sc.ID, &sc.AdverseEventID, &sc.Cause, &sc.Causality, &sc.CreatedAt, &sc.UpdatedAt)
	return &sc, err
}

func (r *adverseEventRepoPG) UpdateCause(ctx context.Context, sc *SuspectedCause) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE adverse_event_causes SET cause=$2, causality=$3, updated_at=NOW() WHERE id = $1`,
		sc.ID, sc.Cause, sc.Causality)
	return err
}

func (r *adverseEventRepoPG) DeleteCause(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM adverse_event_causes WHERE id = $1`, id)
	return err
}

func (r *adverseEventRepoPG) ListCauses(ctx context.Context, adverseEventID uuid.UUID) ([]*SuspectedCause, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, adverse_event_id, cause, causality, created_at, updated_at
		 FROM adverse_event_causes WHERE adverse_event_id = $1 ORDER BY created_at`, adverseEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SuspectedCause
	for rows.Next() {
		var sc SuspectedCause
		if err := rows.Scan(&sc.ID, &sc.AdverseEventID, &sc.Cause, &sc.Causality, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &sc)
	}
	return items, rows.Err()
}

func (r *adverseEventRepoPG) CreateMitigation(ctx context.Context, m *Mitigation) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO adverse_event_mitigations (id, adverse_event_id, action, note)
		VALUES ($1,$2,$3,$4)`,
		m.ID, m.AdverseEventID, m.Action, m.Note)
	return err
}

func (r *adverseEventRepoPG) GetMitigation(ctx context.Context, id uuid.UUID) (*Mitigation, error) {
	var m Mitigation
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, adverse_event_id, action, note, created_at, updated_at
		 FROM adverse_event_mitigations WHERE id = $1`, id).
		Scan(&m.ID, &m.AdverseEventID, &m.Action, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *adverseEventRepoPG) UpdateMitigation(ctx context.Context, m *Mitigation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE adverse_event_mitigations SET action=$2, note=$3, updated_at=NOW() WHERE id = $1`,
		m.ID, m.Action, m.Note)
	return err
}

func (r *adverseEventRepoPG) DeleteMitigation(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM adverse_event_mitigations WHERE id = $1`, id)
	return err
}

func (r *adverseEventRepoPG) ListMitigations(ctx context.Context, adverseEventID uuid.UUID) ([]*Mitigation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, adverse_event_id, action, note, created_at, updated_at
		 FROM adverse_event_mitigations WHERE adverse_event_id = $1 ORDER BY created_at`, adverseEventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Mitigation
	for rows.Next() {
		var m Mitigation
		if err := rows.Scan(&m.ID, &m.AdverseEventID, &m.Action, &m.Note, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// -- TreatmentResponse --

type treatmentResponseRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentResponseRepoPG(pool *pgxpool.Pool) TreatmentResponseRepository {
	return &treatmentResponseRepoPG{pool: pool}
}

const treatmentResponseCols = `id, case_id, date, recist, method, created_at, updated_at`

func scanTreatmentResponse(row pgx.Row) (*TreatmentResponse, error) {
	var tr TreatmentResponse
	err := row.Scan(&tr.ID, &tr.CaseID, &tr.Date, &tr.Recist, &tr.Method, &tr.CreatedAt, &tr.UpdatedAt)
	return &tr, err
}

func (r *treatmentResponseRepoPG) Create(ctx context.Context, tr *TreatmentResponse) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO treatment_responses (id, case_id, date, recist, method)
		VALUES ($1,$2,$3,$4,$5)`,
		tr.ID, tr.CaseID, tr.Date, tr.Recist, tr.Method)
	return err
}

func (r *treatmentResponseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TreatmentResponse, error) {
	return scanTreatmentResponse(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentResponseCols+` FROM treatment_responses WHERE id = $1`, id))
}

func (r *treatmentResponseRepoPG) Update(ctx context.Context, tr *TreatmentResponse) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE treatment_responses SET date=$2, recist=$3, method=$4, updated_at=NOW() WHERE id = $1`,
		tr.ID, tr.Date, tr.Recist, tr.Method)
	return err
}

func (r *treatmentResponseRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM treatment_responses WHERE id = $1`, id)
	return err
}

func (r *treatmentResponseRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TreatmentResponse, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment_responses WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+treatmentResponseCols+` FROM treatment_responses WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TreatmentResponse
	for rows.Next() {
		tr, err := scanTreatmentResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tr)
	}
	return items, total, rows.Err()
}

func (r *treatmentResponseRepoPG) ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*TreatmentResponse, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+treatmentResponseCols+` FROM treatment_responses WHERE case_id = ANY($1)
		 ORDER BY date NULLS LAST, created_at`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TreatmentResponse
	for rows.Next() {
		tr, err := scanTreatmentResponse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tr)
	}
	return items, rows.Err()
}

func (r *treatmentResponseRepoPG) ProgressionDates(ctx context.Context, caseID uuid.UUID) ([]time.Time, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT date FROM treatment_responses
		WHERE case_id = $1 AND date IS NOT NULL AND recist->>'code' = $2
		ORDER BY date`, caseID, ProgressionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// -- PerformanceStatus --

type performanceStatusRepoPG struct{ pool *pgxpool.Pool }

func NewPerformanceStatusRepoPG(pool *pgxpool.Pool) PerformanceStatusRepository {
	return &performanceStatusRepoPG{pool: pool}
}

const performanceStatusCols = `id, case_id, date, ecog, karnofsky, created_at, updated_at`

func scanPerformanceStatus(row pgx.Row) (*PerformanceStatus, error) {
	var ps PerformanceStatus
	err := row.Scan(&ps.ID, &ps.CaseID, &ps.Date, &ps.Ecog, &ps.Karnofsky, &ps.CreatedAt, &ps.UpdatedAt)
	return &ps, err
}

func (r *performanceStatusRepoPG) Create(ctx context.Context, ps *PerformanceStatus) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO performance_statuses (id, case_id, date, ecog, karnofsky)
		VALUES ($1,$2,$3,$4,$5)`,
		ps.ID, ps.CaseID, ps.Date, ps.Ecog, ps.Karnofsky)
	return err
}

func (r *performanceStatusRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PerformanceStatus, error) {
	return scanPerformanceStatus(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+performanceStatusCols+` FROM performance_statuses WHERE id = $1`, id))
}

func (r *performanceStatusRepoPG) Update(ctx context.Context, ps *PerformanceStatus) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE performance_statuses SET date=$2, ecog=$3, karnofsky=$4, updated_at=NOW() WHERE id = $1`,
		ps.ID, ps.Date, ps.Ecog, ps.Karnofsky)
	return err
}

func (r *performanceStatusRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM performance_statuses WHERE id = $1`, id)
	return err
}

func (r *performanceStatusRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*PerformanceStatus, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM performance_statuses WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+performanceStatusCols+` FROM performance_statuses WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PerformanceStatus
	for rows.Next() {
		ps, err := scanPerformanceStatus(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ps)
	}
	return items, total, rows.Err()
}

// -- ComorbiditiesAssessment --

type comorbiditiesRepoPG struct{ pool *pgxpool.Pool }

func NewComorbiditiesRepoPG(pool *pgxpool.Pool) ComorbiditiesRepository {
	return &comorbiditiesRepoPG{pool: pool}
}

const comorbiditiesCols = `id, case_id, date, panel, category, comorbidities, score, created_at, updated_at`

func scanComorbidities(row pgx.Row) (*ComorbiditiesAssessment, error) {
	var ca ComorbiditiesAssessment
	err := row.Scan(&ca.ID, &ca.CaseID, &ca.Date, &ca.Panel, &ca.Category, &ca.Comorbidities,
		&ca.Score, &ca.CreatedAt, &ca.UpdatedAt)
	return &ca, err
}

func (r *comorbiditiesRepoPG) Create(ctx context.Context, ca *ComorbiditiesAssessment) error {
	if ca.ID == uuid.Nil {
		ca.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO comorbidities_assessments (id, case_id, date, panel, category, comorbidities, score)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ca.ID, ca.CaseID, ca.Date, ca.Panel, ca.Category, ca.Comorbidities, ca.Score)
	return err
}

func (r *comorbiditiesRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ComorbiditiesAssessment, error) {
	return scanComorbidities(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+comorbiditiesCols+` FROM comorbidities_assessments WHERE id = $1`, id))
}

func (r *comorbiditiesRepoPG) Update(ctx context.Context, ca *ComorbiditiesAssessment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE comorbidities_assessments SET date=$2, panel=$3, category=$4, comorbidities=$5,
			score=$6, updated_at=NOW()
		WHERE id = $1`,
		ca.ID, ca.Date, ca.Panel, ca.Category, ca.Comorbidities, ca.Score)
	return err
}

func (r *comorbiditiesRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM comorbidities_assessments WHERE id = $1`, id)
	return err
}

func (r *comorbiditiesRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*ComorbiditiesAssessment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM comorbidities_assessments WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+comorbiditiesCols+` FROM comorbidities_assessments WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ComorbiditiesAssessment
	for rows.Next() {
		ca, err := scanComorbidities(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ca)
	}
	return items, total, rows.Err()
}

// -- Vitals --

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

const vitalsCols = `id, case_id, date, height, weight, created_at, updated_at`

func scanVitals(row pgx.Row) (*Vitals, error) {
	var v Vitals
	err := row.Scan(&v.ID, &v.CaseID, &v.Date, &v.Height, &v.Weight, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *Vitals) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO vitals (id, case_id, date, height, weight)
		VALUES ($1,$2,$3,$4,$5)`,
		v.ID, v.CaseID, v.Date, v.Height, v.Weight)
	return err
}

func (r *vitalsRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vitals, error) {
	return scanVitals(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+vitalsCols+` FROM vitals WHERE id = $1`, id))
}

func (r *vitalsRepoPG) Update(ctx context.Context, v *Vitals) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE vitals SET date=$2, height=$3, weight=$4, updated_at=NOW() WHERE id = $1`,
		v.ID, v.Date, v.Height, v.Weight)
	return err
}

func (r *vitalsRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM vitals WHERE id = $1`, id)
	return err
}

func (r *vitalsRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Vitals, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM vitals WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+vitalsCols+` FROM vitals WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Vitals
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// -- Lifestyle --

type lifestyleRepoPG struct{ pool *pgxpool.Pool }

func NewLifestyleRepoPG(pool *pgxpool.Pool) LifestyleRepository {
	return &lifestyleRepoPG{pool: pool}
}

const lifestyleCols = `id, case_id, date, smoking_status, pack_years, alcohol_use, created_at, updated_at`

func scanLifestyle(row pgx.Row) (*Lifestyle, error) {
	var l Lifestyle
	err := row.Scan(&l.ID, &l.CaseID, &l.Date, &l.SmokingStatus, &l.PackYears, &l.AlcoholUse,
		&l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

func (r *lifestyleRepoPG) Create(ctx context.Context, l *Lifestyle) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO lifestyles (id, case_id, date, smoking_status, pack_years, alcohol_use)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.CaseID, l.Date, l.SmokingStatus, l.PackYears, l.AlcoholUse)
	return err
}

func (r *lifestyleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Lifestyle, error) {
	return scanLifestyle(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+lifestyleCols+` FROM lifestyles WHERE id = $1`, id))
}

func (r *lifestyleRepoPG) Update(ctx context.Context, l *Lifestyle) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE lifestyles SET date=$2, smoking_status=$3, pack_years=$4, alcohol_use=$5, updated_at=NOW()
		WHERE id = $1`,
		l.ID, l.Date, l.SmokingStatus, l.PackYears, l.AlcoholUse)
	return err
}

func (r *lifestyleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM lifestyles WHERE id = $1`, id)
	return err
}

func (r *lifestyleRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Lifestyle, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM lifestyles WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+lifestyleCols+` FROM lifestyles WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Lifestyle
	for rows.Next() {
		l, err := scanLifestyle(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

// -- FamilyHistory --

type familyHistoryRepoPG struct{ pool *pgxpool.Pool }

func NewFamilyHistoryRepoPG(pool *pgxpool.Pool) FamilyHistoryRepository {
	return &familyHistoryRepoPG{pool: pool}
}

const familyHistoryCols = `id, case_id, relationship, condition, age_at_onset, deceased, created_at, updated_at`

func scanFamilyHistory(row pgx.Row) (*FamilyHistory, error) {
	var fh FamilyHistory
	err := row.Scan(&fh.ID, &fh.CaseID, &fh.Relationship, &fh.Condition, &fh.AgeAtOnset,
		&fh.Deceased, &fh.CreatedAt, &fh.UpdatedAt)
	return &fh, err
}

func (r *familyHistoryRepoPG) Create(ctx context.Context, fh *FamilyHistory) error {
	if fh.ID == uuid.Nil {
		fh.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO family_histories (id, case_id, relationship, condition, age_at_onset, deceased)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		fh.ID, fh.CaseID, fh.Relationship, fh.Condition, fh.AgeAtOnset, fh.Deceased)
	return err
}

func (r *familyHistoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FamilyHistory, error) {
	return scanFamilyHistory(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+familyHistoryCols+` FROM family_histories WHERE id = $1`, id))
}

func (r *familyHistoryRepoPG) Update(ctx context.Context, fh *FamilyHistory) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE family_histories SET relationship=$2, condition=$3, age_at_onset=$4, deceased=$5,
			updated_at=NOW()
		WHERE id = $1`,
		fh.ID, fh.Relationship, fh.Condition, fh.AgeAtOnset, fh.Deceased)
	return err
}

func (r *familyHistoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM family_histories WHERE id = $1`, id)
	return err
}

func (r *familyHistoryRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*FamilyHistory, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM family_histories WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+familyHistoryCols+` FROM family_histories WHERE case_id = $1
		 ORDER BY created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*FamilyHistory
	for rows.Next() {
		fh, err := scanFamilyHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, fh)
	}
	return items, total, rows.Err()
}
