package cases

import (
	"context"
	"errors"
	"fmt"
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

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewPatientCaseRepoPG(pool *pgxpool.Pool) PatientCaseRepository {
	return &caseRepoPG{pool: pool}
}

func (r *caseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const caseCols = `id, pseudoidentifier, clinical_identifier, clinical_center,
	gender, race, sex_at_birth, gender_identity,
	date_of_birth, date_of_death, cause_of_death, consent_status,
	created_at, updated_at`

func (r *caseRepoPG) scanRow(row pgx.Row) (*PatientCase, error) {
	var pc PatientCase
	err := row.Scan(&pc.ID, &pc.Pseudoidentifier, &pc.ClinicalIdentifier, &pc.ClinicalCenter,
		&pc.Gender, &pc.Race, &pc.SexAtBirth, &pc.GenderIdentity,
		&pc.DateOfBirth, &pc.DateOfDeath, &pc.CauseOfDeath, &pc.ConsentStatus,
		&pc.CreatedAt, &pc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *caseRepoPG) Create(ctx context.Context, pc *PatientCase) error {
	if pc.ID == uuid.Nil {
		pc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_cases (id, pseudoidentifier, clinical_identifier, clinical_center,
			gender, race, sex_at_birth, gender_identity,
			date_of_birth, date_of_death, cause_of_death, consent_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		pc.ID, pc.Pseudoidentifier, pc.ClinicalIdentifier, pc.ClinicalCenter,
		pc.Gender, pc.Race, pc.SexAtBirth, pc.GenderIdentity,
		pc.DateOfBirth, pc.DateOfDeath, pc.CauseOfDeath, pc.ConsentStatus)
	return err
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientCase, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM patient_cases WHERE id = $1`, id))
}

func (r *caseRepoPG) GetByPseudoidentifier(ctx context.Context, pseudoidentifier string) (*PatientCase, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+` FROM patient_cases WHERE pseudoidentifier = $1`, pseudoidentifier))
}

func (r *caseRepoPG) GetByClinicalIdentifier(ctx context.Context, clinicalIdentifier, clinicalCenter string) (*PatientCase, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+` FROM patient_cases WHERE clinical_identifier = $1 AND clinical_center = $2`,
		clinicalIdentifier, clinicalCenter))
}

func (r *caseRepoPG) Update(ctx context.Context, pc *PatientCase) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_cases SET clinical_identifier=$2, clinical_center=$3,
			gender=$4, race=$5, sex_at_birth=$6, gender_identity=$7,
			date_of_birth=$8, date_of_death=$9, cause_of_death=$10, consent_status=$11,
			updated_at=NOW()
		WHERE id = $1`,
		pc.ID, pc.ClinicalIdentifier, pc.ClinicalCenter,
		pc.Gender, pc.Race, pc.SexAtBirth, pc.GenderIdentity,
		pc.DateOfBirth, pc.DateOfDeath, pc.CauseOfDeath, pc.ConsentStatus)
	return err
}

func (r *caseRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	// Child tables cascade via FK.
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_cases WHERE id = $1`, id)
	return err
}

func (r *caseRepoPG) List(ctx context.Context, limit, offset int) ([]*PatientCase, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_cases`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caseCols+` FROM patient_cases ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientCase
	for rows.Next() {
		pc, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, pc)
	}
	return items, total, rows.Err()
}

func (r *caseRepoPG) ListWhere(ctx context.Context, where string, args []interface{}, orderBy string, limit, offset int) ([]*PatientCase, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_cases pc WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	listArgs := append(append([]interface{}{}, args...), limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caseCols+` FROM patient_cases pc WHERE `+where+
			` ORDER BY `+orderBy+fmt.Sprintf(` LIMIT $%d OFFSET $%d`, n+1, n+2), listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientCase
	for rows.Next() {
		pc, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, pc)
	}
	return items, total, rows.Err()
}

func (r *caseRepoPG) FirstNeoplasmAssertion(ctx context.Context, caseID uuid.UUID) (*time.Time, error) {
	var first *time.Time
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT MIN(assertion_date) FROM neoplastic_entities WHERE case_id = $1`, caseID).Scan(&first)
	return first, err
}

// ownedResourceQuery enumerates the top-level child records of a case,
// one UNION ALL arm per owned table.
const ownedResourceQuery = `
	SELECT 'NeoplasticEntity', id FROM neoplastic_entities WHERE case_id = $1
	UNION ALL SELECT 'Staging', id FROM stagings WHERE case_id = $1
	UNION ALL SELECT 'TumorMarker', id FROM tumor_markers WHERE case_id = $1
	UNION ALL SELECT 'RiskAssessment', id FROM risk_assessments WHERE case_id = $1
	UNION ALL SELECT 'GenomicVariant', id FROM genomic_variants WHERE case_id = $1
	UNION ALL SELECT 'GenomicSignature', id FROM genomic_signatures WHERE case_id = $1
	UNION ALL SELECT 'TumorBoard', id FROM tumor_boards WHERE case_id = $1
	UNION ALL SELECT 'TherapyLine', id FROM therapy_lines WHERE case_id = $1
	UNION ALL SELECT 'SystemicTherapy', id FROM systemic_therapies WHERE case_id = $1
	UNION ALL SELECT 'Radiotherapy', id FROM radiotherapies WHERE case_id = $1
	UNION ALL SELECT 'Surgery', id FROM surgeries WHERE case_id = $1
	UNION ALL SELECT 'AdverseEvent', id FROM adverse_events WHERE case_id = $1
	UNION ALL SELECT 'TreatmentResponse', id FROM treatment_responses WHERE case_id = $1
	UNION ALL SELECT 'PerformanceStatus', id FROM performance_statuses WHERE case_id = $1
	UNION ALL SELECT 'ComorbiditiesAssessment', id FROM comorbidities_assessments WHERE case_id = $1
	UNION ALL SELECT 'Vitals', id FROM vitals WHERE case_id = $1
	UNION ALL SELECT 'Lifestyle', id FROM lifestyles WHERE case_id = $1
	UNION ALL SELECT 'FamilyHistory', id FROM family_histories WHERE case_id = $1`

func (r *caseRepoPG) OwnedResources(ctx context.Context, caseID uuid.UUID) ([]OwnedResource, error) {
	rows, err := r.conn(ctx).Query(ctx, ownedResourceQuery, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owned []OwnedResource
	for rows.Next() {
		var o OwnedResource
		if err := rows.Scan(&o.Type, &o.ID); err != nil {
			return nil, err
		}
		owned = append(owned, o)
	}
	return owned, rows.Err()
}

func (r *caseRepoPG) ListCompletions(ctx context.Context, caseID uuid.UUID) ([]*DataCompletion, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, case_id, category, created_at FROM data_completions WHERE case_id = $1 ORDER BY category`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DataCompletion
	for rows.Next() {
		var dc DataCompletion
		if err := rows.Scan(&dc.ID, &dc.CaseID, &dc.Category, &dc.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &dc)
	}
	return items, rows.Err()
}

func (r *caseRepoPG) AddCompletion(ctx context.Context, dc *DataCompletion) error {
	if dc.ID == uuid.Nil {
		dc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO data_completions (id, case_id, category)
		VALUES ($1,$2,$3)
		ON CONFLICT (case_id, category) DO NOTHING`,
		dc.ID, dc.CaseID, dc.Category)
	return err
}

func (r *caseRepoPG) RemoveCompletion(ctx context.Context, caseID uuid.UUID, category string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM data_completions WHERE case_id = $1 AND category = $2`, caseID, category)
	return err
}
