package therapies

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

// -- SystemicTherapy --

type systemicTherapyRepoPG struct{ pool *pgxpool.Pool }

func NewSystemicTherapyRepoPG(pool *pgxpool.Pool) SystemicTherapyRepository {
	return &systemicTherapyRepoPG{pool: pool}
}

const systemicTherapyCols = `id, case_id, therapy_line_id, period_start, period_end, cycles, intent,
	adjunctive_role, termination_reason, created_at, updated_at`

func scanSystemicTherapy(row pgx.Row) (*SystemicTherapy, error) {
	var st SystemicTherapy
	err := row.Scan(&st.ID, &st.CaseID, &st.TherapyLineID, &st.Period.Start, &st.Period.End,
		&st.Cycles, &st.Intent, &st.AdjunctiveRole, &st.TerminationReason, &st.CreatedAt, &st.UpdatedAt)
	return &st, err
}

func (r *systemicTherapyRepoPG) Create(ctx context.Context, st *SystemicTherapy) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO systemic_therapies (id, case_id, therapy_line_id, period_start, period_end,
			cycles, intent, adjunctive_role, termination_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		st.ID, st.CaseID, st.TherapyLineID, st.Period.Start, st.Period.End,
		st.Cycles, st.Intent, st.AdjunctiveRole, st.TerminationReason)
	return err
}

func (r *systemicTherapyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SystemicTherapy, error) {
	st, err := scanSystemicTherapy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+systemicTherapyCols+` FROM systemic_therapies WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	st.Medications, err = r.ListMedications(ctx, st.ID)
	return st, err
}

func (r *systemicTherapyRepoPG) Update(ctx context.Context, st *SystemicTherapy) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE systemic_therapies SET period_start=$2, period_end=$3, cycles=$4, intent=$5,
			adjunctive_role=$6, termination_reason=$7, updated_at=NOW()
		WHERE id = $1`,
		st.ID, st.Period.Start, st.Period.End, st.Cycles, st.Intent,
		st.AdjunctiveRole, st.TerminationReason)
	return err
}

func (r *systemicTherapyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM systemic_therapies WHERE id = $1`, id)
	return err
}

func (r *systemicTherapyRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*SystemicTherapy, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM systemic_therapies WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+systemicTherapyCols+` FROM systemic_therapies WHERE case_id = $1
		 ORDER BY period_start NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SystemicTherapy
	for rows.Next() {
		st, err := scanSystemicTherapy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, st := range items {
		if st.Medications, err = r.ListMedications(ctx, st.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *systemicTherapyRepoPG) ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*SystemicTherapy, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+systemicTherapyCols+` FROM systemic_therapies WHERE case_id = $1
		 ORDER BY period_start NULLS LAST, created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SystemicTherapy
	for rows.Next() {
		st, err := scanSystemicTherapy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, st := range items {
		if st.Medications, err = r.ListMedications(ctx, st.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *systemicTherapyRepoPG) AttachLine(ctx context.Context, therapyID uuid.UUID, lineID *uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE systemic_therapies SET therapy_line_id = $2, updated_at = NOW() WHERE id = $1`,
		therapyID, lineID)
	return err
}

const medicationCols = `id, therapy_id, drug, therapy_category, route, used_off_label, within_soc,
	absolute_dose, dose_per_kg, dose_per_m2, dose_per_day,
	rate_per_hour, rate_per_kg_per_hour, rate_per_m2_per_hour, cumulative_dose,
	created_at, updated_at`

func scanMedication(row pgx.Row) (*SystemicTherapyMedication, error) {
	var m SystemicTherapyMedication
	err := row.Scan(&m.ID, &m.TherapyID, &m.Drug, &m.TherapyCategory, &m.Route, &m.UsedOffLabel, &m.WithinSoc,
		&m.AbsoluteDose, &m.DosePerKg, &m.DosePerM2, &m.DosePerDay,
		&m.RatePerHour, &m.RatePerKgPerHour, &m.RatePerM2PerHour, &m.CumulativeDose,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *systemicTherapyRepoPG) CreateMedication(ctx context.Context, m *SystemicTherapyMedication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO systemic_therapy_medications (id, therapy_id, drug, therapy_category, route,
			used_off_label, within_soc, absolute_dose, dose_per_kg, dose_per_m2, dose_per_day,
			rate_per_hour, rate_per_kg_per_hour, rate_per_m2_per_hour, cumulative_dose)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.TherapyID, m.Drug, m.TherapyCategory, m.Route,
		m.UsedOffLabel, m.WithinSoc, m.AbsoluteDose, m.DosePerKg, m.DosePerM2, m.DosePerDay,
		m.RatePerHour, m.RatePerKgPerHour, m.RatePerM2PerHour, m.CumulativeDose)
	return err
}

func (r *systemicTherapyRepoPG) GetMedication(ctx context.Context, id uuid.UUID) (*SystemicTherapyMedication, error) {
	return scanMedication(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM systemic_therapy_medications WHERE id = $1`, id))
}

func (r *systemicTherapyRepoPG) UpdateMedication(ctx context.Context, m *SystemicTherapyMedication) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE systemic_therapy_medications SET drug=$2, therapy_category=$3, route=$4,
			used_off_label=$5, within_soc=$6, absolute_dose=$7, dose_per_kg=$8, dose_per_m2=$9,
			dose_per_day=$10, rate_per_hour=$11, rate_per_kg_per_hour=$12, rate_per_m2_per_hour=$13,
			cumulative_dose=$14, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Drug, m.TherapyCategory, m.Route,
		m.UsedOffLabel, m.WithinSoc, m.AbsoluteDose, m.DosePerKg, m.DosePerM2,
		m.DosePerDay, m.RatePerHour, m.RatePerKgPerHour, m.RatePerM2PerHour, m.CumulativeDose)
	return err
}

func (r *systemicTherapyRepoPG) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM systemic_therapy_medications WHERE id = $1`, id)
	return err
}

func (r *systemicTherapyRepoPG) ListMedications(ctx context.Context, therapyID uuid.UUID) ([]*SystemicTherapyMedication, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+medicationCols+` FROM systemic_therapy_medications WHERE therapy_id = $1 ORDER BY created_at`, therapyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SystemicTherapyMedication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// -- Radiotherapy --

type radiotherapyRepoPG struct{ pool *pgxpool.Pool }

func NewRadiotherapyRepoPG(pool *pgxpool.Pool) RadiotherapyRepository {
	return &radiotherapyRepoPG{pool: pool}
}

const radiotherapyCols = `id, case_id, therapy_line_id, period_start, period_end, sessions, intent,
	termination_reason, created_at, updated_at`

func scanRadiotherapy(row pgx.Row) (*Radiotherapy, error) {
	var rt Radiotherapy
	err := row.Scan(&rt.ID, &rt.CaseID, &rt.TherapyLineID, &rt.Period.Start, &rt.Period.End,
		&rt.Sessions, &rt.Intent, &rt.TerminationReason, &rt.CreatedAt, &rt.UpdatedAt)
	return &rt, err
}

func (r *radiotherapyRepoPG) Create(ctx context.Context, rt *Radiotherapy) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO radiotherapies (id, case_id, therapy_line_id, period_start, period_end,
			sessions, intent, termination_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rt.ID, rt.CaseID, rt.TherapyLineID, rt.Period.Start, rt.Period.End,
		rt.Sessions, rt.Intent, rt.TerminationReason)
	return err
}

func (r *radiotherapyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Radiotherapy, error) {
	rt, err := scanRadiotherapy(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+radiotherapyCols+` FROM radiotherapies WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if rt.Dosages, err = r.ListDosages(ctx, rt.ID); err != nil {
		return nil, err
	}
	if rt.Settings, err = r.ListSettings(ctx, rt.ID); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *radiotherapyRepoPG) Update(ctx context.Context, rt *Radiotherapy) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE radiotherapies SET period_start=$2, period_end=$3, sessions=$4, intent=$5,
			termination_reason=$6, updated_at=NOW()
		WHERE id = $1`,
		rt.ID, rt.Period.Start, rt.Period.End, rt.Sessions, rt.Intent, rt.TerminationReason)
	return err
}

func (r *radiotherapyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM radiotherapies WHERE id = $1`, id)
	return err
}

func (r *radiotherapyRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Radiotherapy, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM radiotherapies WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+radiotherapyCols+` FROM radiotherapies WHERE case_id = $1
		 ORDER BY period_start NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Radiotherapy
	for rows.Next() {
		rt, err := scanRadiotherapy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rt)
	}
	return items, total, rows.Err()
}

func (r *radiotherapyRepoPG) ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*Radiotherapy, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+radiotherapyCols+` FROM radiotherapies WHERE case_id = $1
		 ORDER BY period_start NULLS LAST, created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Radiotherapy
	for rows.Next() {
		rt, err := scanRadiotherapy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rt)
	}
	return items, rows.Err()
}

func (r *radiotherapyRepoPG) AttachLine(ctx context.Context, radiotherapyID uuid.UUID, lineID *uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE radiotherapies SET therapy_line_id = $2, updated_at = NOW() WHERE id = $1`,
		radiotherapyID, lineID)
	return err
}

func (r *radiotherapyRepoPG) CreateDosage(ctx context.Context, d *RadiotherapyDosage) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO radiotherapy_dosages (id, radiotherapy_id, dose, fractions, irradiated_volume)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.RadiotherapyID, d.Dose, d.Fractions, d.IrradiatedVolume)
	return err
}

func (r *radiotherapyRepoPG) GetDosage(ctx context.Context, id uuid.UUID) (*RadiotherapyDosage, error) {
	var d RadiotherapyDosage
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, radiotherapy_id, dose, fractions, irradiated_volume, created_at, updated_at
		 FROM radiotherapy_dosages WHERE id = $1`, id).
		Scan(&d.ID, &d.RadiotherapyID, &d.Dose, &d.Fractions, &d.IrradiatedVolume, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *radiotherapyRepoPG) UpdateDosage(ctx context.Context, d *RadiotherapyDosage) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE radiotherapy_dosages SET dose=$2, fractions=$3, irradiated_volume=$4, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Dose, d.Fractions, d.IrradiatedVolume)
	return err
}

func (r *radiotherapyRepoPG) DeleteDosage(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM radiotherapy_dosages WHERE id = $1`, id)
	return err
}

func (r *radiotherapyRepoPG) ListDosages(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapyDosage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, radiotherapy_id, dose, fractions, irradiated_volume, created_at, updated_at
		 FROM radiotherapy_dosages WHERE radiotherapy_id = $1 ORDER BY created_at`, radiotherapyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RadiotherapyDosage
	for rows.Next() {
		var d RadiotherapyDosage
		if err := rows.Scan(&d.ID, &d.RadiotherapyID, &d.Dose, &d.Fractions, &d.IrradiatedVolume, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *radiotherapyRepoPG) CreateSetting(ctx context.Context, s *RadiotherapySetting) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO radiotherapy_settings (id, radiotherapy_id, modality, technique)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.RadiotherapyID, s.Modality, s.Technique)
	return err
}

func (r *radiotherapyRepoPG) GetSetting(ctx context.Context, id uuid.UUID) (*RadiotherapySetting, error) {
	var s RadiotherapySetting
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, radiotherapy_id, modality, technique, created_at, updated_at
		 FROM radiotherapy_settings WHERE id = $1`, id).
		Scan(&s.ID, &s.RadiotherapyID, &s.Modality, &s.Technique, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *radiotherapyRepoPG) UpdateSetting(ctx context.Context, s *RadiotherapySetting) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE radiotherapy_settings SET modality=$2, technique=$3, updated_at=NOW() WHERE id = $1`,
		s.ID, s.Modality, s.Technique)
	return err
}

func (r *radiotherapyRepoPG) DeleteSetting(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM radiotherapy_settings WHERE id = $1`, id)
	return err
}

func (r *radiotherapyRepoPG) ListSettings(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapySetting, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, radiotherapy_id, modality, technique, created_at, updated_at
		 FROM radiotherapy_settings WHERE radiotherapy_id = $1 ORDER BY created_at`, radiotherapyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RadiotherapySetting
	for rows.Next() {
		var s RadiotherapySetting
		if err := rows.Scan(&s.ID, &s.RadiotherapyID, &s.Modality, &s.Technique, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// -- Surgery --

type surgeryRepoPG struct{ pool *pgxpool.Pool }

func NewSurgeryRepoPG(pool *pgxpool.Pool) SurgeryRepository {
	return &surgeryRepoPG{pool: pool}
}

const surgeryCols = `id, case_id, therapy_line_id, date, intent, procedure, location, created_at, updated_at`

func scanSurgery(row pgx.Row) (*Surgery, error) {
	var sg Surgery
	err := row.Scan(&sg.ID, &sg.CaseID, &sg.TherapyLineID, &sg.Date, &sg.Intent,
		&sg.Procedure, &sg.Location, &sg.CreatedAt, &sg.UpdatedAt)
	return &sg, err
}

func (r *surgeryRepoPG) Create(ctx context.Context, sg *Surgery) error {
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO surgeries (id, case_id, therapy_line_id, date, intent, procedure, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sg.ID, sg.CaseID, sg.TherapyLineID, sg.Date, sg.Intent, sg.Procedure, sg.Location)
	return err
}

func (r *surgeryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return scanSurgery(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+surgeryCols+` FROM surgeries WHERE id = $1`, id))
}

func (r *surgeryRepoPG) Update(ctx context.Context, sg *Surgery) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE surgeries SET date=$2, intent=$3, procedure=$4, location=$5, updated_at=NOW()
		WHERE id = $1`,
		sg.ID, sg.Date, sg.Intent, sg.Procedure, sg.Location)
	return err
}

func (r *surgeryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM surgeries WHERE id = $1`, id)
	return err
}

func (r *surgeryRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Surgery, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM surgeries WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+surgeryCols+` FROM surgeries WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Surgery
	for rows.Next() {
		sg, err := scanSurgery(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sg)
	}
	return items, total, rows.Err()
}

func (r *surgeryRepoPG) ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*Surgery, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+surgeryCols+` FROM surgeries WHERE case_id = $1 ORDER BY date NULLS LAST, created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Surgery
	for rows.Next() {
		sg, err := scanSurgery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sg)
	}
	return items, rows.Err()
}

func (r *surgeryRepoPG) AttachLine(ctx context.Context, surgeryID uuid.UUID, lineID *uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE surgeries SET therapy_line_id = $2, updated_at = NOW() WHERE id = $1`,
		surgeryID, lineID)
	return err
}

// -- TherapyLine --

type therapyLineRepoPG struct{ pool *pgxpool.Pool }

func NewTherapyLineRepoPG(pool *pgxpool.Pool) TherapyLineRepository {
	return &therapyLineRepoPG{pool: pool}
}

const therapyLineCols = `id, case_id, ordinal, intent, period_start, period_end, created_at, updated_at`

func scanTherapyLine(row pgx.Row) (*TherapyLine, error) {
	var tl TherapyLine
	err := row.Scan(&tl.ID, &tl.CaseID, &tl.Ordinal, &tl.Intent, &tl.Period.Start, &tl.Period.End,
		&tl.CreatedAt, &tl.UpdatedAt)
	return &tl, err
}

func (r *therapyLineRepoPG) Create(ctx context.Context, tl *TherapyLine) error {
	if tl.ID == uuid.Nil {
		tl.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO therapy_lines (id, case_id, ordinal, intent, period_start, period_end)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		tl.ID, tl.CaseID, tl.Ordinal, tl.Intent, tl.Period.Start, tl.Period.End)
	return err
}

func (r *therapyLineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TherapyLine, error) {
	return scanTherapyLine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+therapyLineCols+` FROM therapy_lines WHERE id = $1`, id))
}

func (r *therapyLineRepoPG) Update(ctx context.Context, tl *TherapyLine) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE therapy_lines SET ordinal=$2, intent=$3, period_start=$4, period_end=$5, updated_at=NOW()
		WHERE id = $1`,
		tl.ID, tl.Ordinal, tl.Intent, tl.Period.Start, tl.Period.End)
	return err
}

func (r *therapyLineRepoPG) DeleteByCase(ctx context.Context, caseID uuid.UUID) error {
	// Attached therapies fall back to NULL via ON DELETE SET NULL.
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM therapy_lines WHERE case_id = $1`, caseID)
	return err
}

func (r *therapyLineRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TherapyLine, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM therapy_lines WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+therapyLineCols+` FROM therapy_lines WHERE case_id = $1
		 ORDER BY intent, ordinal LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TherapyLine
	for rows.Next() {
		tl, err := scanTherapyLine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tl)
	}
	return items, total, rows.Err()
}

func (r *therapyLineRepoPG) FindByLabel(ctx context.Context, caseID uuid.UUID, intent string, ordinal int) (*TherapyLine, error) {
	return scanTherapyLine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+therapyLineCols+` FROM therapy_lines WHERE case_id = $1 AND intent = $2 AND ordinal = $3`,
		caseID, intent, ordinal))
}
