package genomics

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

// -- GenomicVariant --

type variantRepoPG struct{ pool *pgxpool.Pool }

func NewGenomicVariantRepoPG(pool *pgxpool.Pool) GenomicVariantRepository {
	return &variantRepoPG{pool: pool}
}

const variantCols = `id, case_id, date, gene, chromosome, dna_change, protein_change,
	variant_type, allele_frequency, interpretation, created_at, updated_at`

func scanVariant(row pgx.Row) (*GenomicVariant, error) {
	var gv GenomicVariant
	err := row.Scan(&gv.ID, &gv.CaseID, &gv.Date, &gv.Gene, &gv.Chromosome, &gv.DNAChange,
		&gv.ProteinChange, &gv.VariantType, &gv.AlleleFrequency, &gv.Interpretation,
		&gv.CreatedAt, &gv.UpdatedAt)
	return &gv, err
}

func (r *variantRepoPG) Create(ctx context.Context, gv *GenomicVariant) error {
	if gv.ID == uuid.Nil {
		gv.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO genomic_variants (id, case_id, date, gene, chromosome, dna_change,
			protein_change, variant_type, allele_frequency, interpretation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		gv.ID, gv.CaseID, gv.Date, gv.Gene, gv.Chromosome, gv.DNAChange,
		gv.ProteinChange, gv.VariantType, gv.AlleleFrequency, gv.Interpretation)
	return err
}

func (r *variantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*GenomicVariant, error) {
	return scanVariant(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+variantCols+` FROM genomic_variants WHERE id = $1`, id))
}

func (r *variantRepoPG) Update(ctx context.Context, gv *GenomicVariant) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE genomic_variants SET date=$2, gene=$3, chromosome=$4, dna_change=$5,
			protein_change=$6, variant_type=$7, allele_frequency=$8, interpretation=$9, updated_at=NOW()
		WHERE id = $1`,
		gv.ID, gv.Date, gv.Gene, gv.Chromosome, gv.DNAChange,
		gv.ProteinChange, gv.VariantType, gv.AlleleFrequency, gv.Interpretation)
	return err
}

func (r *variantRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM genomic_variants WHERE id = $1`, id)
	return err
}

func (r *variantRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicVariant, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM genomic_variants WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+variantCols+` FROM genomic_variants WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*GenomicVariant
	for rows.Next() {
		gv, err := scanVariant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, gv)
	}
	return items, total, rows.Err()
}

func (r *variantRepoPG) ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*GenomicVariant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+variantCols+` FROM genomic_variants WHERE case_id = ANY($1) ORDER BY case_id, created_at`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*GenomicVariant
	for rows.Next() {
		gv, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, gv)
	}
	return items, rows.Err()
}

// -- GenomicSignature --

type signatureRepoPG struct{ pool *pgxpool.Pool }

func NewGenomicSignatureRepoPG(pool *pgxpool.Pool) GenomicSignatureRepository {
	return &signatureRepoPG{pool: pool}
}

const signatureCols = `id, case_id, kind, date, value, interpretation, created_at, updated_at`

func scanSignature(row pgx.Row) (*GenomicSignature, error) {
	var gs GenomicSignature
	err := row.Scan(&gs.ID, &gs.CaseID, &gs.Kind, &gs.Date, &gs.Value, &gs.Interpretation,
		&gs.CreatedAt, &gs.UpdatedAt)
	return &gs, err
}

func (r *signatureRepoPG) Create(ctx context.Context, gs *GenomicSignature) error {
	if gs.ID == uuid.Nil {
		gs.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO genomic_signatures (id, case_id, kind, date, value, interpretation)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		gs.ID, gs.CaseID, gs.Kind, gs.Date, gs.Value, gs.Interpretation)
	return err
}

func (r *signatureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*GenomicSignature, error) {
	return scanSignature(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+signatureCols+` FROM genomic_signatures WHERE id = $1`, id))
}

func (r *signatureRepoPG) Update(ctx context.Context, gs *GenomicSignature) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE genomic_signatures SET kind=$2, date=$3, value=$4, interpretation=$5, updated_at=NOW()
		WHERE id = $1`,
		gs.ID, gs.Kind, gs.Date, gs.Value, gs.Interpretation)
	return err
}

func (r *signatureRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM genomic_signatures WHERE id = $1`, id)
	return err
}

func (r *signatureRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicSignature, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM genomic_signatures WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+signatureCols+` FROM genomic_signatures WHERE case_id = $1
		 ORDER BY date NULLS LAST, created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*GenomicSignature
	for rows.Next() {
		gs, err := scanSignature(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, gs)
	}
	return items, total, rows.Err()
}

func (r *signatureRepoPG) ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*GenomicSignature, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+signatureCols+` FROM genomic_signatures WHERE case_id = ANY($1) ORDER BY case_id, created_at`, caseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*GenomicSignature
	for rows.Next() {
		gs, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, gs)
	}
	return items, rows.Err()
}
