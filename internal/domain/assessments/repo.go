package assessments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AdverseEventRepository interface {
	Create(ctx context.Context, ae *AdverseEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*AdverseEvent, error)
	Update(ctx context.Context, ae *AdverseEvent) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*AdverseEvent, int, error)

	CreateCause(ctx context.Context, sc *SuspectedCause) error
	GetCause(ctx context.Context, id uuid.UUID) (*SuspectedCause, error)
	UpdateCause(ctx context.Context, sc *SuspectedCause) error
	DeleteCause(ctx context.Context, id uuid.UUID) error
	ListCauses(ctx context.Context, adverseEventID uuid.UUID) ([]*SuspectedCause, error)

	CreateMitigation(ctx context.Context, m *Mitigation) error
	GetMitigation(ctx context.Context, id uuid.UUID) (*Mitigation, error)
	UpdateMitigation(ctx context.Context, m *Mitigation) error
	DeleteMitigation(ctx context.Context, id uuid.UUID) error
	ListMitigations(ctx context.Context, adverseEventID uuid.UUID) ([]*Mitigation, error)
}

type TreatmentResponseRepository interface {
	Create(ctx context.Context, tr *TreatmentResponse) error
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentResponse, error)
	Update(ctx context.Context, tr *TreatmentResponse) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TreatmentResponse, int, error)
	ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*TreatmentResponse, error)

	// ProgressionDates returns the dated progressive-disease assessments of
	// a case, ascending.
	ProgressionDates(ctx context.Context, caseID uuid.UUID) ([]time.Time, error)
}

type PerformanceStatusRepository interface {
	Create(ctx context.Context, ps *PerformanceStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*PerformanceStatus, error)
	Update(ctx context.Context, ps *PerformanceStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*PerformanceStatus, int, error)
}

type ComorbiditiesRepository interface {
	Create(ctx context.Context, ca *ComorbiditiesAssessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*ComorbiditiesAssessment, error)
	Update(ctx context.Context, ca *ComorbiditiesAssessment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*ComorbiditiesAssessment, int, error)
}

type VitalsRepository interface {
	Create(ctx context.Context, v *Vitals) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vitals, error)
	Update(ctx context.Context, v *Vitals) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Vitals, int, error)
}

type LifestyleRepository interface {
	Create(ctx context.Context, l *Lifestyle) error
	GetByID(ctx context.Context, id uuid.UUID) (*Lifestyle, error)
	Update(ctx context.Context, l *Lifestyle) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Lifestyle, int, error)
}

type FamilyHistoryRepository interface {
	Create(ctx context.Context, fh *FamilyHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*FamilyHistory, error)
	Update(ctx context.Context, fh *FamilyHistory) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*FamilyHistory, int, error)
}
