package therapies

import (
	"context"

	"github.com/google/uuid"
)

type SystemicTherapyRepository interface {
	Create(ctx context.Context, st *SystemicTherapy) error
	GetByID(ctx context.Context, id uuid.UUID) (*SystemicTherapy, error)
	Update(ctx context.Context, st *SystemicTherapy) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*SystemicTherapy, int, error)

	// ListByCaseOrdered returns every systemic therapy of the case with
	// medications loaded, ordered by period start ascending.
	ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*SystemicTherapy, error)
	AttachLine(ctx context.Context, therapyID uuid.UUID, lineID *uuid.UUID) error

	CreateMedication(ctx context.Context, m *SystemicTherapyMedication) error
	GetMedication(ctx context.Context, id uuid.UUID) (*SystemicTherapyMedication, error)
	UpdateMedication(ctx context.Context, m *SystemicTherapyMedication) error
	DeleteMedication(ctx context.Context, id uuid.UUID) error
	ListMedications(ctx context.Context, therapyID uuid.UUID) ([]*SystemicTherapyMedication, error)
}

type RadiotherapyRepository interface {
	Create(ctx context.Context, rt *Radiotherapy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Radiotherapy, error)
	Update(ctx context.Context, rt *Radiotherapy) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Radiotherapy, int, error)
	ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*Radiotherapy, error)
	AttachLine(ctx context.Context, radiotherapyID uuid.UUID, lineID *uuid.UUID) error

	CreateDosage(ctx context.Context, d *RadiotherapyDosage) error
	GetDosage(ctx context.Context, id uuid.UUID) (*RadiotherapyDosage, error)
	UpdateDosage(ctx context.Context, d *RadiotherapyDosage) error
	DeleteDosage(ctx context.Context, id uuid.UUID) error
	ListDosages(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapyDosage, error)

	CreateSetting(ctx context.Context, s *RadiotherapySetting) error
	GetSetting(ctx context.Context, id uuid.UUID) (*RadiotherapySetting, error)
	UpdateSetting(ctx context.Context, s *RadiotherapySetting) error
	DeleteSetting(ctx context.Context, id uuid.UUID) error
	ListSettings(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapySetting, error)
}

type SurgeryRepository interface {
	Create(ctx context.Context, sg *Surgery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error)
	Update(ctx context.Context, sg *Surgery) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Surgery, int, error)
	ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*Surgery, error)
	AttachLine(ctx context.Context, surgeryID uuid.UUID, lineID *uuid.UUID) error
}

type TherapyLineRepository interface {
	Create(ctx context.Context, tl *TherapyLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*TherapyLine, error)
	Update(ctx context.Context, tl *TherapyLine) error
	DeleteByCase(ctx context.Context, caseID uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TherapyLine, int, error)
	FindByLabel(ctx context.Context, caseID uuid.UUID, intent string, ordinal int) (*TherapyLine, error)
}
