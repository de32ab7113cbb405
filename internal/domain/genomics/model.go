package genomics

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// GenomicVariant is a single sequenced variant finding on a case.
type GenomicVariant struct {
	ID              uuid.UUID              `json:"id"`
	CaseID          uuid.UUID              `json:"case"`
	Date            *time.Time             `json:"date"`
	Gene            clinical.CodedConcept  `json:"gene"`
	Chromosome      *string                `json:"chromosome"`
	DNAChange       *string                `json:"dnaChange"`
	ProteinChange   *string                `json:"proteinChange"`
	VariantType     *clinical.CodedConcept `json:"variantType"`
	AlleleFrequency *float64               `json:"alleleFrequency"`
	Interpretation  *clinical.CodedConcept `json:"interpretation"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Genomic signature kinds. Each signature is one scalar read-out of the
// tumor genome.
const (
	SignatureTMB = "TMB" // tumor mutational burden
	SignatureMSI = "MSI" // microsatellite instability
	SignatureLOH = "LOH" // loss of heterozygosity
	SignatureHRD = "HRD" // homologous recombination deficiency
	SignatureTNB = "TNB" // tumor neoantigen burden
	SignatureAS  = "AS"  // aneuploidy score
)

var validSignatureKinds = map[string]bool{
	SignatureTMB: true, SignatureMSI: true, SignatureLOH: true,
	SignatureHRD: true, SignatureTNB: true, SignatureAS: true,
}

type GenomicSignature struct {
	ID             uuid.UUID              `json:"id"`
	CaseID         uuid.UUID              `json:"case"`
	Kind           string                 `json:"kind"`
	Date           *time.Time             `json:"date"`
	Value          *clinical.Measure      `json:"value"`
	Interpretation *clinical.CodedConcept `json:"interpretation"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}
