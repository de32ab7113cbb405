package cohorts

import (
	"fmt"
	"strings"

	"github.com/oncore/oncore/internal/domain/cases"
)

// completionRateExpr computes the documented share of the closed category
// set for one case, matching the read-side decoration.
var completionRateExpr = fmt.Sprintf(
	"((SELECT COUNT(*) FROM data_completions dc WHERE dc.case_id = $T.id)::double precision / %d)",
	len(cases.CompletionCategories))

// fieldKind selects the operator set a filter value is checked against.
type fieldKind int

const (
	kindString fieldKind = iota
	kindDate
	kindInteger
	kindFloat
	kindBool
	kindEnum
	kindReference
	kindCoded
	kindCodedList
	kindPeriod
)

// field maps a storage path to the SQL expression that reads it. Period
// fields use the start/end pair instead of expr. relation names a child
// table the predicate must traverse with an extra EXISTS.
type field struct {
	kind     fieldKind
	expr     string
	start    string
	end      string
	relation string
}

// relation is a child table reachable from an entity, keyed by the first
// path step of a traversing filter.
type relation struct {
	table string
	fk    string
}

// entity is one queryable entity kind: its table, how rows tie back to the
// case, and the closed set of filterable fields keyed by storage path
// (camelCase steps folded to snake_case, joined by "__").
type entity struct {
	table      string
	caseColumn string
	fields     map[string]field
	relations  map[string]relation
}

// catalog is the closed set of entities cohort rules may reference.
var catalog = map[string]entity{
	"PatientCase": {
		table:      "patient_cases",
		caseColumn: "id",
		fields: map[string]field{
			"pseudoidentifier":    {kind: kindString, expr: "pseudoidentifier"},
			"clinical_identifier": {kind: kindString, expr: "clinical_identifier"},
			"clinical_center":     {kind: kindString, expr: "clinical_center"},
			"gender":              {kind: kindCoded, expr: "gender"},
			"race":                {kind: kindCoded, expr: "race"},
			"sex_at_birth":        {kind: kindCoded, expr: "sex_at_birth"},
			"gender_identity":     {kind: kindCoded, expr: "gender_identity"},
			"date_of_birth":       {kind: kindDate, expr: "date_of_birth"},
			"date_of_death":       {kind: kindDate, expr: "date_of_death"},
			"cause_of_death":      {kind: kindCoded, expr: "cause_of_death"},
			"consent_status":      {kind: kindEnum, expr: "consent_status"},

			"age":                  {kind: kindInteger, expr: "DATE_PART('year', AGE(COALESCE($T.date_of_death, CURRENT_DATE), $T.date_of_birth))"},
			"is_deceased":          {kind: kindBool, expr: "($T.date_of_death IS NOT NULL OR $T.cause_of_death IS NOT NULL)"},
			"data_completion_rate": {kind: kindFloat, expr: completionRateExpr},
			"overall_survival":     {kind: kindFloat, expr: "(SELECT ($T.date_of_death - MIN(ne.assertion_date))::double precision / 30.4375 FROM neoplastic_entities ne WHERE ne.case_id = $T.id AND $T.date_of_death IS NOT NULL)"},
		},
	},
	"NeoplasticEntity": {
		table:      "neoplastic_entities",
		caseColumn: "case_id",
		fields: map[string]field{
			"relationship":     {kind: kindEnum, expr: "relationship"},
			"related_primary":  {kind: kindReference, expr: "related_primary_id"},
			"assertion_date":   {kind: kindDate, expr: "assertion_date"},
			"topography":       {kind: kindCoded, expr: "topography"},
			"topography_group": {kind: kindCoded, expr: "jsonb_build_object('code', LEFT($T.topography->>'code', 3), 'display', $T.topography->>'display')"},
			"morphology":       {kind: kindCoded, expr: "morphology"},
			"differentiation":  {kind: kindCoded, expr: "differentiation"},
			"laterality":       {kind: kindCoded, expr: "laterality"},
		},
	},
	"Staging": {
		table:      "stagings",
		caseColumn: "case_id",
		fields: map[string]field{
			"domain":       {kind: kindEnum, expr: "domain"},
			"staging_date": {kind: kindDate, expr: "staging_date"},
			"stage":        {kind: kindCoded, expr: "stage"},
		},
	},
	"TumorMarker": {
		table:      "tumor_markers",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":           {kind: kindDate, expr: "date"},
			"analyte":        {kind: kindCoded, expr: "analyte"},
			"value":          {kind: kindFloat, expr: "($T.value->>'value')::double precision"},
			"interpretation": {kind: kindCoded, expr: "interpretation"},
		},
	},
	"RiskAssessment": {
		table:      "risk_assessments",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":        {kind: kindDate, expr: "date"},
			"methodology": {kind: kindCoded, expr: "methodology"},
			"result":      {kind: kindCoded, expr: "result"},
		},
	},
	"GenomicVariant": {
		table:      "genomic_variants",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":             {kind: kindDate, expr: "date"},
			"gene":             {kind: kindCoded, expr: "gene"},
			"chromosome":       {kind: kindString, expr: "chromosome"},
			"dna_change":       {kind: kindString, expr: "dna_change"},
			"protein_change":   {kind: kindString, expr: "protein_change"},
			"variant_type":     {kind: kindEnum, expr: "variant_type"},
			"allele_frequency": {kind: kindFloat, expr: "allele_frequency"},
			"interpretation":   {kind: kindCoded, expr: "interpretation"},
		},
	},
	"GenomicSignature": {
		table:      "genomic_signatures",
		caseColumn: "case_id",
		fields: map[string]field{
			"kind":           {kind: kindEnum, expr: "kind"},
			"date":           {kind: kindDate, expr: "date"},
			"value":          {kind: kindFloat, expr: "value"},
			"interpretation": {kind: kindCoded, expr: "interpretation"},
		},
	},
	"TumorBoard": {
		table:      "tumor_boards",
		caseColumn: "case_id",
		fields: map[string]field{
			"kind": {kind: kindEnum, expr: "kind"},
			"date": {kind: kindDate, expr: "date"},
		},
	},
	"SystemicTherapy": {
		table:      "systemic_therapies",
		caseColumn: "case_id",
		relations: map[string]relation{
			"medications": {table: "systemic_therapy_medications", fk: "therapy_id"},
		},
		fields: map[string]field{
			"period":             {kind: kindPeriod, start: "period_start", end: "period_end"},
			"cycles":             {kind: kindInteger, expr: "cycles"},
			"intent":             {kind: kindEnum, expr: "intent"},
			"adjunctive_role":    {kind: kindCoded, expr: "adjunctive_role"},
			"termination_reason": {kind: kindCoded, expr: "termination_reason"},
			"therapy_line":       {kind: kindReference, expr: "therapy_line_id"},

			"is_adjunctive":    {kind: kindBool, expr: "($T.adjunctive_role IS NOT NULL)"},
			"drug_combination": {kind: kindString, expr: "(SELECT string_agg(DISTINCT m.drug->>'display', ' + ' ORDER BY m.drug->>'display') FROM systemic_therapy_medications m WHERE m.therapy_id = $T.id)"},

			"medications__drug":             {kind: kindCoded, expr: "drug", relation: "medications"},
			"medications__therapy_category": {kind: kindCoded, expr: "therapy_category", relation: "medications"},
			"medications__route":            {kind: kindCoded, expr: "route", relation: "medications"},
			"medications__used_off_label":   {kind: kindBool, expr: "used_off_label", relation: "medications"},
			"medications__within_soc":       {kind: kindBool, expr: "within_soc", relation: "medications"},
		},
	},
	"Radiotherapy": {
		table:      "radiotherapies",
		caseColumn: "case_id",
		relations: map[string]relation{
			"dosages":  {table: "radiotherapy_dosages", fk: "radiotherapy_id"},
			"settings": {table: "radiotherapy_settings", fk: "radiotherapy_id"},
		},
		fields: map[string]field{
			"period":             {kind: kindPeriod, start: "period_start", end: "period_end"},
			"sessions":           {kind: kindInteger, expr: "sessions"},
			"intent":             {kind: kindEnum, expr: "intent"},
			"termination_reason": {kind: kindCoded, expr: "termination_reason"},
			"therapy_line":       {kind: kindReference, expr: "therapy_line_id"},

			"dosages__dose":              {kind: kindFloat, expr: "($T.dose->>'value')::double precision", relation: "dosages"},
			"dosages__fractions":         {kind: kindInteger, expr: "fractions", relation: "dosages"},
			"dosages__irradiated_volume": {kind: kindCoded, expr: "irradiated_volume", relation: "dosages"},
			"settings__modality":         {kind: kindCoded, expr: "modality", relation: "settings"},
			"settings__technique":        {kind: kindCoded, expr: "technique", relation: "settings"},
		},
	},
	"Surgery": {
		table:      "surgeries",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":         {kind: kindDate, expr: "date"},
			"intent":       {kind: kindEnum, expr: "intent"},
			"procedure":    {kind: kindCoded, expr: "procedure"},
			"location":     {kind: kindCoded, expr: "location"},
			"therapy_line": {kind: kindReference, expr: "therapy_line_id"},
		},
	},
	"TherapyLine": {
		table:      "therapy_lines",
		caseColumn: "case_id",
		fields: map[string]field{
			"ordinal": {kind: kindInteger, expr: "ordinal"},
			"intent":  {kind: kindEnum, expr: "intent"},
			"label":   {kind: kindString, expr: "((CASE WHEN $T.intent = 'curative' THEN 'C' ELSE 'P' END) || 'LoT' || $T.ordinal)"},
			"period":  {kind: kindPeriod, start: "period_start", end: "period_end"},
		},
	},
	"AdverseEvent": {
		table:      "adverse_events",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":    {kind: kindDate, expr: "date"},
			"event":   {kind: kindCoded, expr: "event"},
			"grade":   {kind: kindInteger, expr: "grade"},
			"outcome": {kind: kindEnum, expr: "outcome"},
		},
	},
	"TreatmentResponse": {
		table:      "treatment_responses",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":   {kind: kindDate, expr: "date"},
			"recist": {kind: kindCoded, expr: "recist"},
			"method": {kind: kindCoded, expr: "method"},
		},
	},
	"PerformanceStatus": {
		table:      "performance_statuses",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":      {kind: kindDate, expr: "date"},
			"ecog":      {kind: kindInteger, expr: "ecog"},
			"karnofsky": {kind: kindInteger, expr: "karnofsky"},
		},
	},
	"ComorbiditiesAssessment": {
		table:      "comorbidities_assessments",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":          {kind: kindDate, expr: "date"},
			"panel":         {kind: kindString, expr: "panel"},
			"category":      {kind: kindString, expr: "category"},
			"comorbidities": {kind: kindCodedList, expr: "comorbidities"},
			"score":         {kind: kindInteger, expr: "score"},
		},
	},
	"Vitals": {
		table:      "vitals",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":   {kind: kindDate, expr: "date"},
			"height": {kind: kindFloat, expr: "($T.height->>'value')::double precision"},
			"weight": {kind: kindFloat, expr: "($T.weight->>'value')::double precision"},
		},
	},
	"Lifestyle": {
		table:      "lifestyles",
		caseColumn: "case_id",
		fields: map[string]field{
			"date":           {kind: kindDate, expr: "date"},
			"smoking_status": {kind: kindCoded, expr: "smoking_status"},
			"pack_years":     {kind: kindFloat, expr: "pack_years"},
			"alcohol_use":    {kind: kindCoded, expr: "alcohol_use"},
		},
	},
	"FamilyHistory": {
		table:      "family_histories",
		caseColumn: "case_id",
		fields: map[string]field{
			"relationship": {kind: kindCoded, expr: "relationship"},
			"condition":    {kind: kindCoded, expr: "condition"},
			"age_at_onset": {kind: kindInteger, expr: "age_at_onset"},
			"deceased":     {kind: kindBool, expr: "deceased"},
		},
	},
}

// fieldExpr qualifies a field's SQL for one table alias. Computed
// expressions mark their column references with the $T placeholder; plain
// column names are prefixed directly.
func fieldExpr(fld field, alias string) string {
	if strings.Contains(fld.expr, "$T.") {
		return strings.ReplaceAll(fld.expr, "$T.", alias+".")
	}
	return alias + "." + fld.expr
}

// storagePath folds a wire-level dot path to its storage key: camelCase
// steps become snake_case joined by "__", so "medications.usedOffLabel"
// resolves to "medications__used_off_label".
func storagePath(dotPath string) string {
	steps := strings.Split(dotPath, ".")
	for i, step := range steps {
		steps[i] = snakeCase(step)
	}
	return strings.Join(steps, "__")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
