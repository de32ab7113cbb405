package datasets

// fieldType drives which transforms apply and how a raw JSON value is
// rendered.
type fieldType int

const (
	typeString fieldType = iota
	typeNumber
	typeBool
	typeDate
	typeCoded
	typeMeasure
	typePeriod
)

// resourceSchema describes one projectable resource: where its records live
// in an assembled case bundle, its flat fields, and its nested child
// collections.
type resourceSchema struct {
	// bundleKey locates the collection in the bundle JSON; empty for the
	// case itself.
	bundleKey string
	fields    map[string]fieldType
	children  map[string]string
}

var schemas = map[string]resourceSchema{
	"PatientCase": {
		fields: map[string]fieldType{
			"pseudoidentifier":   typeString,
			"clinicalIdentifier": typeString,
			"clinicalCenter":     typeString,
			"gender":             typeCoded,
			"race":               typeCoded,
			"sexAtBirth":         typeCoded,
			"genderIdentity":     typeCoded,
			"dateOfBirth":        typeDate,
			"dateOfDeath":        typeDate,
			"causeOfDeath":       typeCoded,
			"consentStatus":      typeString,
			"age":                typeNumber,
			"isDeceased":         typeBool,
			"overallSurvival":    typeNumber,
		},
	},
	"NeoplasticEntity": {
		bundleKey: "neoplasticEntities",
		fields: map[string]fieldType{
			"relationship":    typeString,
			"assertionDate":   typeDate,
			"topography":      typeCoded,
			"morphology":      typeCoded,
			"differentiation": typeCoded,
			"laterality":      typeCoded,
			"topographyGroup": typeCoded,
		},
	},
	"Staging": {
		bundleKey: "stagings",
		fields: map[string]fieldType{
			"domain":      typeString,
			"stagingDate": typeDate,
			"stage":       typeCoded,
		},
	},
	"TumorMarker": {
		bundleKey: "tumorMarkers",
		fields: map[string]fieldType{
			"date":           typeDate,
			"analyte":        typeCoded,
			"value":          typeMeasure,
			"interpretation": typeCoded,
		},
	},
	"RiskAssessment": {
		bundleKey: "riskAssessments",
		fields: map[string]fieldType{
			"date":        typeDate,
			"methodology": typeCoded,
			"result":      typeCoded,
		},
	},
	"TumorBoard": {
		bundleKey: "tumorBoards",
		fields: map[string]fieldType{
			"kind": typeString,
			"date": typeDate,
		},
	},
	"GenomicVariant": {
		bundleKey: "genomicVariants",
		fields: map[string]fieldType{
			"date":            typeDate,
			"gene":            typeCoded,
			"chromosome":      typeString,
			"dnaChange":       typeString,
			"proteinChange":   typeString,
			"variantType":     typeCoded,
			"alleleFrequency": typeNumber,
			"interpretation":  typeCoded,
		},
	},
	"GenomicSignature": {
		bundleKey: "genomicSignatures",
		fields: map[string]fieldType{
			"kind":           typeString,
			"date":           typeDate,
			"value":          typeMeasure,
			"interpretation": typeCoded,
		},
	},
	"TherapyLine": {
		bundleKey: "therapyLines",
		fields: map[string]fieldType{
			"ordinal":                 typeNumber,
			"intent":                  typeString,
			"label":                   typeString,
			"period":                  typePeriod,
			"progressionFreeSurvival": typeNumber,
		},
	},
	"SystemicTherapy": {
		bundleKey: "systemicTherapies",
		fields: map[string]fieldType{
			"period":            typePeriod,
			"cycles":            typeNumber,
			"intent":            typeString,
			"adjunctiveRole":    typeCoded,
			"terminationReason": typeCoded,
			"isAdjunctive":      typeBool,
		},
		children: map[string]string{"medications": "SystemicTherapyMedication"},
	},
	"SystemicTherapyMedication": {
		fields: map[string]fieldType{
			"drug":            typeCoded,
			"therapyCategory": typeCoded,
			"route":           typeCoded,
			"usedOffLabel":    typeBool,
			"withinSoc":       typeBool,
			"absoluteDose":    typeMeasure,
			"dosePerKg":       typeMeasure,
			"dosePerM2":       typeMeasure,
			"dosePerDay":      typeMeasure,
			"cumulativeDose":  typeMeasure,
		},
	},
	"Radiotherapy": {
		bundleKey: "radiotherapies",
		fields: map[string]fieldType{
			"period":            typePeriod,
			"sessions":          typeNumber,
			"intent":            typeString,
			"terminationReason": typeCoded,
		},
		children: map[string]string{
			"dosages":  "RadiotherapyDosage",
			"settings": "RadiotherapySetting",
		},
	},
	"RadiotherapyDosage": {
		fields: map[string]fieldType{
			"dose":             typeMeasure,
			"fractions":        typeNumber,
			"irradiatedVolume": typeCoded,
		},
	},
	"RadiotherapySetting": {
		fields: map[string]fieldType{
			"modality":  typeCoded,
			"technique": typeCoded,
		},
	},
	"Surgery": {
		bundleKey: "surgeries",
		fields: map[string]fieldType{
			"date":      typeDate,
			"intent":    typeString,
			"procedure": typeCoded,
			"location":  typeCoded,
		},
	},
	"AdverseEvent": {
		bundleKey: "adverseEvents",
		fields: map[string]fieldType{
			"date":    typeDate,
			"event":   typeCoded,
			"grade":   typeNumber,
			"outcome": typeCoded,
		},
		children: map[string]string{
			"suspectedCauses": "AdverseEventSuspectedCause",
			"mitigations":     "AdverseEventMitigation",
		},
	},
	"AdverseEventSuspectedCause": {
		fields: map[string]fieldType{
			"cause":     typeCoded,
			"causality": typeCoded,
		},
	},
	"AdverseEventMitigation": {
		fields: map[string]fieldType{
			"action": typeCoded,
			"note":   typeString,
		},
	},
	"TreatmentResponse": {
		bundleKey: "treatmentResponses",
		fields: map[string]fieldType{
			"date":   typeDate,
			"recist": typeCoded,
			"method": typeCoded,
		},
	},
	"PerformanceStatus": {
		bundleKey: "performanceStatuses",
		fields: map[string]fieldType{
			"date":      typeDate,
			"ecog":      typeNumber,
			"karnofsky": typeNumber,
		},
	},
	"ComorbiditiesAssessment": {
		bundleKey: "comorbiditiesAssessments",
		fields: map[string]fieldType{
			"date":     typeDate,
			"panel":    typeString,
			"category": typeString,
			"score":    typeNumber,
		},
	},
	"Vitals": {
		bundleKey: "vitals",
		fields: map[string]fieldType{
			"date":          typeDate,
			"height":        typeMeasure,
			"weight":        typeMeasure,
			"bodyMassIndex": typeNumber,
		},
	},
	"Lifestyle": {
		bundleKey: "lifestyles",
		fields: map[string]fieldType{
			"date":          typeDate,
			"smokingStatus": typeCoded,
			"packYears":     typeNumber,
			"alcoholUse":    typeCoded,
		},
	},
	"FamilyHistory": {
		bundleKey: "familyHistories",
		fields: map[string]fieldType{
			"relationship": typeCoded,
			"condition":    typeCoded,
			"ageAtOnset":   typeNumber,
			"deceased":     typeBool,
		},
	},
}
