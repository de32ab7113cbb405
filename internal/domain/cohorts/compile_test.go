package cohorts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type stubTerms struct {
	closure map[string][]string
}

func (s stubTerms) DescendantsOf(_ context.Context, system, code string) ([]string, error) {
	return s.closure[system+"|"+code], nil
}

func compile(t *testing.T, doc string) (string, []interface{}) {
	t.Helper()
	return compileWith(t, doc, stubTerms{})
}

func compileWith(t *testing.T, doc string, terms TerminologyResolver) (string, []interface{}) {
	t.Helper()
	rs, err := ParseRuleset(json.RawMessage(doc))
	if err != nil {
		t.Fatalf("parse ruleset: %v", err)
	}
	sql, args, err := NewCompiler(terms).Compile(context.Background(), rs)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return sql, args
}

func TestCompileCaseFieldConjunction(t *testing.T) {
	sql, args := compile(t, `{
		"condition": "AND",
		"rules": [
			{"entity": "PatientCase", "filters": [
				{"field": "pseudoidentifier", "operator": "exact", "value": "A.123.456.78"},
				{"field": "clinicalCenter", "operator": "exact", "value": "X"}
			]}
		]
	}`)

	if !strings.Contains(sql, "pc.pseudoidentifier = $1") {
		t.Errorf("missing pseudoidentifier predicate in %q", sql)
	}
	if !strings.Contains(sql, "pc.clinical_center = $2") {
		t.Errorf("missing clinical_center predicate in %q", sql)
	}
	if len(args) != 2 || args[0] != "A.123.456.78" || args[1] != "X" {
		t.Errorf("args = %v", args)
	}
}

func TestCompileChildEntityBecomesExists(t *testing.T) {
	sql, _ := compile(t, `{
		"condition": "AND",
		"rules": [
			{"entity": "NeoplasticEntity", "filters": [
				{"field": "relationship", "operator": "equals", "value": "primary"}
			]}
		]
	}`)

	if !strings.Contains(sql, "EXISTS (SELECT 1 FROM neoplastic_entities") {
		t.Errorf("expected existence subquery, got %q", sql)
	}
	if !strings.Contains(sql, ".case_id = pc.id") {
		t.Errorf("subquery not tied back to the case in %q", sql)
	}
}

func TestCompileRelationTraversal(t *testing.T) {
	sql, _ := compile(t, `{
		"condition": "AND",
		"rules": [
			{"entity": "SystemicTherapy", "filters": [
				{"field": "medications.drug", "operator": "notIsNull", "value": true}
			]}
		]
	}`)

	if !strings.Contains(sql, "FROM systemic_therapies") {
		t.Errorf("outer subquery missing in %q", sql)
	}
	if !strings.Contains(sql, "FROM systemic_therapy_medications") {
		t.Errorf("nested relation subquery missing in %q", sql)
	}
	if !strings.Contains(sql, ".drug IS NOT NULL") {
		t.Errorf("null check missing in %q", sql)
	}
}

func TestCompileNestedRulesets(t *testing.T) {
	sql, _ := compile(t, `{
		"condition": "OR",
		"rules": [
			{"condition": "AND", "rules": [
				{"entity": "PatientCase", "filters": [{"field": "gender", "operator": "displayEquals", "value": "Female"}]},
				{"entity": "Vitals", "filters": [{"field": "weight", "operator": "greaterThan", "value": 80}]}
			]},
			{"entity": "PatientCase", "filters": [{"field": "dateOfDeath", "operator": "exists"}]}
		]
	}`)

	if !strings.Contains(sql, " OR ") || !strings.Contains(sql, " AND ") {
		t.Errorf("nested junctions missing in %q", sql)
	}
	if !strings.Contains(sql, "pc.date_of_death IS NOT NULL") {
		t.Errorf("exists predicate missing in %q", sql)
	}
}

func TestCompileDescendsFromExpandsClosure(t *testing.T) {
	terms := stubTerms{closure: map[string][]string{
		"icd-o-3|C34": {"C34", "C34.0", "C34.1", "C34.2"},
	}}
	sql, args := compileWith(t, `{
		"condition": "AND",
		"rules": [
			{"entity": "NeoplasticEntity", "filters": [
				{"field": "topography", "operator": "codeDescendsFrom",
				 "value": {"system": "icd-o-3", "code": "C34"}}
			]}
		]
	}`, terms)

	if !strings.Contains(sql, "->>'code' = ANY($1)") {
		t.Errorf("closure membership predicate missing in %q", sql)
	}
	closure, ok := args[0].([]string)
	if !ok || len(closure) != 4 {
		t.Fatalf("args[0] = %#v, want 4-code closure", args[0])
	}
}

func TestCompileArgumentOrderIsStable(t *testing.T) {
	doc := `{
		"condition": "AND",
		"rules": [
			{"entity": "PerformanceStatus", "filters": [
				{"field": "ecog", "operator": "between", "value": [1, 3]}
			]},
			{"entity": "PatientCase", "filters": [
				{"field": "consentStatus", "operator": "equals", "value": "valid"}
			]}
		]
	}`
	sqlA, argsA := compile(t, doc)
	sqlB, argsB := compile(t, doc)
	if sqlA != sqlB {
		t.Errorf("compilation not deterministic:\n%q\n%q", sqlA, sqlB)
	}
	if len(argsA) != 3 || len(argsB) != 3 {
		t.Errorf("expected 3 bound arguments, got %d and %d", len(argsA), len(argsB))
	}
}

func TestCompileRejectsUnknownEntity(t *testing.T) {
	rs, err := ParseRuleset(json.RawMessage(`{
		"condition": "AND",
		"rules": [{"entity": "Widget", "filters": []}]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := NewCompiler(stubTerms{}).Compile(context.Background(), rs); err == nil {
		t.Fatal("expected unknown entity to be rejected")
	}
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	rs, err := ParseRuleset(json.RawMessage(`{
		"condition": "AND",
		"rules": [{"entity": "PatientCase", "filters": [
			{"field": "pseudoidentifier", "operator": "soundsLike", "value": "x"}
		]}]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := NewCompiler(stubTerms{}).Compile(context.Background(), rs); err == nil {
		t.Fatal("expected unknown operator to be rejected")
	}
}

func TestCompileRejectsUnknownField(t *testing.T) {
	rs, err := ParseRuleset(json.RawMessage(`{
		"condition": "AND",
		"rules": [{"entity": "Vitals", "filters": [
			{"field": "shoeSize", "operator": "equal", "value": 42}
		]}]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := NewCompiler(stubTerms{}).Compile(context.Background(), rs); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParseRulesetRejectsBadCondition(t *testing.T) {
	if _, err := ParseRuleset(json.RawMessage(`{"condition": "XOR", "rules": []}`)); err == nil {
		t.Fatal("expected invalid condition to be rejected")
	}
}

func TestStoragePathFoldsCamelCase(t *testing.T) {
	for in, want := range map[string]string{
		"clinicalCenter":           "clinical_center",
		"medications.usedOffLabel": "medications__used_off_label",
		"date":                     "date",
	} {
		if got := storagePath(in); got != want {
			t.Errorf("storagePath(%q) = %q, want %q", in, got, want)
		}
	}
}
