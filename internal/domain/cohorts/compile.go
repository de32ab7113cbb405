package cohorts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TerminologyResolver expands a coded ancestor into its transitive
// descendant closure. Satisfied by *terminology.Service.
type TerminologyResolver interface {
	DescendantsOf(ctx context.Context, system, code string) ([]string, error)
}

// Compiler turns a ruleset into a SQL predicate over patient_cases. The
// compiled fragment references the cases table under the alias "pc";
// callers embed it into a WHERE clause with the returned arguments.
type Compiler struct {
	terms TerminologyResolver
}

func NewCompiler(terms TerminologyResolver) *Compiler {
	return &Compiler{terms: terms}
}

type builder struct {
	args    []interface{}
	aliases int
}

func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) alias() string {
	b.aliases++
	return fmt.Sprintf("t%d", b.aliases)
}

// Compile returns the predicate SQL and its positional arguments. A nil
// ruleset matches every case.
func (c *Compiler) Compile(ctx context.Context, rs *Ruleset) (string, []interface{}, error) {
	if rs == nil {
		return "TRUE", nil, nil
	}
	b := &builder{}
	sql, err := c.compileRuleset(ctx, b, rs)
	if err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

func (c *Compiler) compileRuleset(ctx context.Context, b *builder, rs *Ruleset) (string, error) {
	if len(rs.Rules) == 0 {
		return "TRUE", nil
	}
	var junction string
	switch rs.Condition {
	case ConditionAnd:
		junction = " AND "
	case ConditionOr:
		junction = " OR "
	default:
		return "", fmt.Errorf("invalid ruleset condition %q", rs.Condition)
	}

	parts := make([]string, 0, len(rs.Rules))
	for _, node := range rs.Rules {
		var (
			part string
			err  error
		)
		switch {
		case node.Ruleset != nil:
			part, err = c.compileRuleset(ctx, b, node.Ruleset)
		case node.Rule != nil:
			part, err = c.compileRule(ctx, b, node.Rule)
		default:
			err = fmt.Errorf("empty ruleset node")
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + join(parts, junction) + ")", nil
}

func join(parts []string, sep string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += sep + p
	}
	return out
}

// compileRule emits a direct predicate for PatientCase rules and an
// existence subquery for every other entity.
func (c *Compiler) compileRule(ctx context.Context, b *builder, rule *Rule) (string, error) {
	ent, ok := catalog[rule.Entity]
	if !ok {
		return "", fmt.Errorf("unknown entity %q", rule.Entity)
	}
	if rule.Entity == "PatientCase" {
		return c.compileFilters(ctx, b, ent, "pc", rule.Filters)
	}

	alias := b.alias()
	inner, err := c.compileFilters(ctx, b, ent, alias, rule.Filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = pc.id AND %s)",
		ent.table, alias, alias, ent.caseColumn, inner), nil
}

func (c *Compiler) compileFilters(ctx context.Context, b *builder, ent entity, alias string, filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		part, err := c.compileFilter(ctx, b, ent, alias, f)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + join(parts, " AND ") + ")", nil
}

func (c *Compiler) compileFilter(ctx context.Context, b *builder, ent entity, alias string, f Filter) (string, error) {
	key := storagePath(f.Field)
	fld, ok := ent.fields[key]
	if !ok {
		return "", fmt.Errorf("unknown field %q on %s", f.Field, ent.table)
	}

	// Filters over a child relation wrap their predicate in a nested
	// existence subquery against the child table.
	if fld.relation != "" {
		rel, ok := ent.relations[fld.relation]
		if !ok {
			return "", fmt.Errorf("unknown relation %q on %s", fld.relation, ent.table)
		}
		child := b.alias()
		local := fld
		local.relation = ""
		pred, err := c.compileField(ctx, b, local, child)
		if err != nil {
			return "", err
		}
		inner, err := pred(f)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.id AND %s)",
			rel.table, child, child, rel.fk, alias, inner), nil
	}

	pred, err := c.compileField(ctx, b, fld, alias)
	if err != nil {
		return "", err
	}
	return pred(f)
}

// compileField returns the operator dispatcher for one field occurrence.
func (c *Compiler) compileField(ctx context.Context, b *builder, fld field, alias string) (func(Filter) (string, error), error) {
	expr := fieldExpr(fld, alias)
	switch fld.kind {
	case kindString:
		return func(f Filter) (string, error) { return compileString(b, expr, f) }, nil
	case kindDate:
		return func(f Filter) (string, error) { return compileDate(b, expr, f) }, nil
	case kindInteger, kindFloat:
		return func(f Filter) (string, error) { return compileNumeric(b, expr, f) }, nil
	case kindBool:
		return func(f Filter) (string, error) { return compileBool(b, expr, f) }, nil
	case kindEnum:
		return func(f Filter) (string, error) { return compileEnum(b, expr, f) }, nil
	case kindReference:
		return func(f Filter) (string, error) { return compileReference(b, expr, f) }, nil
	case kindCoded:
		return func(f Filter) (string, error) { return c.compileCoded(ctx, b, expr, f) }, nil
	case kindCodedList:
		return func(f Filter) (string, error) { return compileCodedList(b, expr, f) }, nil
	case kindPeriod:
		start := alias + "." + fld.start
		end := alias + "." + fld.end
		return func(f Filter) (string, error) { return compilePeriod(b, start, end, f) }, nil
	default:
		return nil, fmt.Errorf("unhandled field kind")
	}
}

func compileString(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	v, err := stringValue(f.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Field, err)
	}
	p := b.bind(v)
	switch f.Operator {
	case "exact":
		return expr + " = " + p, nil
	case "notExact":
		return expr + " <> " + p, nil
	case "contains":
		return expr + " LIKE '%' || " + p + " || '%'", nil
	case "notContains":
		return expr + " NOT LIKE '%' || " + p + " || '%'", nil
	case "beginsWith":
		return expr + " LIKE " + p + " || '%'", nil
	case "notBeginsWith":
		return expr + " NOT LIKE " + p + " || '%'", nil
	case "endsWith":
		return expr + " LIKE '%' || " + p, nil
	case "notEndsWith":
		return expr + " NOT LIKE '%' || " + p, nil
	default:
		return "", fmt.Errorf("unknown string operator %q", f.Operator)
	}
}

func compileDate(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	switch f.Operator {
	case "between", "notBetween":
		lo, hi, err := dateRange(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		sql := expr + " >= " + b.bind(lo) + " AND " + expr + " <= " + b.bind(hi)
		if f.Operator == "notBetween" {
			return "NOT (" + sql + ")", nil
		}
		return "(" + sql + ")", nil
	}
	v, err := dateValue(f.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Field, err)
	}
	p := b.bind(v)
	switch f.Operator {
	case "before":
		return expr + " < " + p, nil
	case "after":
		return expr + " > " + p, nil
	case "onOrBefore":
		return expr + " <= " + p, nil
	case "onOrAfter":
		return expr + " >= " + p, nil
	case "on":
		return expr + " = " + p, nil
	case "notOn":
		return expr + " <> " + p, nil
	default:
		return "", fmt.Errorf("unknown date operator %q", f.Operator)
	}
}

func compileNumeric(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	switch f.Operator {
	case "between", "notBetween":
		lo, hi, err := numberRange(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		sql := expr + " >= " + b.bind(lo) + " AND " + expr + " <= " + b.bind(hi)
		if f.Operator == "notBetween" {
			return "NOT (" + sql + ")", nil
		}
		return "(" + sql + ")", nil
	}
	v, err := numberValue(f.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Field, err)
	}
	p := b.bind(v)
	switch f.Operator {
	case "lessThan":
		return expr + " < " + p, nil
	case "lessThanOrEqual":
		return expr + " <= " + p, nil
	case "greaterThan":
		return expr + " > " + p, nil
	case "greaterThanOrEqual":
		return expr + " >= " + p, nil
	case "equal":
		return expr + " = " + p, nil
	case "notEqual":
		return expr + " <> " + p, nil
	default:
		return "", fmt.Errorf("unknown numeric operator %q", f.Operator)
	}
}

func compileBool(b *builder, expr string, f Filter) (string, error) {
	if f.Operator != "equals" {
		return "", fmt.Errorf("unknown boolean operator %q", f.Operator)
	}
	v, ok := f.Value.(bool)
	if !ok {
		return "", fmt.Errorf("%s: boolean value required", f.Field)
	}
	return expr + " = " + b.bind(v), nil
}

func compileEnum(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	switch f.Operator {
	case "equals", "notEquals":
		v, err := stringValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		op := " = "
		if f.Operator == "notEquals" {
			op = " <> "
		}
		return expr + op + b.bind(v), nil
	case "anyOf", "notAnyOf":
		vs, err := stringValues(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		sql := expr + " = ANY(" + b.bind(vs) + ")"
		if f.Operator == "notAnyOf" {
			return "NOT (" + sql + ")", nil
		}
		return sql, nil
	default:
		return "", fmt.Errorf("unknown enum operator %q", f.Operator)
	}
}

func compileReference(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	switch f.Operator {
	case "equals", "notEquals":
		v, err := uuidValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		op := " = "
		if f.Operator == "notEquals" {
			op = " <> "
		}
		return expr + op + b.bind(v), nil
	case "oneOf", "notOneOf":
		vs, err := uuidValues(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		sql := expr + " = ANY(" + b.bind(vs) + ")"
		if f.Operator == "notOneOf" {
			return "NOT (" + sql + ")", nil
		}
		return sql, nil
	default:
		return "", fmt.Errorf("unknown reference operator %q", f.Operator)
	}
}

func (c *Compiler) compileCoded(ctx context.Context, b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	code := expr + "->>'code'"
	display := expr + "->>'display'"
	switch f.Operator {
	case "codeEquals":
		v, err := stringValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return code + " = " + b.bind(v), nil
	case "codeIncludes":
		vs, err := stringValues(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return code + " = ANY(" + b.bind(vs) + ")", nil
	case "codeContains":
		v, err := stringValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return code + " LIKE '%' || " + b.bind(v) + " || '%'", nil
	case "displayEquals":
		v, err := stringValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return display + " = " + b.bind(v), nil
	case "displayContains":
		v, err := stringValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return display + " ILIKE '%' || " + b.bind(v) + " || '%'", nil
	case "codeDescendsFrom":
		system, ancestor, err := codedValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		closure, err := c.terms.DescendantsOf(ctx, system, ancestor)
		if err != nil {
			return "", fmt.Errorf("%s: resolve descendants of %s: %w", f.Field, ancestor, err)
		}
		return code + " = ANY(" + b.bind(closure) + ")", nil
	default:
		return "", fmt.Errorf("unknown coded-concept operator %q", f.Operator)
	}
}

func compileCodedList(b *builder, expr string, f Filter) (string, error) {
	if sql, ok := compileNullOp(expr, f.Operator); ok {
		return sql, nil
	}
	switch f.Operator {
	case "allOf", "notAllOf":
		vs, err := stringValues(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		want := make([]map[string]string, len(vs))
		for i, v := range vs {
			want[i] = map[string]string{"code": v}
		}
		doc, err := json.Marshal(want)
		if err != nil {
			return "", err
		}
		sql := expr + " @> " + b.bind(string(doc)) + "::jsonb"
		if f.Operator == "notAllOf" {
			return "NOT (" + sql + ")", nil
		}
		return sql, nil
	case "codeIncludes":
		vs, err := stringValues(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		return "EXISTS (SELECT 1 FROM jsonb_array_elements(" + expr + ") elem WHERE elem->>'code' = ANY(" + b.bind(vs) + "))", nil
	default:
		return "", fmt.Errorf("unknown coded-list operator %q", f.Operator)
	}
}

// compilePeriod checks half-open ranges with open bounds treated as
// unbounded, mirroring clinical.Period semantics.
func compilePeriod(b *builder, start, end string, f Filter) (string, error) {
	switch f.Operator {
	case "exists":
		return start + " IS NOT NULL", nil
	case "notExists":
		return start + " IS NULL", nil
	case "overlaps", "notOverlaps":
		lo, hi, err := periodValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		parts := []string{}
		if hi != nil {
			parts = append(parts, "("+start+" IS NULL OR "+start+" < "+b.bind(*hi)+")")
		}
		if lo != nil {
			parts = append(parts, "("+end+" IS NULL OR "+end+" > "+b.bind(*lo)+")")
		}
		if len(parts) == 0 {
			parts = append(parts, "TRUE")
		}
		sql := "(" + join(parts, " AND ") + ")"
		if f.Operator == "notOverlaps" {
			return "NOT " + sql, nil
		}
		return sql, nil
	case "contains", "notContains":
		v, err := dateValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Field, err)
		}
		p := b.bind(v)
		sql := "((" + start + " IS NULL OR " + start + " <= " + p + ") AND (" + end + " IS NULL OR " + end + " > " + p + "))"
		if f.Operator == "notContains" {
			return "NOT " + sql, nil
		}
		return sql, nil
	default:
		return "", fmt.Errorf("unknown period operator %q", f.Operator)
	}
}

func compileNullOp(expr, operator string) (string, bool) {
	switch operator {
	case "exists", "notIsNull":
		return expr + " IS NOT NULL", true
	case "notExists", "isNull":
		return expr + " IS NULL", true
	}
	return "", false
}

// -- value coercion --

func stringValue(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("string value required")
	}
	return s, nil
}

func stringValues(v interface{}) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("list value required")
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("list of strings required")
		}
		out[i] = s
	}
	return out, nil
}

func numberValue(v interface{}) (float64, error) {
	n, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("numeric value required")
	}
	return n, nil
}

func numberRange(v interface{}) (float64, float64, error) {
	items, ok := v.([]interface{})
	if !ok || len(items) != 2 {
		return 0, 0, fmt.Errorf("two-element range required")
	}
	lo, err := numberValue(items[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := numberValue(items[1])
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func dateValue(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("date string required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func dateRange(v interface{}) (time.Time, time.Time, error) {
	items, ok := v.([]interface{})
	if !ok || len(items) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("two-element range required")
	}
	lo, err := dateValue(items[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	hi, err := dateValue(items[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return lo, hi, nil
}

func periodValue(v interface{}) (*time.Time, *time.Time, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("period value with start/end required")
	}
	var lo, hi *time.Time
	if raw, ok := m["start"]; ok && raw != nil {
		t, err := dateValue(raw)
		if err != nil {
			return nil, nil, err
		}
		lo = &t
	}
	if raw, ok := m["end"]; ok && raw != nil {
		t, err := dateValue(raw)
		if err != nil {
			return nil, nil, err
		}
		hi = &t
	}
	return lo, hi, nil
}

func codedValue(v interface{}) (system, code string, err error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("coded value with system and code required")
	}
	system, _ = m["system"].(string)
	code, _ = m["code"].(string)
	if system == "" || code == "" {
		return "", "", fmt.Errorf("coded value with system and code required")
	}
	return system, code, nil
}

func uuidValue(v interface{}) (uuid.UUID, error) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("reference id required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid reference id %q", s)
	}
	return id, nil
}

func uuidValues(v interface{}) ([]uuid.UUID, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("list of reference ids required")
	}
	out := make([]uuid.UUID, len(items))
	for i, item := range items {
		id, err := uuidValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
