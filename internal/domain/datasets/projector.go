package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/interop"
)

// CaseAssembler loads one case with all its child records. Satisfied by the
// interop service.
type CaseAssembler interface {
	AssembleBundle(ctx context.Context, caseID uuid.UUID) (*interop.PatientCaseBundle, error)
}

// Projector turns assembled cases into partial nested records according to
// a rule list.
type Projector struct {
	assembler CaseAssembler
}

func NewProjector(assembler CaseAssembler) *Projector {
	return &Projector{assembler: assembler}
}

// ValidateRules rejects rule lists naming unknown resources, fields the
// resource does not have, or transforms that do not apply to the field.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return ErrNoRules
	}
	for _, rule := range rules {
		schema, ok := schemas[rule.Resource]
		if !ok || schema.bundleKey == "" && rule.Resource != "PatientCase" {
			return fmt.Errorf("%w: %s", ErrUnknownResource, rule.Resource)
		}
		ft, err := resolveField(schema, rule.Field)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", rule.Resource, rule.Field, err)
		}
		if !validTransform(ft, rule.Transform) {
			return fmt.Errorf("%w: %q on %s.%s", ErrInvalidTransform, rule.Transform, rule.Resource, rule.Field)
		}
	}
	return nil
}

// resolveField finds the field type behind a dot path, descending one level
// into a child collection when the path has two segments.
func resolveField(schema resourceSchema, field string) (fieldType, error) {
	head, tail, nested := strings.Cut(field, ".")
	if !nested {
		ft, ok := schema.fields[field]
		if !ok {
			return 0, ErrUnknownField
		}
		return ft, nil
	}
	childResource, ok := schema.children[head]
	if !ok {
		return 0, ErrUnknownField
	}
	child := schemas[childResource]
	ft, ok := child.fields[tail]
	if !ok {
		return 0, ErrUnknownField
	}
	return ft, nil
}

// Project materializes the rules over the given cases. The output keeps the
// case order of the input.
func (p *Projector) Project(ctx context.Context, caseIDs []uuid.UUID, rules []Rule) ([]Record, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	byResource := map[string][]Rule{}
	for _, rule := range rules {
		byResource[rule.Resource] = append(byResource[rule.Resource], rule)
	}

	records := make([]Record, 0, len(caseIDs))
	for _, caseID := range caseIDs {
		bundle, err := p.assembler.AssembleBundle(ctx, caseID)
		if err != nil {
			return nil, err
		}
		doc, err := toDocument(bundle)
		if err != nil {
			return nil, err
		}
		record, err := projectCase(doc, byResource)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", caseID, err)
		}
		record["id"] = caseID.String()
		records = append(records, record)
	}
	return records, nil
}

func toDocument(bundle *interop.PatientCaseBundle) (map[string]interface{}, error) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func projectCase(doc map[string]interface{}, byResource map[string][]Rule) (Record, error) {
	record := Record{}
	for resource, rules := range byResource {
		schema := schemas[resource]
		if resource == "PatientCase" {
			caseDoc, _ := doc["case"].(map[string]interface{})
			partial, err := projectItem(caseDoc, schema, rules)
			if err != nil {
				return nil, err
			}
			for field, value := range partial {
				record[field] = value
			}
			continue
		}
		items, _ := doc[schema.bundleKey].([]interface{})
		partials := make([]map[string]interface{}, 0, len(items))
		for _, raw := range items {
			item, _ := raw.(map[string]interface{})
			partial, err := projectItem(item, schema, rules)
			if err != nil {
				return nil, err
			}
			partials = append(partials, partial)
		}
		record[schema.bundleKey] = partials
	}
	return record, nil
}

// projectItem applies the rules to one record, recursing into nested child
// collections for dotted paths.
func projectItem(item map[string]interface{}, schema resourceSchema, rules []Rule) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	nested := map[string][]Rule{}
	for _, rule := range rules {
		head, tail, isNested := strings.Cut(rule.Field, ".")
		if isNested {
			nested[head] = append(nested[head], Rule{
				Resource:  schema.children[head],
				Field:     tail,
				Transform: rule.Transform,
			})
			continue
		}
		ft := schema.fields[rule.Field]
		value, err := applyTransform(item[rule.Field], ft, rule.Transform)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Field, err)
		}
		if value != nil {
			out[rule.Field] = value
		}
	}
	for childKey, childRules := range nested {
		childSchema := schemas[schema.children[childKey]]
		items, _ := item[childKey].([]interface{})
		partials := make([]map[string]interface{}, 0, len(items))
		for _, raw := range items {
			child, _ := raw.(map[string]interface{})
			partial, err := projectItem(child, childSchema, childRules)
			if err != nil {
				return nil, err
			}
			partials = append(partials, partial)
		}
		out[childKey] = partials
	}
	return out, nil
}
