package cohorts

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Reserved query parameters of list endpoints that never act as filters.
var reservedListParams = map[string]bool{
	"page":       true,
	"pageSize":   true,
	"limit":      true,
	"offset":     true,
	"ordering":   true,
	"anonymized": true,
}

// ParseListQuery folds flat list-endpoint query parameters into a ruleset.
// Keys take the form "path__operator"; paths use the wire-level camelCase
// dot notation and may lead with an entity name to constrain a child record
// ("NeoplasticEntity.topography.code__codeEquals=C50.1"). Paths without an
// entity prefix address the case itself. All filters conjoin.
func ParseListQuery(params url.Values) (*Ruleset, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if reservedListParams[k] {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	byEntity := make(map[string][]Filter)
	var entityOrder []string
	for _, key := range keys {
		idx := strings.LastIndex(key, "__")
		if idx <= 0 {
			return nil, fmt.Errorf("malformed filter %q: want path__operator", key)
		}
		path, operator := key[:idx], key[idx+2:]

		entityName := "PatientCase"
		if dot := strings.IndexByte(path, '.'); dot > 0 {
			if _, ok := catalog[path[:dot]]; ok {
				entityName = path[:dot]
				path = path[dot+1:]
			}
		}
		fld, ok := catalog[entityName].fields[storagePath(path)]
		if !ok {
			return nil, fmt.Errorf("unknown field %q on %s", path, entityName)
		}

		for _, raw := range params[key] {
			value, err := listFilterValue(fld, operator, raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			if _, seen := byEntity[entityName]; !seen {
				entityOrder = append(entityOrder, entityName)
			}
			byEntity[entityName] = append(byEntity[entityName],
				Filter{Field: path, Operator: operator, Value: value})
		}
	}

	rs := &Ruleset{Condition: ConditionAnd}
	for _, name := range entityOrder {
		rs.Rules = append(rs.Rules, Node{Rule: &Rule{Entity: name, Filters: byEntity[name]}})
	}
	return rs, nil
}

// listFilterValue coerces a raw query-string value into the shape the
// filter compiler expects for the field's kind and operator.
func listFilterValue(fld field, operator, raw string) (interface{}, error) {
	switch operator {
	case "exists", "notExists", "isNull", "notIsNull":
		return nil, nil
	case "anyOf", "notAnyOf", "oneOf", "notOneOf", "codeIncludes", "allOf", "notAllOf":
		return splitListValues(raw), nil
	case "between", "notBetween":
		items := splitListValues(raw)
		if len(items) != 2 {
			return nil, fmt.Errorf("two comma-separated bounds required")
		}
		if fld.kind == kindInteger || fld.kind == kindFloat {
			lo, err := strconv.ParseFloat(items[0].(string), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", items[0])
			}
			hi, err := strconv.ParseFloat(items[1].(string), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", items[1])
			}
			return []interface{}{lo, hi}, nil
		}
		return items, nil
	case "codeDescendsFrom":
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("system,code pair required")
		}
		return map[string]interface{}{"system": parts[0], "code": parts[1]}, nil
	case "overlaps", "notOverlaps":
		parts := strings.SplitN(raw, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("start,end pair required (either bound may be empty)")
		}
		m := make(map[string]interface{}, 2)
		if parts[0] != "" {
			m["start"] = parts[0]
		}
		if parts[1] != "" {
			m["end"] = parts[1]
		}
		return m, nil
	}

	switch fld.kind {
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("boolean value required, got %q", raw)
		}
		return b, nil
	case kindInteger, kindFloat:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("numeric value required, got %q", raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}

func splitListValues(raw string) []interface{} {
	parts := strings.Split(raw, ",")
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// CompileListQuery parses flat query parameters and compiles them into a
// SQL predicate over patient_cases aliased "pc". No filter parameters
// compile to TRUE.
func (c *Compiler) CompileListQuery(ctx context.Context, params url.Values) (string, []interface{}, error) {
	rs, err := ParseListQuery(params)
	if err != nil {
		return "", nil, err
	}
	return c.Compile(ctx, rs)
}
