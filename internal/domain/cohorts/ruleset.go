package cohorts

import (
	"encoding/json"
	"fmt"
)

// Ruleset conditions.
const (
	ConditionAnd = "AND"
	ConditionOr  = "OR"
)

// Ruleset is a boolean combination of nested rulesets and rules.
type Ruleset struct {
	Condition string `json:"condition"`
	Rules     []Node `json:"rules"`
}

// Rule constrains one entity kind with a conjunction of filters. A rule on
// PatientCase applies directly; rules on any other entity ask for the
// existence of a matching child record.
type Rule struct {
	Entity  string   `json:"entity"`
	Filters []Filter `json:"filters"`
}

type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// Node is one child of a ruleset: either a nested ruleset or a leaf rule,
// distinguished on the wire by the presence of "condition" vs "entity".
type Node struct {
	Ruleset *Ruleset
	Rule    *Rule
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var probe struct {
		Condition *string `json:"condition"`
		Entity    *string `json:"entity"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.Condition != nil:
		n.Ruleset = &Ruleset{}
		return json.Unmarshal(data, n.Ruleset)
	case probe.Entity != nil:
		n.Rule = &Rule{}
		return json.Unmarshal(data, n.Rule)
	default:
		return fmt.Errorf("ruleset node needs either a condition or an entity")
	}
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.Ruleset != nil:
		return json.Marshal(n.Ruleset)
	case n.Rule != nil:
		return json.Marshal(n.Rule)
	default:
		return nil, fmt.Errorf("empty ruleset node")
	}
}

// ParseRuleset decodes a criteria document. A null or empty document is a
// valid "match everything" ruleset, returned as nil.
func ParseRuleset(raw json.RawMessage) (*Ruleset, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rs Ruleset
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}
	if rs.Condition != ConditionAnd && rs.Condition != ConditionOr {
		return nil, fmt.Errorf("invalid ruleset condition %q", rs.Condition)
	}
	return &rs, nil
}
