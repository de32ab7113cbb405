package datasets

import (
	"fmt"
	"time"

	"github.com/oncore/oncore/internal/platform/anonymize"
)

// Named transforms. A measure field additionally accepts a target unit from
// the conversion table below as its transform.
const (
	transformDisplay       = "display"
	transformCode          = "code"
	transformSystem        = "system"
	transformMonthTruncate = "monthTruncate"
	transformYearOnly      = "yearOnly"
	transformAgeBin        = "ageBin"
)

// unitFactors maps a unit to its dimension and the factor into that
// dimension's base unit. Converting between dimensions is invalid.
var unitFactors = map[string]struct {
	dimension string
	factor    float64
}{
	"kg": {"mass", 1000},
	"g":  {"mass", 1},
	"mg": {"mass", 0.001},
	"µg": {"mass", 0.000001},
	"m":  {"length", 100},
	"cm": {"length", 1},
	"mm": {"length", 0.1},
	"l":  {"volume", 1},
	"ml": {"volume", 0.001},
	"Gy": {"dose", 1},
}

// validTransform reports whether the transform applies to the field type.
// The empty transform is always valid and selects the type's default.
func validTransform(ft fieldType, transform string) bool {
	if transform == "" {
		return true
	}
	switch ft {
	case typeCoded:
		return transform == transformDisplay || transform == transformCode || transform == transformSystem
	case typeDate:
		return transform == transformMonthTruncate || transform == transformYearOnly
	case typeNumber:
		return transform == transformAgeBin
	case typeMeasure:
		_, ok := unitFactors[transform]
		return ok
	default:
		return false
	}
}

// applyTransform renders one raw JSON value. A nil input stays nil so the
// projector can omit the field.
func applyTransform(raw interface{}, ft fieldType, transform string) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch ft {
	case typeCoded:
		concept, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("coded value is not an object")
		}
		key := transform
		if key == "" {
			key = transformDisplay
		}
		return concept[key], nil
	case typeMeasure:
		measure, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("measure value is not an object")
		}
		value, _ := measure["value"].(float64)
		unit, _ := measure["unit"].(string)
		if transform == "" || transform == unit {
			return value, nil
		}
		return convertUnit(value, unit, transform)
	case typeDate:
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("date value is not a string")
		}
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		switch transform {
		case transformMonthTruncate:
			return t.Format("2006-01"), nil
		case transformYearOnly:
			return t.Format("2006"), nil
		default:
			return t.Format("2006-01-02"), nil
		}
	case typeNumber:
		if transform == transformAgeBin {
			value, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("age value is not a number")
			}
			bin, err := anonymize.AgeBin(int(value))
			if err != nil {
				return nil, err
			}
			return bin, nil
		}
		return raw, nil
	case typePeriod:
		period, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("period value is not an object")
		}
		return fmt.Sprintf("[%s, %s)", periodBound(period["start"]), periodBound(period["end"])), nil
	default:
		return raw, nil
	}
}

func periodBound(raw interface{}) string {
	text, ok := raw.(string)
	if !ok {
		return ""
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func convertUnit(value float64, from, to string) (interface{}, error) {
	src, ok := unitFactors[from]
	if !ok {
		return nil, fmt.Errorf("source unit %q has no conversion", from)
	}
	dst := unitFactors[to]
	if src.dimension != dst.dimension {
		return nil, fmt.Errorf("cannot convert %s to %s", from, to)
	}
	return value * src.factor / dst.factor, nil
}
