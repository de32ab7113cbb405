// Package canonical renders values as canonical JSON (sorted keys, no
// insignificant whitespace) so that checksums and event diffs are stable
// across runs and hosts.
package canonical

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Marshal renders v as canonical JSON: object keys sorted lexicographically at
// every depth, no insignificant whitespace.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	var b strings.Builder
	if err := writeCanonical(&b, decoded); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeCanonical(b *strings.Builder, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(kb)
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(raw)
	}
	return nil
}

// Checksum returns the hex md5 digest of the canonical JSON rendering of v.
func Checksum(v interface{}) (string, error) {
	raw, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Flatten converts v into a flat map keyed by dotted paths, used for
// field-wise event diffs. Arrays are indexed numerically.
func Flatten(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	flattenInto(out, "", decoded)
	return out, nil
}

func flattenInto(out map[string]interface{}, prefix string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, item)
		}
	case []interface{}:
		for i, item := range val {
			flattenInto(out, fmt.Sprintf("%s.%d", prefix, i), item)
		}
	default:
		out[prefix] = val
	}
}

// Diff returns the field-wise difference post − pre: every path whose value
// changed or appeared maps to its new value, removed paths map to nil.
func Diff(pre, post interface{}) (map[string]interface{}, error) {
	preFlat, err := Flatten(pre)
	if err != nil {
		return nil, err
	}
	postFlat, err := Flatten(post)
	if err != nil {
		return nil, err
	}

	diff := make(map[string]interface{})
	for path, postVal := range postFlat {
		preVal, existed := preFlat[path]
		if !existed || fmt.Sprintf("%v", preVal) != fmt.Sprintf("%v", postVal) {
			diff[path] = postVal
		}
	}
	for path := range preFlat {
		if _, still := postFlat[path]; !still {
			diff[path] = nil
		}
	}
	return diff, nil
}
