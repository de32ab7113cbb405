package canonical

import "testing"

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{"z": true, "y": "x"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":{"y":"x","z":true},"b":1}`
	if string(got) != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	v1 := map[string]interface{}{"a": 1, "b": "x"}
	v2 := map[string]interface{}{"b": "x", "a": 1}

	c1, err := Checksum(v1)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	c2, err := Checksum(v2)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if c1 != c2 {
		t.Errorf("checksums differ for key ordering: %s vs %s", c1, c2)
	}
	if len(c1) != 32 {
		t.Errorf("expected 32-char hex md5, got %q", c1)
	}
}

func TestDiff_FieldWise(t *testing.T) {
	pre := map[string]interface{}{"name": "a", "keep": 1, "gone": true}
	post := map[string]interface{}{"name": "b", "keep": 1, "added": "x"}

	diff, err := Diff(pre, post)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	if diff["name"] != "b" {
		t.Errorf("expected changed name in diff, got %v", diff["name"])
	}
	if _, ok := diff["keep"]; ok {
		t.Error("unchanged field must not appear in diff")
	}
	if v, ok := diff["gone"]; !ok || v != nil {
		t.Errorf("removed field must map to nil, got %v ok=%v", v, ok)
	}
	if diff["added"] != "x" {
		t.Errorf("expected added field in diff, got %v", diff["added"])
	}
}

func TestDiff_EmptyOnEqual(t *testing.T) {
	v := map[string]interface{}{"a": 1, "nested": map[string]interface{}{"b": "c"}}
	diff, err := Diff(v, v)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(diff) != 0 {
		t.Errorf("expected empty diff, got %v", diff)
	}
}
