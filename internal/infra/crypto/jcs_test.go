package crypto

import (
	"testing"
)

func TestCanonicalizeJSON_SortsKeysCompact(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"b": 2, "a": 1.0, "c": {"z": true, "y": null}}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":1,"b":2,"c":{"y":null,"z":true}}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalizeJSON_RejectsTrailingData(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{"a":1} {}`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestLegacyStyle_MatchesSortedJSONDumps(t *testing.T) {
	value := map[string]any{
		"b": 1,
		"a": []any{1.5, 2.0, 1e16, "x", 1e-05, 1234567.0},
	}
	got, err := canonicalizeAnyStyle(value, legacyStyle)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a": [1.5, 2.0, 1e+16, "x", 1e-05, 1234567.0], "b": 1}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestLegacyStyle_EscapesNonASCII(t *testing.T) {
	got, err := canonicalizeAnyStyle(map[string]string{"tab": "a\tb\x7f", "name": "Zoë 😀"}, legacyStyle)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"name": "Zo\u00eb \ud83d\ude00", "tab": "a\tb\u007f"}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestJCSStyle_KeepsUnicode(t *testing.T) {
	got, err := CanonicalizeAny(map[string]string{"name": "Zoë"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(got) != `{"name":"Zoë"}` {
		t.Fatalf("unexpected output %s", got)
	}
}
