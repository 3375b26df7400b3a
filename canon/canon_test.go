package canon

import (
	"testing"
)

func TestMarshal_SortsKeys(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2, "c": 3}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestMarshal_Idempotent(t *testing.T) {
	v := map[string]any{
		"z": []any{"x", "y"},
		"a": map[string]any{"k2": 1, "k1": 2},
	}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := CanonicalizeJSON(first)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("not idempotent: %s != %s", first, second)
	}
}

func TestMarshal_NoWhitespace(t *testing.T) {
	out, err := Marshal(map[string]any{"a": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, r := range string(out) {
		if r == ' ' || r == '\n' || r == '\t' {
			t.Fatalf("unexpected whitespace in %s", out)
		}
	}
}

func TestDigest_StableAndPrefixed(t *testing.T) {
	d := Digest([]byte("hello"))
	if len(d) < len(Algorithm)+1 || d[:len(Algorithm)] != Algorithm {
		t.Fatalf("expected %s: prefix, got %s", Algorithm, d)
	}
	if Digest([]byte("hello")) != d {
		t.Fatal("digest not stable")
	}
}

func TestLess_ByteWiseOrder(t *testing.T) {
	cases := []struct{ a, b string }{
		{"a", "b"},
		{"", "a"},
		{"abc", "abd"},
	}
	for _, c := range cases {
		if !Less(c.a, c.b) {
			t.Errorf("expected %q < %q", c.a, c.b)
		}
		if Less(c.b, c.a) {
			t.Errorf("expected %q !< %q", c.b, c.a)
		}
	}
}

func TestSortUnique_DeduplicatesAndSorts(t *testing.T) {
	got := SortUnique([]string{"b", "a", "b", "c", "a"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTruncateSorted_AddsSentinel(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	got := TruncateSorted(in, 2)
	want := []string{"a", "b", "ZZZ_TRUNCATED(+2)"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDigestValue_ZeroFieldBinding(t *testing.T) {
	type receipt struct {
		A string `json:"a"`
		D string `json:"d"`
	}
	r := receipt{A: "x"}
	d1, err := DigestValue(r)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	r.D = d1
	// recompute with zero-filled digest field must match the original
	r2 := r
	r2.D = ""
	d2, err := DigestValue(r2)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digest binding broken: %s != %s", d1, d2)
	}
}
