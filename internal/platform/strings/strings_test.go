package strings

import "testing"

func TestIfEmpty(t *testing.T) {
	if got := IfEmpty(nil, []string{"a"}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("IfEmpty(nil) = %v", got)
	}
	if got := IfEmpty([]string{"x"}, []string{"a"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("IfEmpty(non-empty) = %v", got)
	}
}

func TestMustPrefix(t *testing.T) {
	cases := map[string]string{
		"ingest":   "/ingest",
		"/tables/": "/tables",
		" /runs ":  "/runs",
	}
	for in, want := range cases {
		if got := MustPrefix(in); got != want {
			t.Fatalf("MustPrefix(%q) = %q, want %q", in, got, want)
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("MustPrefix(\"\") should panic")
		}
	}()
	_ = MustPrefix(" / ")
}

func TestPtrDeref(t *testing.T) {
	if Ptr("") != nil {
		t.Fatalf("Ptr(\"\") should be nil")
	}
	p := Ptr("x")
	if Deref(p) != "x" || Deref(nil) != "" {
		t.Fatalf("Ptr/Deref round trip failed")
	}
}

func TestSQLNull(t *testing.T) {
	if SQLNull("  ") != nil {
		t.Fatalf("blank should map to nil")
	}
	if SQLNull("v") != "v" {
		t.Fatalf("non-blank should pass through")
	}
}
