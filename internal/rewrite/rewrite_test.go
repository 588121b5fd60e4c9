package rewrite

import "testing"

func TestApplySubstitutesSymbols(t *testing.T) {
	r := New(nil)
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase dash", "turn dash up", "turn - up"},
		{"uppercase dash", "Turn DASH up", "Turn - up"},
		{"mixed case hyphen", "alpha HyPhEn beta", "alpha - beta"},
		{"minus", "five minus three", "five - three"},
		{"no mapped tokens", "hello world", "hello world"},
		{"substring not replaced", "dashboard and dashes", "dashboard and dashes"},
		{"repeated symbols", "dash dash dash", "- - -"},
		{"empty string", "", ""},
		{"whitespace only", "   \t  ", ""},
		{"extra whitespace collapsed", "turn   dash\tup", "turn - up"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Apply(tc.in); got != tc.want {
				t.Fatalf("Apply(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestApplyPreservesUnmappedCasing(t *testing.T) {
	r := New(nil)
	got := r.Apply("Hello DASH World")
	if got != "Hello - World" {
		t.Fatalf("expected original casing preserved for unmapped tokens, got %q", got)
	}
}

func TestApplyIdentityWithoutMappedTokens(t *testing.T) {
	r := New(nil)
	inputs := []string{"the quick brown fox", "one two three", "x"}
	for _, in := range inputs {
		if got := r.Apply(in); got != in {
			t.Fatalf("Apply(%q) = %q, expected identity", in, got)
		}
	}
}

func TestNewExtendsSymbolTable(t *testing.T) {
	r := New(map[string]string{"Comma": ",", "dash": "_"})
	if got := r.Apply("pause comma go"); got != "pause , go" {
		t.Fatalf("expected extra mapping applied, got %q", got)
	}
	// Config entries win over built-ins.
	if got := r.Apply("a dash b"); got != "a _ b" {
		t.Fatalf("expected override of built-in mapping, got %q", got)
	}
}
