// Package rewrite applies the lexical substitution pass over recognized
// text, mapping spoken symbol names onto their written form.
package rewrite

import "strings"

// defaultSymbols maps lowercase spoken tokens to replacement symbols.
var defaultSymbols = map[string]string{
	"dash":   "-",
	"hyphen": "-",
	"minus":  "-",
}

// Rewriter performs whole-token, case-insensitive symbol substitution.
// The zero value is not usable; construct with New.
type Rewriter struct {
	symbols map[string]string
}

// New returns a Rewriter with the built-in symbol table extended by extra.
// Keys in extra are lowercased; an extra entry may shadow a built-in one.
func New(extra map[string]string) *Rewriter {
	symbols := make(map[string]string, len(defaultSymbols)+len(extra))
	for token, symbol := range defaultSymbols {
		symbols[token] = symbol
	}
	for token, symbol := range extra {
		symbols[strings.ToLower(token)] = symbol
	}
	return &Rewriter{symbols: symbols}
}

// Apply replaces every token that matches the symbol table (ignoring case)
// with its mapped symbol; all other tokens keep their original casing.
// Tokens are rejoined with single spaces, so inter-token whitespace is
// normalized.
func (r *Rewriter) Apply(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		if symbol, ok := r.symbols[strings.ToLower(word)]; ok {
			words[i] = symbol
		}
	}
	return strings.Join(words, " ")
}
