// Package grammars provides the grammar and derivation-tree data model
// the invariant learner operates on: context-free grammars as symbol
// tables, immutable derivation trees, and a grammar graph answering
// reachability, path, and k-path queries.
package grammars

import (
	"fmt"
	"sort"
	"strings"
)

// Start is the designated top-level start symbol of every grammar.
const Start = "<start>"

// Alternative is one ordered expansion of a nonterminal: a sequence of
// terminal and nonterminal symbols.
type Alternative []string

// Grammar maps each nonterminal symbol to its expansion alternatives.
// Grammars are treated as immutable once constructed.
type Grammar map[string][]Alternative

// IsNonterminal reports whether a symbol is a nonterminal. Nonterminals
// are written in angle brackets, e.g. "<expr>".
func IsNonterminal(symbol string) bool {
	return len(symbol) > 2 && strings.HasPrefix(symbol, "<") && strings.HasSuffix(symbol, ">")
}

// Nonterminals returns the grammar's nonterminals in sorted order.
func (g Grammar) Nonterminals() []string {
	result := make([]string, 0, len(g))
	for nt := range g {
		result = append(result, nt)
	}
	sort.Strings(result)
	return result
}

// Validate checks that the grammar defines the start symbol and that
// every nonterminal referenced in an alternative has a definition.
func (g Grammar) Validate() error {
	if _, ok := g[Start]; !ok {
		return fmt.Errorf("grammar does not define start symbol %q", Start)
	}
	for nt, alternatives := range g {
		if !IsNonterminal(nt) {
			return fmt.Errorf("left-hand side %q is not a nonterminal", nt)
		}
		if len(alternatives) == 0 {
			return fmt.Errorf("nonterminal %q has no expansion alternatives", nt)
		}
		for _, alt := range alternatives {
			for _, symbol := range alt {
				if IsNonterminal(symbol) {
					if _, ok := g[symbol]; !ok {
						return fmt.Errorf("nonterminal %q referenced by %q is undefined", symbol, nt)
					}
				}
			}
		}
	}
	return nil
}
