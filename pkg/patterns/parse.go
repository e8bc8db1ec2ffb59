// Package patterns provides the named, grouped repository of abstract
// formula templates the learner instantiates, backed by a declarative
// YAML form, together with a reader for the compact constraint syntax
// the catalog is written in.
package patterns

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
)

// ParseConstraint reads an abstract pattern from its textual form.
//
// The syntax covers the shapes the built-in catalog uses:
//
//	forall <?> use in start: (...)        nonterminal-placeholder binder
//	exists <expr> e in start: (...)       concretely typed binder
//	exists int num: (...)                 numeric constant introduction
//	def == use, x == <?STRING>            comparisons
//	before(a, b), count(e, <?NONTERMINAL>, num)
//	and / or / not, parentheses
//
// The single free variable "start" denotes the top-level start symbol.
func ParseConstraint(input string) (language.Formula, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{
		tokens: tokens,
		scope:  map[string]language.Variable{"start": language.StartConstant(grammars.Start)},
	}
	formula, err := p.parseFormula()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected trailing input at %q", p.peek().text)
	}
	return formula, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokAngle  // <expr>, <?>, <?NONTERMINAL>, <?STRING>
	tokString // "literal"
	tokOp     // ==, !=, <=, >=, <, >
	tokPunct  // ( ) : ,
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(' || c == ')' || c == ':' || c == ',':
			tokens = append(tokens, token{kind: tokPunct, text: string(c), pos: i})
			i++
		case c == '"':
			end := i + 1
			for end < len(input) && input[end] != '"' {
				end++
			}
			if end >= len(input) {
				return nil, fmt.Errorf("unterminated string literal at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokString, text: input[i+1 : end], pos: i})
			i = end + 1
		case c == '<' && i+1 < len(input) && (input[i+1] == '?' || isIdentByte(input[i+1])):
			end := strings.IndexByte(input[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated angle token at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokAngle, text: input[i : i+end+1], pos: i})
			i += end + 1
		case strings.HasPrefix(input[i:], "==") || strings.HasPrefix(input[i:], "!=") ||
			strings.HasPrefix(input[i:], "<=") || strings.HasPrefix(input[i:], ">="):
			tokens = append(tokens, token{kind: tokOp, text: input[i : i+2], pos: i})
			i += 2
		case c == '<' || c == '>':
			tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
			i++
		case isIdentByte(c):
			end := i
			for end < len(input) && isIdentByte(input[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[i:end], pos: i})
			i = end
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(input)}), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

type parser struct {
	tokens []token
	pos    int
	scope  map[string]language.Variable
	fresh  int
}

func (p *parser) peek() token { return p.tokens[p.pos] }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) expect(kind tokenKind, text string) (token, error) {
	t := p.next()
	if t.kind != kind || (text != "" && t.text != text) {
		return t, fmt.Errorf("expected %q at offset %d, found %q", text, t.pos, t.text)
	}
	return t, nil
}

func (p *parser) parseFormula() (language.Formula, error) {
	return p.parseDisjunction()
}

func (p *parser) parseDisjunction() (language.Formula, error) {
	first, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	operands := []language.Formula{first}
	for p.peek().kind == tokIdent && p.peek().text == "or" {
		p.next()
		op, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return &language.Disjunction{Operands: operands}, nil
}

func (p *parser) parseConjunction() (language.Formula, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []language.Formula{first}
	for p.peek().kind == tokIdent && p.peek().text == "and" {
		p.next()
		op, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return &language.Conjunction{Operands: operands}, nil
}

func (p *parser) parseUnary() (language.Formula, error) {
	t := p.peek()
	switch {
	case t.kind == tokIdent && t.text == "not":
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &language.Negation{Inner: inner}, nil
	case t.kind == tokIdent && (t.text == "forall" || t.text == "exists"):
		return p.parseQuantified()
	case t.kind == tokPunct && t.text == "(":
		p.next()
		inner, err := p.parseFormula()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return p.parseAtom()
	}
}

func (p *parser) parseQuantified() (language.Formula, error) {
	kw := p.next()
	kind := language.ForallQuantifier
	if kw.text == "exists" {
		kind = language.ExistsQuantifier
	}

	// exists int num: (...) introduces a numeric constant.
	if kw.text == "exists" && p.peek().kind == tokIdent && p.peek().text == "int" {
		p.next()
		nameTok, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ":"); err != nil {
			return nil, err
		}
		bound := language.BoundVariable{VarName: nameTok.text, VarType: language.NumericNType}
		if err := p.declare(nameTok.text, bound); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &language.IntroduceNumericConstant{Bound: bound, Inner: inner}, nil
	}

	binderTok, err := p.expect(tokAngle, "")
	if err != nil {
		return nil, fmt.Errorf("quantifier at offset %d needs a <type> or <?> binder: %w", kw.pos, err)
	}
	nameTok, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIdent, "in"); err != nil {
		return nil, err
	}
	inTok, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokPunct, ":"); err != nil {
		return nil, err
	}

	var bound language.Variable
	switch {
	case binderTok.text == "<?>":
		bound = language.NonterminalPlaceholder{VarName: nameTok.text}
	case grammars.IsNonterminal(binderTok.text):
		bound = language.BoundVariable{VarName: nameTok.text, VarType: binderTok.text}
	default:
		return nil, fmt.Errorf("invalid binder %q at offset %d", binderTok.text, binderTok.pos)
	}
	inVar, ok := p.scope[inTok.text]
	if !ok {
		return nil, fmt.Errorf("unknown in-variable %q at offset %d", inTok.text, inTok.pos)
	}
	if err := p.declare(nameTok.text, bound); err != nil {
		return nil, err
	}

	inner, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &language.Quantified{Kind: kind, Bound: bound, In: inVar, Inner: inner}, nil
}

func (p *parser) declare(name string, v language.Variable) error {
	if _, exists := p.scope[name]; exists {
		return fmt.Errorf("variable %q bound twice", name)
	}
	p.scope[name] = v
	return nil
}

// parseAtom reads either a predicate call or a comparison.
func (p *parser) parseAtom() (language.Formula, error) {
	t := p.peek()
	if t.kind == tokIdent && p.tokens[p.pos+1].kind == tokPunct && p.tokens[p.pos+1].text == "(" {
		return p.parsePredicate()
	}
	return p.parseComparison()
}

func (p *parser) parsePredicate() (language.Formula, error) {
	nameTok := p.next()
	if _, err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	var args []language.Arg
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		sep := p.next()
		if sep.kind == tokPunct && sep.text == "," {
			continue
		}
		if sep.kind == tokPunct && sep.text == ")" {
			break
		}
		return nil, fmt.Errorf("expected ',' or ')' at offset %d, found %q", sep.pos, sep.text)
	}

	if pred, ok := language.StructuralPredicateByName(nameTok.text); ok {
		if len(args) != pred.Arity {
			return nil, fmt.Errorf("predicate %q expects %d arguments, got %d", pred.PredName, pred.Arity, len(args))
		}
		return &language.StructuralPredicateFormula{Predicate: pred, Args: args}, nil
	}
	if pred, ok := language.SemanticPredicateByName(nameTok.text); ok {
		if len(args) != pred.Arity {
			return nil, fmt.Errorf("predicate %q expects %d arguments, got %d", pred.PredName, pred.Arity, len(args))
		}
		return &language.SemanticPredicateFormula{Predicate: pred, Args: args}, nil
	}
	return nil, fmt.Errorf("unknown predicate %q at offset %d", nameTok.text, nameTok.pos)
}

func (p *parser) parseArg() (language.Arg, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		v, ok := p.scope[t.text]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q at offset %d", t.text, t.pos)
		}
		return language.VarArg{V: v}, nil
	case tokString:
		return language.StringArg{S: t.text}, nil
	case tokAngle:
		switch {
		case t.text == "<?NONTERMINAL>":
			return language.VarArg{V: language.NonterminalStringPlaceholder{VarName: p.freshName("nonterminal")}}, nil
		case t.text == "<?STRING>":
			return language.VarArg{V: language.StringPlaceholder{VarName: p.freshName("string")}}, nil
		case grammars.IsNonterminal(t.text):
			return language.StringArg{S: t.text}, nil
		}
		return nil, fmt.Errorf("invalid argument %q at offset %d", t.text, t.pos)
	default:
		return nil, fmt.Errorf("invalid argument %q at offset %d", t.text, t.pos)
	}
}

func (p *parser) parseComparison() (language.Formula, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	opTok, err := p.expect(tokOp, "")
	if err != nil {
		return nil, err
	}
	var op language.CompareOp
	switch opTok.text {
	case "==":
		op = language.OpEq
	case "!=":
		op = language.OpNe
	case "<":
		op = language.OpLt
	case "<=":
		op = language.OpLe
	case ">":
		op = language.OpGt
	case ">=":
		op = language.OpGe
	default:
		return nil, fmt.Errorf("unknown operator %q at offset %d", opTok.text, opTok.pos)
	}
	rhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &language.Comparison{Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func (p *parser) parseTerm() (language.Term, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		if v, ok := p.scope[t.text]; ok {
			return language.VarTerm{V: v}, nil
		}
		if _, err := strconv.Atoi(t.text); err == nil {
			return language.LitTerm{S: t.text}, nil
		}
		return nil, fmt.Errorf("unknown variable %q at offset %d", t.text, t.pos)
	case tokString:
		return language.LitTerm{S: t.text}, nil
	case tokAngle:
		if t.text == "<?STRING>" {
			return language.VarTerm{V: language.StringPlaceholder{VarName: p.freshName("string")}}, nil
		}
		return nil, fmt.Errorf("invalid term %q at offset %d", t.text, t.pos)
	default:
		return nil, fmt.Errorf("invalid term %q at offset %d", t.text, t.pos)
	}
}

func (p *parser) freshName(prefix string) string {
	p.fresh++
	return fmt.Sprintf("%s_%d", prefix, p.fresh)
}
