package lang

import (
	"fmt"
	"strings"
)

// parser is a recursive-descent, precedence-climbing parser over the
// lexer's flat token stream. It only ever builds nodes whose Kind is in
// the allow-listed set: anything the grammar below cannot express (class
// defs, async defs, try/except, import-from, lambda bodies beyond a bare
// reference, etc.) is a syntax error at parse time rather than a lint
// violation discovered later — both end up rejecting the submission, so
// this is a simplification, not a gap in enforcement.
type parser struct {
	toks []token
	pos  int
}

func newParser(toks []token) *parser { return &parser{toks: toks} }

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) at(k tokKind) bool { return p.cur().kind == k }
func (p *parser) atOp(s string) bool { return p.cur().kind == tOp && p.cur().text == s }
func (p *parser) atName(s string) bool { return p.cur().kind == tName && p.cur().text == s }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("lang: parse error at line %d: %s", p.cur().line, fmt.Sprintf(format, args...))
}

func (p *parser) expectOp(s string) (token, error) {
	if !p.atOp(s) {
		return token{}, p.errf("expected %q, got %q", s, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) expectName(s string) (token, error) {
	if !p.atName(s) {
		return token{}, p.errf("expected keyword %q, got %q", s, p.cur().text)
	}
	return p.advance(), nil
}

// skipNewlines consumes zero or more stray NEWLINE tokens (blank lines).
func (p *parser) skipNewlines() {
	for p.at(tNewline) {
		p.advance()
	}
}

// Parse parses a full module: a flat sequence of import statements,
// function definitions, and assignment or expression statements (such as
// the ORM declaration "balances = Hash()").
func Parse(src string) (*Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	mod := &Node{Kind: KModule, Line: 1}
	p.skipNewlines()
	for !p.at(tEOF) {
		stmt, err := p.parseTopLevelStmt()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmt)
		p.skipNewlines()
	}
	return mod, nil
}

func (p *parser) parseTopLevelStmt() (*Node, error) {
	if p.atOp("@") || p.atName("def") {
		return p.parseFuncDef()
	}
	if p.atName("import") {
		return p.parseImport()
	}
	return p.parseAssignOrExpr()
}

func (p *parser) parseImport() (*Node, error) {
	line := p.cur().line
	if _, err := p.expectName("import"); err != nil {
		return nil, err
	}
	if !p.at(tName) {
		return nil, p.errf("expected module name after import")
	}
	name := p.advance().text
	for p.atOp(".") {
		p.advance()
		if !p.at(tName) {
			return nil, p.errf("expected name after '.'")
		}
		name += "." + p.advance().text
	}
	if !p.at(tNewline) && !p.at(tEOF) {
		return nil, p.errf("nested/compound import not supported")
	}
	return &Node{Kind: KImport, Name: name, Line: line}, nil
}

func (p *parser) parseFuncDef() (*Node, error) {
	var decorators []*Node
	for p.atOp("@") {
		p.advance()
		line := p.cur().line
		if !p.at(tName) {
			return nil, p.errf("expected decorator name")
		}
		decorators = append(decorators, &Node{Kind: KName, Id: p.advance().text, Line: line})
		p.skipNewlines()
	}
	line := p.cur().line
	if _, err := p.expectName("def"); err != nil {
		return nil, err
	}
	if !p.at(tName) {
		return nil, p.errf("expected function name")
	}
	name := p.advance().text
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	args := &Node{Kind: KArguments, Line: line}
	for !p.atOp(")") {
		if !p.at(tName) {
			return nil, p.errf("expected parameter name")
		}
		argTok := p.advance()
		args.Params = append(args.Params, &Node{Kind: KArg, Arg: argTok.text, Line: argTok.line})
		if p.atOp("=") {
			p.advance()
			def, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			args.Params[len(args.Params)-1].Value = def
		}
		if p.atOp(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KFunctionDef, Name: name, Args: args, Body: body, Decorators: decorators, Line: line}, nil
}

func (p *parser) parseSuite() ([]*Node, error) {
	if p.at(tNewline) {
		p.advance()
		p.skipNewlines()
		if !p.at(tIndent) {
			return nil, p.errf("expected indented block")
		}
		p.advance()
		var stmts []*Node
		p.skipNewlines()
		for !p.at(tDedent) && !p.at(tEOF) {
			s, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
			p.skipNewlines()
		}
		if p.at(tDedent) {
			p.advance()
		}
		return stmts, nil
	}
	// inline single-statement suite: "if x: return y"
	s, err := p.parseSimpleStmt()
	if err != nil {
		return nil, err
	}
	if p.at(tNewline) {
		p.advance()
	}
	return []*Node{s}, nil
}

func (p *parser) parseStmt() (*Node, error) {
	switch {
	case p.atName("if"):
		return p.parseIf()
	case p.atName("for"):
		return p.parseFor()
	case p.atName("while"):
		return p.parseWhile()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseIf() (*Node, error) {
	line := p.cur().line
	p.advance()
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	node := &Node{Kind: KIf, Test: test, Body: body, Line: line}
	if p.atName("elif") {
		elifNode, err := p.parseIf() // "elif" reuses the "if" grammar via text compare below
		if err != nil {
			return nil, err
		}
		node.Orelse = []*Node{elifNode}
		return node, nil
	}
	if p.atName("else") {
		p.advance()
		if _, err := p.expectOp(":"); err != nil {
			return nil, err
		}
		elseBody, err := p.parseSuite()
		if err != nil {
			return nil, err
		}
		node.Orelse = elseBody
	}
	return node, nil
}

func (p *parser) parseFor() (*Node, error) {
	line := p.cur().line
	p.advance()
	if !p.at(tName) {
		return nil, p.errf("expected loop variable")
	}
	targetTok := p.advance()
	target := &Node{Kind: KName, Id: targetTok.text, Line: targetTok.line}
	if _, err := p.expectName("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KFor, Target: target, Iter: iter, Body: body, Line: line}, nil
}

func (p *parser) parseWhile() (*Node, error) {
	line := p.cur().line
	p.advance()
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KWhile, Test: test, Body: body, Line: line}, nil
}

func (p *parser) parseSimpleStmt() (*Node, error) {
	switch {
	case p.atName("pass"):
		line := p.cur().line
		p.advance()
		return &Node{Kind: KPass, Line: line}, nil
	case p.atName("return"):
		line := p.cur().line
		p.advance()
		if p.at(tNewline) || p.at(tEOF) || p.at(tDedent) {
			return &Node{Kind: KReturn, Line: line}, nil
		}
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KReturn, Value: v, Line: line}, nil
	case p.atName("assert"):
		line := p.cur().line
		p.advance()
		test, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		node := &Node{Kind: KAssert, Test: test, Line: line}
		if p.atOp(",") {
			p.advance()
			msg, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			node.Msg = msg
		}
		return node, nil
	case p.atName("import"):
		// a nested import inside a function body is syntactically
		// acceptable here and caught as violation S3 during lint.
		return p.parseImport()
	default:
		return p.parseAssignOrExpr()
	}
}

func (p *parser) parseAssignOrExpr() (*Node, error) {
	line := p.cur().line
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if op, ok := augAssignOps[p.cur().text]; ok && p.at(tOp) {
		p.advance()
		val, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KAugAssign, Target: first, Op: op, Value: val, Line: line}, nil
	}
	if p.atOp("=") {
		targets := []*Node{first}
		var value *Node
		for p.atOp("=") {
			p.advance()
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			value = v
			if p.atOp("=") {
				targets = append(targets, v)
			}
		}
		return &Node{Kind: KAssign, Targets: targets, Value: value, Line: line}, nil
	}
	return &Node{Kind: KExprStmt, Value: first, Line: line}, nil
}

var augAssignOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
}

// ---- expressions, lowest to highest precedence ----

func (p *parser) parseTest() (*Node, error) { return p.parseOr() }

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.atName("or") {
		node := &Node{Kind: KBoolOp, Op: "or", Left: left, Line: left.Line}
		for p.atName("or") {
			p.advance()
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			node.Comparators = append(node.Comparators, right)
		}
		return node, nil
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if p.atName("and") {
		node := &Node{Kind: KBoolOp, Op: "and", Left: left, Line: left.Line}
		for p.atName("and") {
			p.advance()
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			node.Comparators = append(node.Comparators, right)
		}
		return node, nil
	}
	return left, nil
}

func (p *parser) parseNot() (*Node, error) {
	if p.atName("not") {
		line := p.cur().line
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KUnaryOp, Op: "not", Left: operand, Line: line}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]string{
	"==": "==", "!=": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (p *parser) parseComparison() (*Node, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comparators []*Node
	for {
		if op, ok := compareOps[p.cur().text]; ok && p.at(tOp) {
			p.advance()
			right, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			comparators = append(comparators, right)
			continue
		}
		if p.atName("in") {
			p.advance()
			right, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			ops = append(ops, "in")
			comparators = append(comparators, right)
			continue
		}
		if p.atName("not") && p.toks[p.pos+1].kind == tName && p.toks[p.pos+1].text == "in" {
			p.advance()
			p.advance()
			right, err := p.parseArith()
			if err != nil {
				return nil, err
			}
			ops = append(ops, "not in")
			comparators = append(comparators, right)
			continue
		}
		break
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &Node{Kind: KCompare, Left: left, Ops: ops, Comparators: comparators, Line: left.Line}, nil
}

func (p *parser) parseArith() (*Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.advance().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: KBinOp, Left: left, Op: op, Right: right, Line: left.Line}
	}
	return left, nil
}

func (p *parser) parseTerm() (*Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("%") || p.atOp("//") {
		op := p.advance().text
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: KBinOp, Left: left, Op: op, Right: right, Line: left.Line}
	}
	return left, nil
}

func (p *parser) parseFactor() (*Node, error) {
	if p.atOp("-") || p.atOp("+") {
		op := p.advance().text
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KUnaryOp, Op: "u" + op, Left: operand, Line: operand.Line}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (*Node, error) {
	left, err := p.parseTrailer()
	if err != nil {
		return nil, err
	}
	if p.atOp("**") {
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KBinOp, Left: left, Op: "**", Right: right, Line: left.Line}, nil
	}
	return left, nil
}

func (p *parser) parseTrailer() (*Node, error) {
	node, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("."):
			p.advance()
			if !p.at(tName) {
				return nil, p.errf("expected attribute name")
			}
			attr := p.advance().text
			node = &Node{Kind: KAttribute, Obj: node, Attr: attr, Line: node.Line}
		case p.atOp("("):
			p.advance()
			call := &Node{Kind: KCall, Func: node, Line: node.Line}
			for !p.atOp(")") {
				if err := p.parseCallArg(call); err != nil {
					return nil, err
				}
				if p.atOp(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			node = call
		case p.atOp("["):
			p.advance()
			sub, err := p.parseSubscript(node)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			node = sub
		default:
			return node, nil
		}
	}
}

func (p *parser) parseCallArg(call *Node) error {
	if p.atOp("*") {
		p.advance()
		v, err := p.parseTest()
		if err != nil {
			return err
		}
		call.CallArgs = append(call.CallArgs, &Node{Kind: KStarred, Value: v, Line: v.Line})
		return nil
	}
	if p.at(tName) && p.toks[p.pos+1].kind == tOp && p.toks[p.pos+1].text == "=" {
		name := p.advance().text
		p.advance() // '='
		v, err := p.parseTest()
		if err != nil {
			return err
		}
		call.Keywords = append(call.Keywords, &Node{Kind: KKeyword, Arg: name, Value: v, Line: v.Line})
		return nil
	}
	v, err := p.parseTest()
	if err != nil {
		return err
	}
	call.CallArgs = append(call.CallArgs, v)
	return nil
}

func (p *parser) parseSubscript(obj *Node) (*Node, error) {
	// supports a plain index or a [lower:upper:step] slice.
	var lower, upper, step *Node
	isSlice := false
	if !p.atOp(":") {
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		lower = v
	}
	if p.atOp(":") {
		isSlice = true
		p.advance()
		if !p.atOp(":") && !p.atOp("]") {
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			upper = v
		}
		if p.atOp(":") {
			p.advance()
			if !p.atOp("]") {
				v, err := p.parseTest()
				if err != nil {
					return nil, err
				}
				step = v
			}
		}
	}
	if isSlice {
		return &Node{Kind: KSubscript, Obj: obj, Slice: &Node{Kind: KSlice, Lower: lower, Upper: upper, Step: step}, Line: obj.Line}, nil
	}
	return &Node{Kind: KSubscript, Obj: obj, Index: lower, Line: obj.Line}, nil
}

func (p *parser) parseAtom() (*Node, error) {
	line := p.cur().line
	switch {
	case p.at(tNumber):
		text := p.advance().text
		return &Node{Kind: KNum, NumLit: canonicalizeNumLit(text), Line: line}, nil
	case p.at(tString):
		return &Node{Kind: KStr, StrLit: p.advance().text, Line: line}, nil
	case p.atName("True"):
		p.advance()
		return &Node{Kind: KNameConstant, IsTrue: true, Line: line}, nil
	case p.atName("False"):
		p.advance()
		return &Node{Kind: KNameConstant, IsTrue: false, Line: line}, nil
	case p.atName("None"):
		p.advance()
		return &Node{Kind: KNameConstant, IsNone: true, Line: line}, nil
	case p.at(tName):
		return &Node{Kind: KName, Id: p.advance().text, Line: line}, nil
	case p.atOp("("):
		p.advance()
		if p.atOp(")") {
			p.advance()
			return &Node{Kind: KTuple, Line: line}, nil
		}
		v, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.atOp(",") {
			elts := []*Node{v}
			for p.atOp(",") {
				p.advance()
				if p.atOp(")") {
					break
				}
				e, err := p.parseTest()
				if err != nil {
					return nil, err
				}
				elts = append(elts, e)
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return &Node{Kind: KTuple, Elts: elts, Line: line}, nil
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return v, nil
	case p.atOp("["):
		return p.parseListOrComp()
	case p.atOp("{"):
		return p.parseDictOrSet()
	}
	return nil, p.errf("unexpected token %q", p.cur().text)
}

func (p *parser) parseListOrComp() (*Node, error) {
	line := p.cur().line
	p.advance() // '['
	if p.atOp("]") {
		p.advance()
		return &Node{Kind: KList, Line: line}, nil
	}
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.atName("for") {
		gens, err := p.parseComprehensions()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return &Node{Kind: KListComp, Elt: first, Generators: gens, Line: line}, nil
	}
	elts := []*Node{first}
	for p.atOp(",") {
		p.advance()
		if p.atOp("]") {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &Node{Kind: KList, Elts: elts, Line: line}, nil
}

func (p *parser) parseComprehensions() ([]*Node, error) {
	var gens []*Node
	for p.atName("for") {
		line := p.cur().line
		p.advance()
		if !p.at(tName) {
			return nil, p.errf("expected comprehension variable")
		}
		targetTok := p.advance()
		target := &Node{Kind: KName, Id: targetTok.text, Line: targetTok.line}
		if _, err := p.expectName("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		gen := &Node{Kind: KComprehension, Target: target, Iter: iter, Line: line}
		for p.atName("if") {
			p.advance()
			cond, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			gen.IfClauses = append(gen.IfClauses, cond)
		}
		gens = append(gens, gen)
	}
	return gens, nil
}

func (p *parser) parseDictOrSet() (*Node, error) {
	line := p.cur().line
	p.advance() // '{'
	if p.atOp("}") {
		p.advance()
		return &Node{Kind: KDict, Line: line}, nil
	}
	firstKey, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.atOp(":") {
		p.advance()
		firstVal, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		keys := []*Node{firstKey}
		vals := []*Node{firstVal}
		for p.atOp(",") {
			p.advance()
			if p.atOp("}") {
				break
			}
			k, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			vals = append(vals, v)
		}
		if _, err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return &Node{Kind: KDict, Keys: keys, Vals: vals, Line: line}, nil
	}
	elts := []*Node{firstKey}
	for p.atOp(",") {
		p.advance()
		if p.atOp("}") {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return &Node{Kind: KSet, Elts: elts, Line: line}, nil
}

// canonicalizeNumLit strips redundant leading/trailing zeros from a raw
// numeric literal's text so two spellings of the same value ("1.50",
// "1.5") compile to the same decimal wrapper call argument text.
func canonicalizeNumLit(s string) string {
	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
