package lang

import (
	"github.com/quailmother/contracting/params"
)

// ExistenceChecker answers S5: whether an imported contract name is
// present in the store. ContractDriver implements this.
type ExistenceChecker interface {
	IsContract(name string) bool
}

var ormConstructors = map[string]bool{
	"Variable": true, "Hash": true, "ForeignVariable": true, "ForeignHash": true,
}

// Lint walks mod and returns every violation found (Stage 1, fail-closed,
// collected rather than fail-fast — spec.md §4.5).
func Lint(mod *Node, cfg *params.Config, checker ExistenceChecker) []Violation {
	l := &linter{cfg: cfg, checker: checker}
	l.lintModule(mod)
	return l.violations
}

type linter struct {
	cfg        *params.Config
	checker    ExistenceChecker
	violations []Violation
	numConstructors int
	numDecorated    int
}

func (l *linter) add(code, msg string, line int) {
	l.violations = append(l.violations, Violation{Code: code, Message: msg, Line: line})
}

func (l *linter) lintModule(mod *Node) {
	for _, stmt := range mod.Body {
		switch stmt.Kind {
		case KImport:
			l.lintImport(stmt)
		case KFunctionDef:
			l.lintFuncDef(stmt, true)
		default:
			// The parser admits assignment and expression statements at
			// module level (ORM declarations such as "balances = Hash()");
			// they are linted like statements in a function body.
			l.lintStmt(stmt, false)
		}
	}
	if l.numDecorated == 0 {
		l.add("S13", "no valid contracting decorator found anywhere in the module", mod.Line)
	}
}

func (l *linter) lintImport(n *Node) {
	if l.checker != nil && !l.checker.IsContract(n.Name) {
		l.add("S5", "imported contract \""+n.Name+"\" not found in store", n.Line)
	}
}

func (l *linter) lintFuncDef(fn *Node, topLevel bool) {
	if checkLeadingUnderscore(fn.Name) {
		l.add("S2", "function name \""+fn.Name+"\" begins with reserved prefix '_'", fn.Line)
	}
	if topLevel {
		if len(fn.Decorators) > 1 {
			l.add("S10", "function \""+fn.Name+"\" carries more than one decorator", fn.Line)
		}
		for _, d := range fn.Decorators {
			if d.Id != l.cfg.ExportDecorator && d.Id != l.cfg.ConstructDecorator {
				l.add("S8", "unknown decorator \""+d.Id+"\"", d.Line)
				continue
			}
			l.numDecorated++
			if d.Id == l.cfg.ConstructDecorator {
				l.numConstructors++
				if l.numConstructors > 1 {
					l.add("S9", "more than one construct decorator found in module", d.Line)
				}
			}
		}
	}
	for _, p := range fn.Args.Params {
		if checkLeadingUnderscore(p.Arg) {
			l.add("S2", "parameter \""+p.Arg+"\" begins with reserved prefix '_'", p.Line)
		}
	}
	for _, stmt := range fn.Body {
		l.lintStmt(stmt, false)
	}
}

func (l *linter) lintStmt(n *Node, nested bool) {
	switch n.Kind {
	case KImport:
		l.add("S3", "import statement not allowed inside a function body", n.Line)
	case KFunctionDef:
		l.add("S1", "nested function definitions are not allowed", n.Line)
	case KAssign:
		l.lintAssign(n)
		for _, t := range n.Targets {
			l.lintExpr(t)
		}
		l.lintExpr(n.Value)
	case KAugAssign:
		l.lintExpr(n.Target)
		l.lintExpr(n.Value)
	case KIf:
		l.lintExpr(n.Test)
		for _, s := range n.Body {
			l.lintStmt(s, true)
		}
		for _, s := range n.Orelse {
			l.lintStmt(s, true)
		}
	case KFor:
		l.lintExpr(n.Iter)
		for _, s := range n.Body {
			l.lintStmt(s, true)
		}
	case KWhile:
		l.lintExpr(n.Test)
		for _, s := range n.Body {
			l.lintStmt(s, true)
		}
	case KReturn:
		if n.Value != nil {
			l.lintExpr(n.Value)
		}
	case KAssert:
		l.lintExpr(n.Test)
		if n.Msg != nil {
			l.lintExpr(n.Msg)
		}
	case KExprStmt:
		l.lintExpr(n.Value)
	case KPass:
	default:
		l.add("S1", "unexpected statement node kind", n.Line)
	}
}

// lintAssign enforces S11/S12 for assignments whose right-hand side
// constructs a reserved ORM state object.
func (l *linter) lintAssign(n *Node) {
	call, ok := asOrmCall(n.Value)
	if !ok {
		return
	}
	if len(n.Targets) > 1 {
		l.add("S12", "state declaration assigns to more than one target", n.Line)
	}
	for _, kw := range call.Keywords {
		if kw.Arg == "contract" || kw.Arg == "name" {
			l.add("S11", "argument name \""+kw.Arg+"\" collides with a reserved ORM keyword", kw.Line)
		}
	}
}

func asOrmCall(n *Node) (*Node, bool) {
	if n == nil || n.Kind != KCall {
		return nil, false
	}
	if n.Func.Kind != KName || !ormConstructors[n.Func.Id] {
		return nil, false
	}
	return n, true
}

func (l *linter) lintExpr(n *Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KName, KNum, KStr, KNameConstant:
		if n.Kind == KName && checkLeadingUnderscore(n.Id) {
			l.add("S2", "identifier \""+n.Id+"\" begins with reserved prefix '_'", n.Line)
		}
	case KAttribute:
		l.lintExpr(n.Obj)
	case KSubscript:
		l.lintExpr(n.Obj)
		l.lintExpr(n.Index)
		if n.Slice != nil {
			l.lintExpr(n.Slice.Lower)
			l.lintExpr(n.Slice.Upper)
			l.lintExpr(n.Slice.Step)
		}
	case KBinOp:
		l.lintExpr(n.Left)
		l.lintExpr(n.Right)
	case KBoolOp:
		l.lintExpr(n.Left)
		for _, c := range n.Comparators {
			l.lintExpr(c)
		}
	case KUnaryOp:
		l.lintExpr(n.Left)
	case KCompare:
		l.lintExpr(n.Left)
		for _, c := range n.Comparators {
			l.lintExpr(c)
		}
	case KCall:
		l.lintExpr(n.Func)
		for _, a := range n.CallArgs {
			l.lintExpr(a)
		}
		for _, kw := range n.Keywords {
			l.lintExpr(kw.Value)
		}
	case KList, KSet, KTuple:
		for _, e := range n.Elts {
			l.lintExpr(e)
		}
	case KDict:
		for _, k := range n.Keys {
			l.lintExpr(k)
		}
		for _, v := range n.Vals {
			l.lintExpr(v)
		}
	case KListComp:
		l.lintExpr(n.Elt)
		for _, g := range n.Generators {
			l.lintExpr(g.Iter)
			for _, c := range g.IfClauses {
				l.lintExpr(c)
			}
		}
	case KStarred:
		l.lintExpr(n.Value)
	default:
		l.add("S1", "unexpected expression node kind", n.Line)
	}
}

func checkLeadingUnderscore(id string) bool {
	return len(id) > 0 && id[0] == '_'
}
