package lang

import "github.com/quailmother/contracting/params"

// DecimalWrapperName is the fixed-precision decimal constructor every
// numeric literal is wrapped in by Rewrite rule 4. The interpreter resolves
// it as a built-in, not a contract-defined name.
const DecimalWrapperName = "__decimal__"

// Rewrite performs the Stage-2 transform described in spec.md §4.5 on a
// tree that has already passed Lint. It mutates mod in place and also
// returns it, for chaining.
func Rewrite(mod *Node, cfg *params.Config, moduleName string) *Node {
	rw := &rewriter{cfg: cfg, moduleName: moduleName, renamed: map[string]string{}}
	rw.collectRenames(mod)
	rw.rewriteModule(mod)
	return mod
}

type rewriter struct {
	cfg        *params.Config
	moduleName string
	renamed    map[string]string // original private-helper name -> mangled name
}

func (rw *rewriter) collectRenames(mod *Node) {
	for _, stmt := range mod.Body {
		if stmt.Kind != KFunctionDef {
			continue
		}
		if isConstruct(stmt, rw.cfg) {
			rw.renamed[stmt.Name] = rw.cfg.ConstructFuncName
			continue
		}
		if len(stmt.Decorators) == 0 {
			rw.renamed[stmt.Name] = rw.cfg.PrivateMethodPrefix + stmt.Name
		}
	}
}

func isConstruct(fn *Node, cfg *params.Config) bool {
	for _, d := range fn.Decorators {
		if d.Id == cfg.ConstructDecorator {
			return true
		}
	}
	return false
}

func isExported(fn *Node, cfg *params.Config) bool {
	for _, d := range fn.Decorators {
		if d.Id == cfg.ExportDecorator {
			return true
		}
	}
	return false
}

func (rw *rewriter) rewriteModule(mod *Node) {
	for _, stmt := range mod.Body {
		if stmt.Kind != KFunctionDef {
			// Top-level ORM declarations need the same contract=/name=
			// keyword injection and numeric-literal wrapping as any other
			// statement.
			rw.rewriteStmt(stmt)
			continue
		}
		if newName, ok := rw.renamed[stmt.Name]; ok {
			stmt.Name = newName
		}
		stmt.Decorators = nil
		rw.rewriteStmts(stmt.Body)
	}
}

func (rw *rewriter) rewriteStmts(stmts []*Node) {
	for _, s := range stmts {
		rw.rewriteStmt(s)
	}
}

func (rw *rewriter) rewriteStmt(n *Node) {
	switch n.Kind {
	case KAssign:
		rw.rewriteOrmAssign(n)
		for _, t := range n.Targets {
			rw.rewriteExpr(t)
		}
		rw.rewriteExpr(n.Value)
	case KAugAssign:
		rw.rewriteExpr(n.Target)
		rw.rewriteExpr(n.Value)
	case KIf:
		rw.rewriteExpr(n.Test)
		rw.rewriteStmts(n.Body)
		rw.rewriteStmts(n.Orelse)
	case KFor:
		rw.rewriteExpr(n.Iter)
		rw.rewriteStmts(n.Body)
	case KWhile:
		rw.rewriteExpr(n.Test)
		rw.rewriteStmts(n.Body)
	case KReturn:
		rw.rewriteExpr(n.Value)
	case KAssert:
		rw.rewriteExpr(n.Test)
		rw.rewriteExpr(n.Msg)
	case KExprStmt:
		rw.rewriteExpr(n.Value)
	}
}

// rewriteOrmAssign injects contract=<module> and name=<target> keywords
// into a state-object constructor call (Stage-2 rule 3).
func (rw *rewriter) rewriteOrmAssign(n *Node) {
	call, ok := asOrmCall(n.Value)
	if !ok {
		return
	}
	if len(n.Targets) != 1 || n.Targets[0].Kind != KName {
		return
	}
	targetName := n.Targets[0].Id
	call.Keywords = append(call.Keywords,
		&Node{Kind: KKeyword, Arg: "contract", Value: &Node{Kind: KStr, StrLit: rw.moduleName, Line: n.Line}, Line: n.Line},
		&Node{Kind: KKeyword, Arg: "name", Value: &Node{Kind: KStr, StrLit: targetName, Line: n.Line}, Line: n.Line},
	)
}

func (rw *rewriter) rewriteExpr(n *Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KNum:
		wrapped := *n
		wrapped.Kind = KCall
		wrapped.Func = &Node{Kind: KName, Id: DecimalWrapperName, Line: n.Line}
		wrapped.CallArgs = []*Node{{Kind: KStr, StrLit: n.NumLit, Line: n.Line}}
		*n = wrapped
	case KName:
		if newName, ok := rw.renamed[n.Id]; ok {
			n.Id = newName
		}
	case KAttribute:
		rw.rewriteExpr(n.Obj)
	case KSubscript:
		rw.rewriteExpr(n.Obj)
		rw.rewriteExpr(n.Index)
		if n.Slice != nil {
			rw.rewriteExpr(n.Slice.Lower)
			rw.rewriteExpr(n.Slice.Upper)
			rw.rewriteExpr(n.Slice.Step)
		}
	case KBinOp:
		rw.rewriteExpr(n.Left)
		rw.rewriteExpr(n.Right)
	case KBoolOp:
		rw.rewriteExpr(n.Left)
		for _, c := range n.Comparators {
			rw.rewriteExpr(c)
		}
	case KUnaryOp:
		rw.rewriteExpr(n.Left)
	case KCompare:
		rw.rewriteExpr(n.Left)
		for _, c := range n.Comparators {
			rw.rewriteExpr(c)
		}
	case KCall:
		rw.rewriteExpr(n.Func)
		for _, a := range n.CallArgs {
			rw.rewriteExpr(a)
		}
		for _, kw := range n.Keywords {
			rw.rewriteExpr(kw.Value)
		}
	case KList, KSet, KTuple:
		for _, e := range n.Elts {
			rw.rewriteExpr(e)
		}
	case KDict:
		for _, k := range n.Keys {
			rw.rewriteExpr(k)
		}
		for _, v := range n.Vals {
			rw.rewriteExpr(v)
		}
	case KListComp:
		rw.rewriteExpr(n.Elt)
		for _, g := range n.Generators {
			rw.rewriteExpr(g.Iter)
			for _, c := range g.IfClauses {
				rw.rewriteExpr(c)
			}
		}
	case KStarred:
		rw.rewriteExpr(n.Value)
	}
}
