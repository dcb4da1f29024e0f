package lang

import (
	"math/big"
	"sort"

	"github.com/quailmother/contracting/pkg/encoding"
)

// returnSignal unwinds a function call's statement execution on a `return`
// statement; caught in invokeUserFunc.
type returnSignal struct{ value interface{} }

// ExecModule pushes img.Module onto rt's call stack, builds and executes the
// module's top-level statements, and pops the stack before returning. This
// is invoked for every nested `import` (spec.md §4.6); the initial dispatch
// builds its environment through CallByName, which calls buildEnv itself
// rather than ExecModule. Imports run eagerly, once, matching
// the original's "import triggers module exec" semantics rather than a
// cached sys.modules lookup.
func ExecModule(img *Image, rt *Runtime) (*env, error) {
	if err := rt.Push(img.Module); err != nil {
		return nil, err
	}
	defer rt.Pop()
	return buildEnv(img, rt)
}

// buildEnv executes img's top-level statements against a fresh module
// environment without touching the call stack; callers are responsible for
// pushing/popping img.Module around it.
func buildEnv(img *Image, rt *Runtime) (*env, error) {
	e := newEnv(nil)
	e.setLocal("ctx", &ctxObject{rt: rt})
	installBuiltins(e, rt)

	for _, stmt := range img.Tree.Body {
		if stmt.Kind == KFunctionDef {
			e.setLocal(stmt.Name, &userFunc{def: stmt, closure: e})
			continue
		}
		if stmt.Kind == KImport {
			sub, err := rt.Importer(stmt.Name)
			if err != nil {
				return nil, err
			}
			subEnv, err := ExecModule(sub, rt)
			if err != nil {
				return nil, err
			}
			e.setLocal(lastSegment(stmt.Name), &moduleRef{image: sub, env: subEnv})
			continue
		}
		if err := execStmt(stmt, e, rt); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func lastSegment(dotted string) string {
	last := dotted
	for i := len(dotted) - 1; i >= 0; i-- {
		if dotted[i] == '.' {
			last = dotted[i+1:]
			break
		}
	}
	return last
}

// CallByName pushes img.Module, builds a fresh module environment, and
// invokes the named function with args/kwargs. Contracts are re-executed
// fresh on every top-level call (spec.md §9's explicit rejection of a
// Python-style module cache, to keep every invocation's state reads
// observable through the cache driver rather than a stale closure).
func CallByName(img *Image, functionName string, args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	if err := rt.Push(img.Module); err != nil {
		return nil, err
	}
	defer rt.Pop()

	e, err := buildEnv(img, rt)
	if err != nil {
		return nil, err
	}
	fv, ok := e.get(functionName)
	if !ok {
		return nil, ErrUnknownName
	}
	fn, ok := fv.(*userFunc)
	if !ok {
		return nil, ErrNotCallable
	}
	return invokeUserFunc(fn, args, kwargs, rt)
}

// invokeUserFunc binds parameters into a frame chained off fn's closure and
// runs its body, recovering the returnSignal panic used for `return`
// unwinding. It does not touch rt's call stack — that is the caller's
// responsibility (CallByName for the entry call, callValue's boundFunc case
// for a cross-contract call).
func invokeUserFunc(fn *userFunc, args []interface{}, kwargs map[string]interface{}, rt *Runtime) (result interface{}, err error) {
	frame := newEnv(fn.closure)
	params := fn.def.Args.Params
	for i, param := range params {
		var bound interface{}
		switch {
		case i < len(args):
			bound = args[i]
		default:
			if v, ok := kwargs[param.Arg]; ok {
				bound = v
				break
			}
			if param.Value != nil {
				dv, derr := evalExpr(param.Value, frame, rt)
				if derr != nil {
					return nil, derr
				}
				bound = dv
				break
			}
			bound = encoding.Null{}
		}
		if err = rt.Allocate(sizeOf(bound)); err != nil {
			return nil, err
		}
		frame.setLocal(param.Arg, bound)
	}

	defer func() {
		if r := recover(); r != nil {
			if rs, ok := r.(returnSignal); ok {
				result, err = rs.value, nil
				return
			}
			panic(r)
		}
	}()

	for _, stmt := range fn.def.Body {
		if serr := execStmt(stmt, frame, rt); serr != nil {
			return nil, serr
		}
	}
	return encoding.Null{}, nil
}

func execStmt(n *Node, e *env, rt *Runtime) error {
	// Charged once per statement regardless of what it does, so a loop body
	// that never touches the cache (e.g. `while True: pass`) still burns
	// down the stamp budget (spec §4.7 step 3, §5).
	if err := rt.Charge(rt.Cfg.OpStampCost); err != nil {
		return err
	}
	switch n.Kind {
	case KPass:
		return nil
	case KImport:
		sub, ierr := rt.Importer(n.Name)
		if ierr != nil {
			return ierr
		}
		subEnv, ierr := ExecModule(sub, rt)
		if ierr != nil {
			return ierr
		}
		e.setLocal(lastSegment(n.Name), &moduleRef{image: sub, env: subEnv})
		return nil
	case KAssign:
		v, verr := evalExpr(n.Value, e, rt)
		if verr != nil {
			return verr
		}
		for _, t := range n.Targets {
			if aerr := assignTo(t, v, e, rt); aerr != nil {
				return aerr
			}
		}
		return nil
	case KAugAssign:
		cur, cerr := evalExpr(n.Target, e, rt)
		if cerr != nil {
			return cerr
		}
		rhs, rerr := evalExpr(n.Value, e, rt)
		if rerr != nil {
			return rerr
		}
		nv, berr := binOp(n.Op, cur, rhs)
		if berr != nil {
			return berr
		}
		return assignTo(n.Target, nv, e, rt)
	case KIf:
		cond, cerr := evalExpr(n.Test, e, rt)
		if cerr != nil {
			return cerr
		}
		body := n.Body
		if !truthy(cond) {
			body = n.Orelse
		}
		for _, s := range body {
			if serr := execStmt(s, e, rt); serr != nil {
				return serr
			}
		}
		return nil
	case KWhile:
		for {
			// Charged per iteration, independent of the body's statements,
			// so a body that somehow evaluates to zero charged statements
			// still can't loop forever on an uncharged condition check.
			if err := rt.Charge(rt.Cfg.OpStampCost); err != nil {
				return err
			}
			cond, cerr := evalExpr(n.Test, e, rt)
			if cerr != nil {
				return cerr
			}
			if !truthy(cond) {
				return nil
			}
			for _, s := range n.Body {
				if serr := execStmt(s, e, rt); serr != nil {
					return serr
				}
			}
		}
	case KFor:
		iterVal, ierr := evalExpr(n.Iter, e, rt)
		if ierr != nil {
			return ierr
		}
		items, ierr := toIterable(iterVal)
		if ierr != nil {
			return ierr
		}
		for _, item := range items {
			if err := rt.Allocate(sizeOf(item)); err != nil {
				return err
			}
			e.assign(n.Target.Id, item)
			for _, s := range n.Body {
				if serr := execStmt(s, e, rt); serr != nil {
					return serr
				}
			}
		}
		return nil
	case KReturn:
		var v interface{} = encoding.Null{}
		if n.Value != nil {
			var verr error
			v, verr = evalExpr(n.Value, e, rt)
			if verr != nil {
				return verr
			}
		}
		panic(returnSignal{value: v})
	case KAssert:
		cond, cerr := evalExpr(n.Test, e, rt)
		if cerr != nil {
			return cerr
		}
		if !truthy(cond) {
			msg := ""
			if n.Msg != nil {
				if mv, merr := evalExpr(n.Msg, e, rt); merr == nil {
					if s, ok := mv.(string); ok {
						msg = s
					}
				}
			}
			return &RevertError{Message: msg}
		}
		return nil
	case KExprStmt:
		_, eerr := evalExpr(n.Value, e, rt)
		return eerr
	default:
		return ErrNotCallable
	}
}

func assignTo(target *Node, v interface{}, e *env, rt *Runtime) error {
	if err := rt.Allocate(sizeOf(v)); err != nil {
		return err
	}
	switch target.Kind {
	case KName:
		e.assign(target.Id, v)
		return nil
	case KSubscript:
		obj, err := evalExpr(target.Obj, e, rt)
		if err != nil {
			return err
		}
		idx, err := evalExpr(target.Index, e, rt)
		if err != nil {
			return err
		}
		return subscriptSet(obj, idx, v)
	default:
		return ErrNotCallable
	}
}

// sizeOf estimates the live byte footprint of a value assigned into an
// environment, for Runtime.Allocate's accounting against Cfg.MemoryLimit.
// It need not be exact — only monotonic in the value's actual size, so a
// contract that keeps growing one bound name still hits the cap.
func sizeOf(v interface{}) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []byte:
		return len(t)
	case encoding.Decimal:
		return len(t.Unscaled.Bytes()) + 4
	case encoding.List:
		n := 0
		for _, el := range t {
			n += sizeOf(el)
		}
		return n
	case encoding.Map:
		n := 0
		for k, el := range t {
			n += len(k) + sizeOf(el)
		}
		return n
	case bool, encoding.Null, nil:
		return 1
	default:
		return 8
	}
}

func toIterable(v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case encoding.List:
		return []interface{}(t), nil
	case []interface{}:
		return t, nil
	case string:
		out := make([]interface{}, 0, len(t))
		for _, r := range t {
			out = append(out, string(r))
		}
		return out, nil
	case encoding.Map:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, 0, len(keys))
		for _, k := range keys {
			out = append(out, k)
		}
		return out, nil
	default:
		return nil, ErrNotCallable
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case encoding.Null:
		return false
	case nil:
		return false
	case bool:
		return t
	case *big.Int:
		return t.Sign() != 0
	case encoding.Decimal:
		return !t.IsZero()
	case string:
		return t != ""
	case []byte:
		return len(t) != 0
	case encoding.List:
		return len(t) != 0
	case encoding.Map:
		return len(t) != 0
	default:
		return true
	}
}
