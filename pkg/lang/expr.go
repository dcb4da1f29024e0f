package lang

import (
	"math/big"

	"github.com/quailmother/contracting/pkg/encoding"
)

// methodValue is the runtime value produced by attribute access on a
// built-in object (an ORM binding or the "importing" bridge): the method
// name is resolved lazily, at call time, against recv's Go type.
type methodValue struct {
	recv interface{}
	name string
}

func evalExpr(n *Node, e *env, rt *Runtime) (interface{}, error) {
	// Charged once per expression node evaluated, same rationale as
	// execStmt: an expression-heavy construct (a huge list comprehension,
	// deep recursion through call expressions) must burn stamps even when
	// it never executes a standalone statement or touches the cache.
	if err := rt.Charge(rt.Cfg.OpStampCost); err != nil {
		return nil, err
	}
	switch n.Kind {
	case KNum:
		return encoding.ParseDecimal(n.NumLit, rt.Cfg.DecimalPrecision)
	case KStr:
		return n.StrLit, nil
	case KNameConstant:
		if n.IsNone {
			return encoding.Null{}, nil
		}
		return n.IsTrue, nil
	case KName:
		v, ok := e.get(n.Id)
		if !ok {
			return nil, ErrUnknownName
		}
		return v, nil
	case KAttribute:
		return evalAttribute(n, e, rt)
	case KSubscript:
		obj, err := evalExpr(n.Obj, e, rt)
		if err != nil {
			return nil, err
		}
		if n.Slice != nil {
			return evalSlice(n, obj, e, rt)
		}
		idx, err := evalExpr(n.Index, e, rt)
		if err != nil {
			return nil, err
		}
		return subscriptGet(obj, idx)
	case KCall:
		return evalCall(n, e, rt)
	case KBinOp:
		left, err := evalExpr(n.Left, e, rt)
		if err != nil {
			return nil, err
		}
		right, err := evalExpr(n.Right, e, rt)
		if err != nil {
			return nil, err
		}
		return binOp(n.Op, left, right)
	case KBoolOp:
		left, err := evalExpr(n.Left, e, rt)
		if err != nil {
			return nil, err
		}
		cur := left
		for _, c := range n.Comparators {
			if n.Op == "and" && !truthy(cur) {
				return cur, nil
			}
			if n.Op == "or" && truthy(cur) {
				return cur, nil
			}
			v, err := evalExpr(c, e, rt)
			if err != nil {
				return nil, err
			}
			cur = v
		}
		return cur, nil
	case KUnaryOp:
		v, err := evalExpr(n.Left, e, rt)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "not":
			return !truthy(v), nil
		case "u-":
			return negate(v)
		case "u+":
			return v, nil
		}
		return nil, ErrNotCallable
	case KCompare:
		return evalCompare(n, e, rt)
	case KList, KSet, KTuple:
		out := make(encoding.List, 0, len(n.Elts))
		for _, el := range n.Elts {
			v, err := evalExpr(el, e, rt)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case KDict:
		out := encoding.Map{}
		for i, k := range n.Keys {
			kv, err := evalExpr(k, e, rt)
			if err != nil {
				return nil, err
			}
			vv, err := evalExpr(n.Vals[i], e, rt)
			if err != nil {
				return nil, err
			}
			ks, ok := kv.(string)
			if !ok {
				return nil, ErrMalformedArgs
			}
			out[ks] = vv
		}
		return out, nil
	case KListComp:
		return evalListComp(n, e, rt)
	default:
		return nil, ErrNotCallable
	}
}

func evalSlice(n *Node, obj interface{}, e *env, rt *Runtime) (interface{}, error) {
	s, ok := obj.(string)
	if !ok {
		return nil, ErrMalformedArgs
	}
	lo, hi := 0, len(s)
	if n.Slice.Lower != nil {
		v, err := evalExpr(n.Slice.Lower, e, rt)
		if err != nil {
			return nil, err
		}
		lo = intOf(v)
	}
	if n.Slice.Upper != nil {
		v, err := evalExpr(n.Slice.Upper, e, rt)
		if err != nil {
			return nil, err
		}
		hi = intOf(v)
	}
	if lo < 0 {
		lo = 0
	}
	if hi > len(s) {
		hi = len(s)
	}
	if lo > hi {
		return "", nil
	}
	return s[lo:hi], nil
}

func intOf(v interface{}) int {
	switch t := v.(type) {
	case encoding.Decimal:
		return int(t.Unscaled.Int64())
	case *big.Int:
		return int(t.Int64())
	default:
		return 0
	}
}

func evalAttribute(n *Node, e *env, rt *Runtime) (interface{}, error) {
	obj, err := evalExpr(n.Obj, e, rt)
	if err != nil {
		return nil, err
	}
	switch t := obj.(type) {
	case *ctxObject:
		switch n.Attr {
		case "caller":
			return t.rt.Caller(), nil
		case "signer":
			return t.rt.Signer(), nil
		case "this":
			return t.rt.This(), nil
		}
		return nil, ErrUnknownName
	case *moduleRef:
		v, ok := t.env.get(n.Attr)
		if !ok {
			return nil, ErrUnknownName
		}
		if _, ok := v.(*userFunc); ok {
			return &boundFunc{module: t, name: n.Attr}, nil
		}
		return v, nil
	case *ormVariable, *ormHash:
		return &methodValue{recv: t, name: n.Attr}, nil
	case *importingObject:
		return &methodValue{recv: t, name: n.Attr}, nil
	default:
		return nil, ErrNotCallable
	}
}

func evalCall(n *Node, e *env, rt *Runtime) (interface{}, error) {
	callee, err := evalExpr(n.Func, e, rt)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, len(n.CallArgs))
	for _, a := range n.CallArgs {
		if a.Kind == KStarred {
			v, err := evalExpr(a.Value, e, rt)
			if err != nil {
				return nil, err
			}
			items, err := toIterable(v)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
			continue
		}
		v, err := evalExpr(a, e, rt)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	kwargs := map[string]interface{}{}
	for _, kw := range n.Keywords {
		v, err := evalExpr(kw.Value, e, rt)
		if err != nil {
			return nil, err
		}
		kwargs[kw.Arg] = v
	}
	return callValue(callee, args, kwargs, rt)
}

func callValue(callee interface{}, args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	switch fn := callee.(type) {
	case *builtinFunc:
		return fn.fn(args, kwargs, rt)
	case *userFunc:
		return invokeUserFunc(fn, args, kwargs, rt)
	case *boundFunc:
		v, ok := fn.module.env.get(fn.name)
		if !ok {
			return nil, ErrUnknownName
		}
		uf, ok := v.(*userFunc)
		if !ok {
			return nil, ErrNotCallable
		}
		if err := rt.Push(fn.module.image.Module); err != nil {
			return nil, err
		}
		defer rt.Pop()
		return invokeUserFunc(uf, args, kwargs, rt)
	case *methodValue:
		return callMethod(fn, args, kwargs, rt)
	default:
		return nil, ErrNotCallable
	}
}

func callMethod(m *methodValue, args []interface{}, kwargs map[string]interface{}, rt *Runtime) (interface{}, error) {
	switch recv := m.recv.(type) {
	case *ormVariable:
		switch m.name {
		case "get":
			return recv.get()
		case "set":
			if len(args) == 0 {
				return nil, ErrMalformedArgs
			}
			return encoding.Null{}, recv.set(args[0])
		}
	case *ormHash:
		switch m.name {
		case "get":
			if len(args) == 0 {
				return nil, ErrMalformedArgs
			}
			return recv.get(args[0])
		case "set":
			if len(args) < 2 {
				return nil, ErrMalformedArgs
			}
			return encoding.Null{}, recv.set(args[0], args[1])
		}
	case *importingObject:
		if m.name == "contract" {
			if len(args) == 0 {
				return nil, ErrMalformedArgs
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, ErrMalformedArgs
			}
			img, err := recv.rt.Importer(name)
			if err != nil {
				return nil, err
			}
			subEnv, err := ExecModule(img, recv.rt)
			if err != nil {
				return nil, err
			}
			return &moduleRef{image: img, env: subEnv}, nil
		}
	}
	return nil, ErrUnknownName
}

func evalCompare(n *Node, e *env, rt *Runtime) (interface{}, error) {
	left, err := evalExpr(n.Left, e, rt)
	if err != nil {
		return nil, err
	}
	for i, op := range n.Ops {
		right, err := evalExpr(n.Comparators[i], e, rt)
		if err != nil {
			return nil, err
		}
		ok, err := compareOne(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compareOne(op string, a, b interface{}) (bool, error) {
	if op == "in" || op == "not in" {
		found := containsValue(b, a)
		if op == "not in" {
			return !found, nil
		}
		return found, nil
	}
	if ad, ok := a.(encoding.Decimal); ok {
		bd, ok := b.(encoding.Decimal)
		if !ok {
			return false, ErrMalformedArgs
		}
		c := ad.Cmp(bd)
		return cmpSatisfies(op, c), nil
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return false, ErrMalformedArgs
		}
		switch op {
		case "==":
			return as == bs, nil
		case "!=":
			return as != bs, nil
		case "<":
			return as < bs, nil
		case "<=":
			return as <= bs, nil
		case ">":
			return as > bs, nil
		case ">=":
			return as >= bs, nil
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return false, ErrMalformedArgs
		}
		switch op {
		case "==":
			return ab == bb, nil
		case "!=":
			return ab != bb, nil
		}
	}
	switch op {
	case "==":
		return encoding.IsNull(a) && encoding.IsNull(b), nil
	case "!=":
		return !(encoding.IsNull(a) && encoding.IsNull(b)), nil
	}
	return false, ErrMalformedArgs
}

func cmpSatisfies(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func containsValue(container, item interface{}) bool {
	switch c := container.(type) {
	case encoding.List:
		for _, v := range c {
			if eq, _ := compareOne("==", v, item); eq {
				return true
			}
		}
	case string:
		s, ok := item.(string)
		return ok && len(s) > 0 && contains(c, s)
	case encoding.Map:
		k, ok := item.(string)
		if !ok {
			return false
		}
		_, exists := c[k]
		return exists
	}
	return false
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func evalListComp(n *Node, e *env, rt *Runtime) (interface{}, error) {
	out := encoding.List{}
	var walk func(genIdx int, scope *env) error
	walk = func(genIdx int, scope *env) error {
		if genIdx == len(n.Generators) {
			v, err := evalExpr(n.Elt, scope, rt)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		}
		g := n.Generators[genIdx]
		iterVal, err := evalExpr(g.Iter, scope, rt)
		if err != nil {
			return err
		}
		items, err := toIterable(iterVal)
		if err != nil {
			return err
		}
		for _, item := range items {
			inner := newEnv(scope)
			inner.setLocal(g.Target.Id, item)
			ok := true
			for _, cond := range g.IfClauses {
				cv, err := evalExpr(cond, inner, rt)
				if err != nil {
					return err
				}
				if !truthy(cv) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			if err := walk(genIdx+1, inner); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, e); err != nil {
		return nil, err
	}
	return out, nil
}

func negate(v interface{}) (interface{}, error) {
	if d, ok := v.(encoding.Decimal); ok {
		return d.Neg(), nil
	}
	return nil, ErrMalformedArgs
}

func binOp(op string, left, right interface{}) (interface{}, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
			return nil, ErrMalformedArgs
		}
		if ll, ok := left.(encoding.List); ok {
			if rl, ok := right.(encoding.List); ok {
				out := make(encoding.List, 0, len(ll)+len(rl))
				out = append(out, ll...)
				out = append(out, rl...)
				return out, nil
			}
			return nil, ErrMalformedArgs
		}
	}
	ld, ok := left.(encoding.Decimal)
	if !ok {
		return nil, ErrMalformedArgs
	}
	rd, ok := right.(encoding.Decimal)
	if !ok {
		return nil, ErrMalformedArgs
	}
	switch op {
	case "+":
		return ld.Add(rd), nil
	case "-":
		return ld.Sub(rd), nil
	case "*":
		return ld.Mul(rd), nil
	case "/":
		return safeDiv(ld, rd)
	case "//":
		q, err := safeDiv(ld, rd)
		if err != nil {
			return nil, err
		}
		return encoding.NewDecimal(q.(encoding.Decimal).Unscaled, 0), nil
	case "%":
		return ld.Mod(rd), nil
	case "**":
		return power(ld, rd)
	}
	return nil, ErrMalformedArgs
}

func safeDiv(a, b encoding.Decimal) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == encoding.ErrDivideByZero {
				err = encoding.ErrDivideByZero
				return
			}
			panic(r)
		}
	}()
	return a.Div(b, a.Scale+b.Scale+1), nil
}

// power computes base**exp for a non-negative integer exponent. A negative
// or fractional exponent has no exact representation in the fixed-point
// Decimal type, so it is rejected rather than silently treated as a no-op.
func power(base, exp encoding.Decimal) (encoding.Decimal, error) {
	if exp.Scale != 0 || exp.Sign() < 0 {
		return encoding.Decimal{}, ErrUnsupportedExponent
	}
	result := encoding.DecimalFromInt64(1)
	n := exp.Unscaled.Int64()
	for i := int64(0); i < n; i++ {
		result = result.Mul(base)
	}
	return result, nil
}

func subscriptGet(obj, idx interface{}) (interface{}, error) {
	switch c := obj.(type) {
	case *ormHash:
		return c.get(idx)
	case encoding.List:
		i := intOf(idx)
		if i < 0 || i >= len(c) {
			return nil, ErrMalformedArgs
		}
		return c[i], nil
	case encoding.Map:
		k, ok := idx.(string)
		if !ok {
			return nil, ErrMalformedArgs
		}
		v, ok := c[k]
		if !ok {
			return encoding.Null{}, nil
		}
		return v, nil
	case string:
		i := intOf(idx)
		if i < 0 || i >= len(c) {
			return nil, ErrMalformedArgs
		}
		return string(c[i]), nil
	default:
		return nil, ErrMalformedArgs
	}
}

func subscriptSet(obj, idx, value interface{}) error {
	switch c := obj.(type) {
	case *ormHash:
		return c.set(idx, value)
	case encoding.Map:
		k, ok := idx.(string)
		if !ok {
			return ErrMalformedArgs
		}
		c[k] = value
		return nil
	case encoding.List:
		i := intOf(idx)
		if i < 0 || i >= len(c) {
			return ErrMalformedArgs
		}
		c[i] = value
		return nil
	default:
		return ErrMalformedArgs
	}
}
