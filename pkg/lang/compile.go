package lang

import (
	"github.com/quailmother/contracting/params"
)

// Image additionally records which function names are callable from
// outside (Stage 2 strips decorator nodes, so this is the only place that
// information survives) and the constructor's mangled name, if any.
type funcMeta struct {
	Exported      []string
	ConstructName string
}

// Compile runs the full Sanitizer/Compiler pipeline: parse, lint
// (fail-closed), rewrite, and produce a serializable Image. moduleName is
// the contract name the image is compiled under (used for ORM binding
// injection and for recompilation identity).
func Compile(src string, cfg *params.Config, moduleName string, checker ExistenceChecker) (*Image, error) {
	mod, err := Parse(src)
	if err != nil {
		return nil, err
	}

	violations := Lint(mod, cfg, checker)
	if len(violations) > 0 {
		return nil, &LintError{Violations: violations}
	}

	meta := collectFuncMeta(mod, cfg)
	Rewrite(mod, cfg, moduleName)

	return &Image{
		Module:        moduleName,
		Tree:          mod,
		Exported:      meta.Exported,
		ConstructName: meta.ConstructName,
	}, nil
}

func collectFuncMeta(mod *Node, cfg *params.Config) funcMeta {
	var meta funcMeta
	for _, stmt := range mod.Body {
		if stmt.Kind != KFunctionDef {
			continue
		}
		if isConstruct(stmt, cfg) {
			meta.ConstructName = cfg.ConstructFuncName
			continue
		}
		if isExported(stmt, cfg) {
			meta.Exported = append(meta.Exported, stmt.Name)
		}
	}
	return meta
}
