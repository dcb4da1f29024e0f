// Package lang implements the Sanitizer/Compiler: a lexer and
// recursive-descent parser for the restricted contract dialect, a
// fail-closed lint pass over an allow-listed node set, a stage-2 rewrite
// pass, and a small tree-walking evaluator for the rewritten image.
//
// No parser-combinator or grammar library in the retrieval pack could be
// grounded against a buildable, exercised API (alecthomas/participle/v2
// appears only as an indirect dependency of one pack repo, never actually
// imported by any retrieved file), so this package is hand-written against
// the standard library only — see DESIGN.md for the full justification.
package lang

// Kind tags every AST node produced by the parser. The set of kinds that
// may legally appear in a parsed tree is exactly the allow-listed syntax of
// spec.md §4.5 stage 1; the parser itself only ever produces these kinds,
// so lint's node-kind check (S1) can never fire for a tree this parser
// built — it exists to guard ASTs built for golden/fuzz tests directly.
type Kind int

const (
	KModule Kind = iota
	KImport
	KFunctionDef
	KArguments
	KArg
	KAssert
	KAssign
	KAugAssign
	KAttribute
	KBinOp
	KBoolOp
	KCall
	KCompare
	KComprehension
	KDict
	KExprStmt
	KFor
	KIf
	KKeyword
	KList
	KListComp
	KName
	KNameConstant
	KNum
	KPass
	KReturn
	KSet
	KSlice
	KStarred
	KStr
	KSubscript
	KTuple
	KUnaryOp
	KWhile
)

// Node is a single, deliberately untyped AST node: every grammar production
// in this restricted dialect is small enough that one flexible struct
// (rather than one Go type per production) keeps the parser and lint walker
// short, at the cost of fields unused by any given Kind sitting idle.
type Node struct {
	Kind Kind
	Line int

	// function/module
	Name       string  // FunctionDef name, Import module name
	Args       *Node   // FunctionDef arguments (KArguments)
	Body       []*Node // Module/FunctionDef/If/For/While/Comprehension body
	Orelse     []*Node // If/For/While else clause
	Decorators []*Node // FunctionDef decorator list (KName nodes)

	// KArguments / KArg / KKeyword
	Params []*Node // ordered KArg children
	Arg    string  // KArg parameter name, KKeyword keyword name

	// assignment
	Targets []*Node // KAssign targets (len>1 triggers S12 for ORM decls)
	Target  *Node   // KAugAssign/KFor target
	Value   *Node   // KAssign/KAugAssign/KReturn/KExprStmt/KKeyword value
	Op      string  // KAugAssign/KBinOp/KUnaryOp operator symbol

	// calls
	Func     *Node   // KCall callee expression
	CallArgs []*Node // KCall positional args
	Keywords []*Node // KCall keyword args (KKeyword)

	// compare / boolop
	Left        *Node   // KBinOp/KCompare first operand
	Ops         []string
	Comparators []*Node // KCompare / KBoolOp operands after the first
	Right       *Node   // KBinOp second operand

	// literals / names
	Id        string // KName identifier
	NumLit    string // KNum raw text, canonical (no leading zeros, no trailing frac zeros)
	StrLit    string // KStr value
	IsTrue    bool   // KNameConstant True/False (IsNone false)
	IsNone    bool   // KNameConstant None

	// containers
	Elts []*Node // KList/KSet/KTuple elements, KDict handled via Keys/Values
	Keys []*Node // KDict keys
	Vals []*Node // KDict values

	// subscript / slice / attribute
	Attr     string // KAttribute field name
	Obj      *Node  // KAttribute/KSubscript base expression
	Index    *Node  // KSubscript plain index
	Slice    *Node  // KSubscript slice (KSlice) or nil
	Lower    *Node  // KSlice
	Upper    *Node  // KSlice
	Step     *Node  // KSlice

	// comprehension
	Elt        *Node // KListComp result expression
	Generators []*Node // KListComp generators (KComprehension)
	Iter       *Node   // KFor/KComprehension iterable
	IfClauses  []*Node // KComprehension filter conditions

	// if/while/assert
	Test *Node // KIf/KWhile/KAssert condition
	Msg  *Node // KAssert message
}
