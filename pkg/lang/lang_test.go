package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/encoding"
)

const currencySource = `
balances = Hash()

@construct
def seed():
    balances['alice'] = 1000
    balances['bob'] = 0

@export
def transfer(amount, to):
    sender = ctx.caller
    assert balances[sender] >= amount, "insufficient balance"
    balances[sender] -= amount
    balances[to] += amount
    return balances[to]

def helper():
    pass
`

type memStore struct {
	data map[string]interface{}
}

func newMemStore() *memStore { return &memStore{data: map[string]interface{}{}} }

func (s *memStore) Get(key string) (interface{}, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *memStore) Set(key string, value interface{}) error {
	s.data[key] = value
	return nil
}

func compileCurrency(t *testing.T) *Image {
	t.Helper()
	cfg := params.Default()
	img, err := Compile(currencySource, cfg, "currency", nil)
	require.NoError(t, err)
	return img
}

func TestCompileRewriteIsDeterministic(t *testing.T) {
	cfg := params.Default()
	imgA, err := Compile(currencySource, cfg, "currency", nil)
	require.NoError(t, err)
	imgB, err := Compile(currencySource, cfg, "currency", nil)
	require.NoError(t, err)

	bytesA, err := imgA.Marshal()
	require.NoError(t, err)
	bytesB, err := imgB.Marshal()
	require.NoError(t, err)
	assert.Equal(t, bytesA, bytesB)
}

func TestCompilePrivateHelperIsMangled(t *testing.T) {
	img := compileCurrency(t)
	var sawMangled, sawExported bool
	for _, stmt := range img.Tree.Body {
		if stmt.Kind != KFunctionDef {
			continue
		}
		if stmt.Name == "__helper" {
			sawMangled = true
		}
		if stmt.Name == "transfer" {
			sawExported = true
		}
	}
	assert.True(t, sawMangled, "private helper should be mangled with the private-method prefix")
	assert.True(t, sawExported, "exported function name should survive rewrite unchanged")
	assert.Equal(t, []string{"transfer"}, img.Exported)
	assert.Equal(t, params.Default().ConstructFuncName, img.ConstructName)
}

func TestLintRejectsEmptyModule(t *testing.T) {
	cfg := params.Default()
	mod, err := Parse("import nowhere\n")
	require.NoError(t, err)
	checker := stubChecker{known: map[string]bool{"nowhere": true}}
	violations := Lint(mod, cfg, checker)
	require.Len(t, violations, 1)
	assert.Equal(t, "S13", violations[0].Code)
}

func TestLintLeavesUndecoratedHelperAlone(t *testing.T) {
	cfg := params.Default()
	mod, err := Parse(currencySource)
	require.NoError(t, err)
	violations := Lint(mod, cfg, nil)
	assert.Empty(t, violations)
}

func TestLintRejectsUnknownImport(t *testing.T) {
	cfg := params.Default()
	mod, err := Parse("import ghost\n\n@export\ndef f():\n    pass\n")
	require.NoError(t, err)
	violations := Lint(mod, cfg, stubChecker{known: map[string]bool{}})
	require.Len(t, violations, 1)
	assert.Equal(t, "S5", violations[0].Code)
}

type stubChecker struct{ known map[string]bool }

func (s stubChecker) IsContract(name string) bool { return s.known[name] }

func TestRuntimeExecutesTransfer(t *testing.T) {
	img := compileCurrency(t)
	store := newMemStore()
	cfg := params.Default()
	rt := &Runtime{
		Store: store,
		Cfg:   cfg,
		Importer: func(name string) (*Image, error) {
			return nil, ErrContractNotFound
		},
	}

	_, err := CallByName(img, img.ConstructName, nil, nil, rt)
	require.NoError(t, err)

	rt.CallStack = []string{"alice"}
	result, err := CallByName(img, "transfer", []interface{}{encoding.DecimalFromInt64(100), "bob"}, nil, rt)
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(100), result)

	bobBalance, err := store.Get(cfg.MakeSubKey("currency", "balances", "bob"))
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(100), bobBalance)

	aliceBalance, err := store.Get(cfg.MakeSubKey("currency", "balances", "alice"))
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(900), aliceBalance)
}

const infiniteLoopSource = `
@export
def spin():
    x = 0
    while True:
        x = x + 1
`

// budgetTracer is a minimal lang.Tracer for tests: it fails once charged
// past limit, mirroring sandbox.Meter without importing pkg/sandbox (which
// itself depends on pkg/lang).
type budgetTracer struct {
	limit, used uint64
}

func (b *budgetTracer) Charge(n uint64) error {
	b.used += n
	if b.used > b.limit {
		return errOutOfBudget
	}
	return nil
}

var errOutOfBudget = assertErr("lang test: tracer budget exhausted")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestComputeBoundLoopIsBoundedByTracerEvenWithoutCacheIO(t *testing.T) {
	cfg := params.Default()
	img, err := Compile(infiniteLoopSource, cfg, "looper", nil)
	require.NoError(t, err)

	rt := &Runtime{
		Store:    newMemStore(),
		Cfg:      cfg,
		Importer: func(name string) (*Image, error) { return nil, ErrContractNotFound },
		Tracer:   &budgetTracer{limit: 1000},
	}
	rt.CallStack = []string{"alice"}
	_, err = CallByName(img, "spin", nil, nil, rt)
	require.ErrorIs(t, err, errOutOfBudget)
}

func TestPowerRejectsNegativeAndFractionalExponents(t *testing.T) {
	two := encoding.DecimalFromInt64(2)
	neg := encoding.DecimalFromInt64(-1)
	_, err := power(two, neg)
	assert.ErrorIs(t, err, ErrUnsupportedExponent)

	half, err := encoding.ParseDecimal("0.5", cfgPrecision())
	require.NoError(t, err)
	_, err = power(two, half)
	assert.ErrorIs(t, err, ErrUnsupportedExponent)

	three := encoding.DecimalFromInt64(3)
	result, err := power(two, three)
	require.NoError(t, err)
	assert.Equal(t, encoding.DecimalFromInt64(8), result)
}

func cfgPrecision() int32 { return params.Default().DecimalPrecision }

const dictIterSource = `
@export
def concat_keys(d):
    out = ""
    for k in d:
        out = out + k
    return out
`

const memoryHogSource = `
@export
def grow():
    out = ""
    i = 0
    while i < 10000:
        out = out + "xxxxxxxxxx"
        i = i + 1
    return out
`

func TestMemoryLimitStopsUnboundedGrowth(t *testing.T) {
	cfg := params.Default()
	cfg.MemoryLimit = 1024
	img, err := Compile(memoryHogSource, cfg, "hog", nil)
	require.NoError(t, err)

	rt := &Runtime{
		Store:    newMemStore(),
		Cfg:      cfg,
		Importer: func(name string) (*Image, error) { return nil, ErrContractNotFound },
	}
	rt.CallStack = []string{"alice"}
	_, err = CallByName(img, "grow", nil, nil, rt)
	require.ErrorIs(t, err, ErrMemoryLimit)
}

func TestForLoopOverMapIteratesKeysInSortedOrder(t *testing.T) {
	cfg := params.Default()
	img, err := Compile(dictIterSource, cfg, "iter", nil)
	require.NoError(t, err)

	rt := &Runtime{
		Store:    newMemStore(),
		Cfg:      cfg,
		Importer: func(name string) (*Image, error) { return nil, ErrContractNotFound },
	}
	rt.CallStack = []string{"alice"}

	d := encoding.Map{"zebra": "1", "apple": "2", "mango": "3"}
	for i := 0; i < 5; i++ {
		result, err := CallByName(img, "concat_keys", []interface{}{d}, nil, rt)
		require.NoError(t, err)
		assert.Equal(t, "applemangozebra", result)
	}
}

func TestRuntimeRevertsOnAssertFailure(t *testing.T) {
	img := compileCurrency(t)
	store := newMemStore()
	cfg := params.Default()
	rt := &Runtime{
		Store:    store,
		Cfg:      cfg,
		Importer: func(name string) (*Image, error) { return nil, ErrContractNotFound },
	}
	_, err := CallByName(img, img.ConstructName, nil, nil, rt)
	require.NoError(t, err)

	rt.CallStack = []string{"bob"}
	_, err = CallByName(img, "transfer", []interface{}{encoding.DecimalFromInt64(5000), "alice"}, nil, rt)
	require.Error(t, err)
	var revertErr *RevertError
	require.ErrorAs(t, err, &revertErr)
	assert.Equal(t, "insufficient balance", revertErr.Message)
}
