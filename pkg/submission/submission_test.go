package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/kv"
)

const pingSource = `
@export
def ping():
    return 1
`

const badSource = "x = 1\n"

func newTestStore(t *testing.T) *contractstore.Driver {
	t.Helper()
	cfg := params.Default()
	c := cache.New(kv.NewMemory(), cfg.ReadCostPerByte)
	store, err := contractstore.New(c, cfg, 8)
	require.NoError(t, err)
	return store
}

func TestSubmitContractDeploys(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, SubmitContract(store, "ping", pingSource, "alice"))
	assert.True(t, store.IsContract("ping"))
}

func TestSubmitContractRejectsLintFailureAtomically(t *testing.T) {
	store := newTestStore(t)
	err := SubmitContract(store, "bad", badSource, "alice")
	require.Error(t, err)
	assert.False(t, store.IsContract("bad"))
}

func TestSubmitBagStopsAtFirstFailure(t *testing.T) {
	store := newTestStore(t)
	result := SubmitBag(store, []Submission{
		{Name: "ping", Code: pingSource, Signer: "alice"},
		{Name: "bad", Code: badSource, Signer: "alice"},
		{Name: "never-attempted", Code: pingSource, Signer: "alice"},
	})
	require.Error(t, result.Err)
	assert.Equal(t, "bad", result.Failed)
	assert.Equal(t, []string{"ping"}, result.Submitted)
	assert.False(t, store.IsContract("never-attempted"))
}
