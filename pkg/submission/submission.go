// Package submission implements the reserved submission contract of
// spec.md §6: the sole entry point new contract code enters the store
// through. Unlike a user contract it is not itself compiled from the
// contracting dialect — it is the native operation a "submission contract"
// in the original deployment amounted to once you follow its call chain
// down to ContractDriver.set_contract.
package submission

import (
	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/contractstore"
)

// ReservedName is the contract name spec.md §6 reserves for submission.
const ReservedName = "submission"

// Submission is one contract deployment request.
type Submission struct {
	Name   string
	Code   string
	Signer string
}

// SubmitContract runs spec.md §6's submit_contract(name, code): it invokes
// ContractDriver.set_contract(name, code, author=signer, type='user',
// overwrite=false), which lints and compiles synchronously. A lint failure
// is rejected atomically — contractstore.Driver.SetContract never writes
// any metadata field until Compile has already succeeded.
func SubmitContract(store *contractstore.Driver, name, code, signer string) error {
	return store.SetContract(name, code, signer, params.ContractTypeUser, false)
}

// BagResult reports how far SubmitBag got before stopping.
type BagResult struct {
	Submitted []string // names committed, in order
	Failed    string   // name of the submission that failed, if any
	Err       error
}

// SubmitBag submits every entry of subs in order, stopping at the first
// failure.
func SubmitBag(store *contractstore.Driver, subs []Submission) BagResult {
	submitted := make([]string, 0, len(subs))
	for _, s := range subs {
		if err := SubmitContract(store, s.Name, s.Code, s.Signer); err != nil {
			return BagResult{Submitted: submitted, Failed: s.Name, Err: err}
		}
		submitted = append(submitted, s.Name)
	}
	return BagResult{Submitted: submitted}
}
