package contractstore

import "errors"

// ErrContractExists is returned by SetContract when a contract by that name
// is already stored and overwrite was not explicitly requested.
var ErrContractExists = errors.New("contractstore: contract already exists")
