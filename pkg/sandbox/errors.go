package sandbox

import "errors"

// ErrInsufficientStamps is raised by step 2 of the metering protocol when
// the sender's balance cannot cover the requested stamp budget.
var ErrInsufficientStamps = errors.New("sandbox: insufficient stamps")

// ErrOutOfStamps is raised by the Meter once its accumulated charges (cache
// traffic and interpreter steps) exceed the budget installed for a dispatch.
var ErrOutOfStamps = errors.New("sandbox: out of stamps")
