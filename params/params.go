// Package params holds the deployment-wide configuration constants for the
// execution core: key-space delimiters, metadata field names, decorator
// names, metering rates, and CRCache fan-out. Every other package takes a
// *Config rather than reading package-level constants, so a deployment can
// override any of these without forking the code.
package params

import "time"

// StoreKind selects the backing KV driver.
type StoreKind int

const (
	StoreMemory StoreKind = iota
	StoreRedis
)

// Config enumerates every configurable row in the execution core.
type Config struct {
	// backing store selection
	StoreKind     StoreKind
	StoreEndpoint string
	StoreDB       int

	// key-space structure
	IndexSeparator string // delimits contract from field, e.g. "."
	SubDelimiter   string // delimits field from hash subkey, e.g. ":"

	// contract metadata field names
	CodeKey     string
	AuthorKey   string
	TypeKey     string
	CompiledKey string

	// sanitizer/compiler
	ExportDecorator    string
	ConstructDecorator string
	PrivateMethodPrefix string
	ConstructFuncName   string
	DecimalPrecision    int32

	// per-call resource caps
	MemoryLimit    int
	RecursionLimit int

	// SubprocessTimeout bounds how long the isolated-subprocess sandbox
	// waits for a worker before killing it; zero means use the package
	// default. A defense-in-depth backstop alongside stamp metering, not a
	// substitute for it.
	SubprocessTimeout time.Duration

	// metering
	StampToTau       uint64
	ReadCostPerByte  uint64
	OpStampCost      uint64 // stamps charged per statement/expression the interpreter evaluates
	DefaultStamps    uint64
	CurrencyContract string
	BalancesHash     string

	// CRCache fan-out
	NumSubBlockBuilders int
	MaxSubBlockQueue    int
}

// Default returns the configuration used by the reference deployment and by
// tests; every constant matches the original Lamden contracting/seneca
// deployment defaults.
func Default() *Config {
	return &Config{
		StoreKind:     StoreMemory,
		StoreEndpoint: "localhost:6379",
		StoreDB:       0,

		IndexSeparator: ".",
		SubDelimiter:   ":",

		CodeKey:     "__code__",
		AuthorKey:   "__author__",
		TypeKey:     "__type__",
		CompiledKey: "__compiled__",

		ExportDecorator:     "export",
		ConstructDecorator:  "construct",
		PrivateMethodPrefix: "__",
		ConstructFuncName:   "____",
		DecimalPrecision:    64,

		MemoryLimit:    32768,
		RecursionLimit: 1024,

		SubprocessTimeout: 30 * time.Second,

		StampToTau:       5000,
		ReadCostPerByte:  3,
		OpStampCost:      1,
		DefaultStamps:    1000000,
		CurrencyContract: "currency",
		BalancesHash:     "balances",

		NumSubBlockBuilders: 1,
		MaxSubBlockQueue:    8,
	}
}

// MakeKey builds the compound key "<contract><sep><field>".
func (c *Config) MakeKey(contract, field string) string {
	return contract + c.IndexSeparator + field
}

// MakeSubKey builds the compound hash key "<contract><sep><field><sub><subkey>".
func (c *Config) MakeSubKey(contract, field, subkey string) string {
	return c.MakeKey(contract, field) + c.SubDelimiter + subkey
}
