// Package clog provides the structured logger shared by every package in
// this repository. It follows the package-global-logger pattern: call Init
// once at process start, then log through Logger (or the With* helpers)
// everywhere else.
package clog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. It is safe to use before
// Init is called: package initialization sets it to a timestamped console
// writer on stderr with no level filter of its own.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Config controls how Init sets up the package-wide Logger.
type Config struct {
	Level      string // "debug", "info", "warn", "error"; default "info"
	JSONOutput bool
	Output     io.Writer // default os.Stderr
}

// Init (re)configures the package-wide Logger from cfg.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		if cfg.Level == "" {
			level = zerolog.InfoLevel
		} else {
			return err
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// WithComponent returns a logger tagged with the owning package/component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithContract returns a logger tagged with the contract and calling
// transaction's sender, for use while dispatching one contract call.
func WithContract(contract, sender string) zerolog.Logger {
	return Logger.With().Str("contract", contract).Str("sender", sender).Logger()
}

// WithSession returns a logger tagged with a CRCache sub-block session id.
func WithSession(session string) zerolog.Logger {
	return Logger.With().Str("session", session).Logger()
}
