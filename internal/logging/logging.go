// Package logging provides the module-scoped structured logger used across
// the indexer and coordinator. Every component obtains its own named logger
// so log lines can be filtered by subsystem without parsing messages.
package logging

import (
	"os"

	log15 "github.com/inconshreveable/log15"
)

// Module names. New components require a registration here; this mirrors
// the closed-enumeration approach used for decoders and penalties.
const (
	Indexer     = "indexer"
	Reorg       = "reorg"
	Decoder     = "decoder"
	Store       = "store"
	RPC         = "rpc"
	Telemetry   = "telemetry"
	Reputation  = "reputation"
	Distributor = "distributor"
	Facade      = "facade"
	Streaming   = "streaming"
	Config      = "config"
)

// Logger is the structured, key-value logger every component depends on.
type Logger interface {
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs at the highest severity and terminates the process. Reserved
	// for Fatal-class errors per the error taxonomy (database corruption,
	// missing required config, invalid migration state).
	Crit(msg string, ctx ...interface{})
}

type moduleLogger struct {
	log15.Logger
}

func (m *moduleLogger) Crit(msg string, ctx ...interface{}) {
	m.Logger.Crit(msg, ctx...)
	os.Exit(1)
}

var root = log15.New()

// SetJSON switches the root handler to JSON output, used in production
// deployments so logs can be shipped to a collector.
func SetJSON(level log15.Lvl) {
	root.SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(os.Stderr, log15.JsonFormat())))
}

// SetTerminal switches the root handler to a human-readable terminal format,
// the default for local development.
func SetTerminal(level log15.Lvl) {
	root.SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}

// NewModuleLogger returns a logger tagged with the given module name.
func NewModuleLogger(module string) Logger {
	return &moduleLogger{root.New("module", module)}
}

// ParseLevel maps a CLI/config level string to a log15 level, defaulting to
// Info on an unrecognized value.
func ParseLevel(s string) log15.Lvl {
	lvl, err := log15.LvlFromString(s)
	if err != nil {
		return log15.LvlInfo
	}
	return lvl
}

func init() {
	SetTerminal(log15.LvlInfo)
}
