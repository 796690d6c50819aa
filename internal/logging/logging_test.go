package logging

import (
	"testing"

	log15 "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
)

func TestParseLevelRecognizesValidLevels(t *testing.T) {
	assert.Equal(t, log15.LvlDebug, ParseLevel("debug"))
	assert.Equal(t, log15.LvlWarn, ParseLevel("warn"))
	assert.Equal(t, log15.LvlCrit, ParseLevel("crit"))
}

func TestParseLevelDefaultsToInfoOnUnrecognizedValue(t *testing.T) {
	assert.Equal(t, log15.LvlInfo, ParseLevel("not-a-level"))
}

func TestNewModuleLoggerDoesNotPanic(t *testing.T) {
	l := NewModuleLogger(Indexer)
	assert.NotNil(t, l)
	l.Info("hello", "key", "value")
	l.Debug("debug line")
	l.Warn("warn line")
	l.Error("error line")
}
