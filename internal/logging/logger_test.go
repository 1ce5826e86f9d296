package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, c Config) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWithLogger(zap.New(core), c)
	t.Cleanup(func() { InitializeWithLogger(zap.NewNop(), Config{}) })
	return logs
}

func TestCategoryLoggerNamesEntries(t *testing.T) {
	logs := observe(t, Config{})

	Get(CategoryAtoms).Info("snapshot built: %d atoms", 2)
	StoreDebug("partition %s loaded", "obs")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "atoms", entries[0].LoggerName)
	assert.Equal(t, "snapshot built: 2 atoms", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "store", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, Config{Categories: map[string]bool{"terms": false, "rules": true}})

	Terms("generated %d terms", 4)
	Rules("loaded %d rules", 1)

	assert.False(t, IsCategoryEnabled(CategoryTerms))
	assert.True(t, IsCategoryEnabled(CategoryRules))
	assert.True(t, IsCategoryEnabled(CategoryStore), "unlisted categories default to enabled")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rules", entries[0].LoggerName)
}

func TestGetCachesLoggers(t *testing.T) {
	observe(t, Config{})
	assert.Same(t, Get(CategoryBoot), Get(CategoryBoot))
}

func TestWithContextAddsFields(t *testing.T) {
	logs := observe(t, Config{})

	Get(CategoryStore).WithContext(map[string]interface{}{"partition": "obs"}).Warn("slow load")

	entries := logs.FilterField(zap.String("partition", "obs")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow load", entries[0].Message)
}

func TestInitializeWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psl.log")
	require.NoError(t, Initialize(Config{Level: "info", Format: "json", File: path}))
	t.Cleanup(func() { InitializeWithLogger(zap.NewNop(), Config{}) })

	Boot("booted")
	BootDebug("hidden at info level")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "booted"))
	assert.False(t, strings.Contains(string(data), "hidden at info level"))
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	err := Initialize(Config{Level: "loud"})
	require.Error(t, err)
}
