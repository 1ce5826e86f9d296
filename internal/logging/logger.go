// Package logging provides config-driven categorized logging for psl.
// Every category is a named child of one zap logger; disabled categories get
// a no-op logger so call sites never need to check.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot  Category = "boot"  // Startup, config loading
	CategoryStore Category = "store" // Data store, partitions, persistence
	CategoryAtoms Category = "atoms" // Atom managers and snapshot enforcement
	CategoryRules Category = "rules" // Rule templates, ground rule stores, model files
	CategoryTerms Category = "terms" // Term generation and weight updates
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // optional output path in addition to stderr
	Categories map[string]bool // per-category toggles; missing means enabled
}

// Logger is a category-scoped, printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	cfg     Config
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from cfg.
func Initialize(c Config) error {
	var zcfg zap.Config
	if c.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		zcfg.Level = level
	}
	if c.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, c.File)
	}

	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	install(l, c)
	return nil
}

// InitializeWithLogger installs an existing zap logger as the root. The CLI
// uses this to share its logger; tests use it with zaptest observers.
func InitializeWithLogger(l *zap.Logger, c Config) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, c)
}

func install(l *zap.Logger, c Config) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	cfg = c
	loggers = make(map[Category]*Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	root := base
	if !categoryEnabledLocked(category) {
		root = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// WithContext returns a logger that attaches ctx as structured fields.
func (l *Logger) WithContext(ctx map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(ctx)*2)
	for k, v := range ctx {
		kv = append(kv, k, v)
	}
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// Sync flushes the root logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// Convenience functions, one pair per category.

func Boot(format string, args ...interface{})       { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})  { Get(CategoryBoot).Debug(format, args...) }
func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func Atoms(format string, args ...interface{})      { Get(CategoryAtoms).Info(format, args...) }
func AtomsDebug(format string, args ...interface{}) { Get(CategoryAtoms).Debug(format, args...) }
func Rules(format string, args ...interface{})      { Get(CategoryRules).Info(format, args...) }
func RulesDebug(format string, args ...interface{}) { Get(CategoryRules).Debug(format, args...) }
func Terms(format string, args ...interface{})      { Get(CategoryTerms).Info(format, args...) }
func TermsDebug(format string, args ...interface{}) { Get(CategoryTerms).Debug(format, args...) }
