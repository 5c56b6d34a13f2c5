package logger

import (
	"os"
	"sync/atomic"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestEntryWithEnvChained(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithComponent("test").WithError(os.ErrNotExist).WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set on chained entry: %v", entry.Entry.Data)
	}
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field lost in chain: %v", entry.Entry.Data)
	}
}

func TestWarnCounters(t *testing.T) {
	before := atomic.LoadInt64(&warnsReader)
	recordWarn("csv_reader")
	if got := atomic.LoadInt64(&warnsReader); got != before+1 {
		t.Fatalf("reader warn counter = %d, want %d", got, before+1)
	}

	before = atomic.LoadInt64(&warnsPipeline)
	recordWarn("level_flows")
	if got := atomic.LoadInt64(&warnsPipeline); got != before+1 {
		t.Fatalf("pipeline warn counter = %d, want %d", got, before+1)
	}
}
