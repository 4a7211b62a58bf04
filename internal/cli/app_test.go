package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/scimap/internal/cache"
	"github.com/ppiankov/scimap/internal/config"
	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/worker"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	dir := t.TempDir()
	c.Output.Dir = filepath.Join(dir, "data")
	c.Cache.Dir = filepath.Join(dir, "cache")
	return &c
}

func TestNewApp_OpensPersistentCaches(t *testing.T) {
	c := testConfig(t)

	a, err := newApp(c)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, err := os.Stat(c.Cache.SQLitePath()); err != nil {
		t.Errorf("expected lookup database at %s: %v", c.Cache.SQLitePath(), err)
	}
	if a.robots == nil {
		t.Error("robots checker should be wired when respect_robots is on")
	}
	if a.driver(nil, nil) == nil {
		t.Error("driver should be constructed")
	}
	if got := a.pacer.Delay(worker.ServiceCompletion); got != c.Pipeline.LLMDelay {
		t.Errorf("completion delay = %v, want %v", got, c.Pipeline.LLMDelay)
	}
}

func TestNewApp_DisabledCache(t *testing.T) {
	c := testConfig(t)
	c.Cache.Disabled = true
	c.Upstream.Wikipedia.RespectRobots = false

	a, err := newApp(c)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, ok := a.lookups.(cache.Nop); !ok {
		t.Errorf("expected Nop lookup cache, got %T", a.lookups)
	}
	if a.robots != nil {
		t.Error("robots checker should be skipped")
	}
	if _, err := os.Stat(c.Cache.SQLitePath()); !os.IsNotExist(err) {
		t.Errorf("no database should be created, stat err = %v", err)
	}
}

func TestNewApp_UnknownProvider(t *testing.T) {
	c := testConfig(t)
	c.LLM.Provider = "carrier-pigeon"

	if _, err := newApp(c); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLifespan(t *testing.T) {
	c := model.Candidate{BirthYear: model.IntPtr(1707), Nationality: "Switzerland"}
	if got := lifespan(c); got != "1707-?, Switzerland" {
		t.Errorf("lifespan = %q", got)
	}
}
