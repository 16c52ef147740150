package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/monitoring"
)

// migratedTemplate is a fully migrated, checkpointed database copied into
// every test so migrations run once per package.
var migratedTemplate string

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)

	dir, err := os.MkdirTemp("", "platetemp-api-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "template dir: %v\n", err)
		os.Exit(1)
	}
	if err := buildTemplate(filepath.Join(dir, "template.db")); err != nil {
		fmt.Fprintf(os.Stderr, "template db: %v\n", err)
		os.RemoveAll(dir)
		os.Exit(1)
	}
	migratedTemplate = filepath.Join(dir, "template.db")

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func buildTemplate(path string) error {
	database, err := db.Open(path)
	if err != nil {
		return err
	}
	// Fold the WAL into the main file so a plain copy carries the schema.
	if _, err := database.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		database.Close()
		return fmt.Errorf("checkpoint: %w", err)
	}
	return database.Close()
}

// cloneAPITestDB copies the migrated template into the test's temp dir.
func cloneAPITestDB(t *testing.T) string {
	t.Helper()
	if migratedTemplate == "" {
		t.Fatal("template database not built")
	}
	dst := filepath.Join(t.TempDir(), "api.db")
	src, err := os.Open(migratedTemplate)
	if err != nil {
		t.Fatalf("opening template: %v", err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		t.Fatalf("copying template: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("closing test db: %v", err)
	}
	return dst
}
