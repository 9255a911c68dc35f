package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSplitStatementsSkipsBlanks(t *testing.T) {
	got := SplitStatements("CREATE TABLE a (id INT);\n\n ; CREATE INDEX i ON a (id);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[1], "CREATE INDEX") {
		t.Fatalf("unexpected second statement: %q", got[1])
	}
}

func TestEmbeddedMigrationsAvoidDollarQuoting(t *testing.T) {
	files, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("expected embedded migrations, err=%v", err)
	}
	for _, f := range files {
		raw, err := migrationFS.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if strings.Contains(string(raw), "$$") {
			t.Fatalf("%s uses dollar quoting, which the statement splitter cannot handle", f)
		}
	}
}
