package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPipelineImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"mortgageintake/internal/core", true},
		{"mortgageintake/internal/corekit", false},
		{"mortgageintake/internal/places", false},
	}
	for _, c := range cases {
		if got := PipelineImportForbidden(c.in); got != c.want {
			t.Fatalf("PipelineImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbidden(t *testing.T) {
	if !InternalImportForbidden("mortgageintake/internal/archive") {
		t.Fatalf("expected internal path to be forbidden")
	}
	if InternalImportForbidden("mortgageintake/pkg/domain") {
		t.Fatalf("expected pkg path to be allowed")
	}
}

func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"x.go":      "package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}",
		"x_test.go": "package tmp\nimport _ \"mortgageintake/internal/core\"",
		"notes.txt": "ignored",
	})
	AssertNoDirectImports(t, dir, PipelineImportForbidden, "test files are skipped")
}

func TestDirectImportViolations(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"a.go": "package tmp\nimport _ \"mortgageintake/internal/core\"",
		"b.go": "package tmp\nimport \"strings\"\nvar _ = strings.ToUpper",
	})
	viols, err := directImportViolations(dir, PipelineImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "mortgageintake/internal/core (in a.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "absent"), PipelineImportForbidden); err == nil {
		t.Fatalf("expected missing dir error")
	}
	dir := writePackage(t, map[string]string{"bad.go": "package"})
	if _, err := directImportViolations(dir, PipelineImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfDirectViolations(t *testing.T) {
	var rec recordingFatal
	failIfDirectViolations(&rec, "reason", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	failIfDirectViolations(&rec, "adapters stay decoupled", []string{"x (in a.go)"})
	if !strings.Contains(rec.msg, "adapters stay decoupled") || !strings.Contains(rec.msg, "x (in a.go)") {
		t.Fatalf("unexpected message: %s", rec.msg)
	}
}
