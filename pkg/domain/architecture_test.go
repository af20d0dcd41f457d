package domain

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestDomainImportsOnlyStandardLibrary keeps the domain layer free of module
// internals and third-party dependencies so every backend and stage can share it.
func TestDomainImportsOnlyStandardLibrary(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "mortgageintake/pkg/domain")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected one package, got %d", len(pkgs))
	}
	var violations []string
	for importPath := range pkgs[0].Imports {
		first := strings.SplitN(importPath, "/", 2)[0]
		if strings.Contains(first, ".") || strings.HasPrefix(importPath, "mortgageintake/") {
			violations = append(violations, importPath)
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("domain package must only import the standard library: %s", v)
	}
}
