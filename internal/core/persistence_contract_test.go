package core

import (
	"go/types"
	"path/filepath"
	"runtime"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestPersistentStoreImplementationsHardening ensures only the persistence
// packages provide concrete implementations of domain.PersistentStore, so a new
// backend cannot appear elsewhere without an explicit test update.
func TestPersistentStoreImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "mortgageintake/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var persistentStore, mutator *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "mortgageintake/pkg/domain" || p.Types == nil {
			continue
		}
		persistentStore = lookupInterface(t, p.Types, "PersistentStore")
		mutator = lookupInterface(t, p.Types, "Mutator")
	}
	if persistentStore == nil || mutator == nil {
		t.Fatalf("failed to resolve domain interfaces")
	}
	allowedStores := map[string]struct{}{
		"mortgageintake/internal/infra/persistence/memory":   {},
		"mortgageintake/internal/infra/persistence/sqlite":   {},
		"mortgageintake/internal/infra/persistence/postgres": {},
	}
	allowedMutators := map[string]struct{}{
		"mortgageintake/internal/core": {},
	}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			st, ok := named.Underlying().(*types.Struct)
			if !ok || st.NumFields() == 0 && named.NumMethods() == 0 {
				continue
			}
			ptr := types.NewPointer(named)
			if types.Implements(ptr, persistentStore) {
				if _, ok := allowedStores[p.PkgPath]; !ok {
					unexpected = append(unexpected, "store "+p.PkgPath+"."+name)
				}
			}
			// embedding wrappers in tests decorate the store-backed mutator
			if types.Implements(ptr, mutator) && st.NumFields() > 0 && !st.Field(0).Embedded() {
				if _, ok := allowedMutators[p.PkgPath]; !ok {
					unexpected = append(unexpected, "mutator "+p.PkgPath+"."+name)
				}
			}
		}
	}
	if len(unexpected) > 0 {
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("unexpected implementations (update the allowed lists intentionally if adding a new backend):\nfile=%s:%d\n%s", filepath.Base(file), line, unexpected)
	}
}

func lookupInterface(t *testing.T, pkg *types.Package, name string) *types.Interface {
	t.Helper()
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		t.Fatalf("domain.%s not found", name)
	}
	iface, ok := obj.Type().Underlying().(*types.Interface)
	if !ok {
		t.Fatalf("domain.%s is not an interface", name)
	}
	return iface
}
