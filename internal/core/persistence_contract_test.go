package core

import (
	"go/types"
	"testing"

	"termcore/testutil"
)

// Persistent store implementations must stay inside the infra persistence
// packages so drivers never leak into domain or workflow code.
func TestPersistentStoreImplementationsAreConfined(t *testing.T) {
	pkgs := testutil.LoadPackages(t, "termcore/...")

	var iface *types.Interface
	for _, pkg := range pkgs {
		if pkg.PkgPath != "termcore/pkg/domain" || pkg.Types == nil {
			continue
		}
		obj := pkg.Types.Scope().Lookup("PersistentStore")
		if obj == nil {
			continue
		}
		named, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("PersistentStore is not an interface")
		}
		iface = named
		break
	}
	if iface == nil {
		t.Fatalf("domain.PersistentStore not found")
	}

	allowed := map[string]bool{
		"termcore/internal/infra/persistence/memory":   true,
		"termcore/internal/infra/persistence/sqlite":   true,
		"termcore/internal/infra/persistence/postgres": true,
	}
	seen := 0
	for _, pkg := range pkgs {
		if pkg.Types == nil {
			continue
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			obj, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !obj.Exported() || obj.IsAlias() {
				continue
			}
			if _, isIface := obj.Type().Underlying().(*types.Interface); isIface {
				continue
			}
			if !types.Implements(types.NewPointer(obj.Type()), iface) {
				continue
			}
			if !allowed[pkg.PkgPath] {
				t.Errorf("%s.%s implements domain.PersistentStore outside the infra persistence packages", pkg.PkgPath, name)
				continue
			}
			seen++
		}
	}
	if seen < 3 {
		t.Fatalf("expected memory, sqlite, and postgres implementations, found %d", seen)
	}
}
