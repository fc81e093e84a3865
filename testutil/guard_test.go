package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		path string
		want bool
	}{
		{"driver sqlite", DriverImportForbidden, "modernc.org/sqlite", true},
		{"driver pgx", DriverImportForbidden, "github.com/jackc/pgx/v5/stdlib", true},
		{"driver aws", DriverImportForbidden, "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"driver stdlib", DriverImportForbidden, "database/sql", false},
		{"domain suffix", DomainImportForbidden, "termcore/pkg/domain", true},
		{"domain other", DomainImportForbidden, "termcore/pkg/domainx", false},
		{"internal", InternalImportForbidden, "termcore/internal/core", true},
		{"not internal", InternalImportForbidden, "termcore/pkg/domain", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pred(tc.path); got != tc.want {
				t.Fatalf("predicate(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import (
	"fmt"

	_ "modernc.org/sqlite"
)

var _ = fmt.Sprintf
`
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	testSrc := `package sample

import _ "modernc.org/sqlite"
`
	if err := os.WriteFile(filepath.Join(dir, "sample_test.go"), []byte(testSrc), 0o600); err != nil {
		t.Fatalf("write sample test: %v", err)
	}

	viols, err := directImportViolations(dir, DriverImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("expected one violation, got %v", viols)
	}
	if viols[0] != "modernc.org/sqlite (in sample.go)" {
		t.Fatalf("unexpected violation %q", viols[0])
	}
}

func TestTransitiveDependencyViolations(t *testing.T) {
	restore := goListDeps
	goListDeps = func(pattern string) ([]byte, error) {
		return []byte("fmt\ntermcore/pkg/domain\nmodernc.org/sqlite\n"), nil
	}
	defer func() { goListDeps = restore }()

	viols, _, err := transitiveDependencyViolations("./...", DriverImportForbidden)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(viols) != 1 || viols[0] != "modernc.org/sqlite" {
		t.Fatalf("unexpected violations %v", viols)
	}
}
