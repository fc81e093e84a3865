package workflow

import (
	"sort"
	"strings"

	"termcore/pkg/domain"
)

// PageFilterSort carries the common paging, filtering, and sorting parameters
// of the find operations. A zero value means "everything, natural order".
type PageFilterSort struct {
	StartIndex int
	MaxResults int
	SortField  string
	Descending bool
	// Filter is matched case-insensitively against record names.
	Filter string
}

func applyToWorklists(in []domain.Worklist, pfs PageFilterSort) ([]domain.Worklist, error) {
	filtered := in[:0:0]
	for _, wl := range in {
		if pfs.Filter != "" && !strings.Contains(strings.ToLower(wl.Name), strings.ToLower(pfs.Filter)) {
			continue
		}
		filtered = append(filtered, wl)
	}
	less, err := worklistLess(pfs.SortField)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if pfs.Descending {
			return less(filtered[j], filtered[i])
		}
		return less(filtered[i], filtered[j])
	})
	return page(filtered, pfs), nil
}

func worklistLess(field string) (func(a, b domain.Worklist) bool, error) {
	switch field {
	case "", "name":
		return func(a, b domain.Worklist) bool { return a.Name < b.Name }, nil
	case "status":
		return func(a, b domain.Worklist) bool { return a.Status < b.Status }, nil
	case "owner":
		return func(a, b domain.Worklist) bool { return a.Owner < b.Owner }, nil
	case "epoch":
		return func(a, b domain.Worklist) bool { return a.Epoch < b.Epoch }, nil
	case "created":
		return func(a, b domain.Worklist) bool { return a.CreatedAt.Before(b.CreatedAt) }, nil
	default:
		return nil, domain.Validationf("unknown worklist sort field %q", field)
	}
}

func applyToChecklists(in []domain.Checklist, pfs PageFilterSort) ([]domain.Checklist, error) {
	filtered := in[:0:0]
	for _, cl := range in {
		if pfs.Filter != "" && !strings.Contains(strings.ToLower(cl.Name), strings.ToLower(pfs.Filter)) {
			continue
		}
		filtered = append(filtered, cl)
	}
	switch pfs.SortField {
	case "", "name":
	case "created":
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt.Before(filtered[j].CreatedAt) })
	default:
		return nil, domain.Validationf("unknown checklist sort field %q", pfs.SortField)
	}
	if pfs.SortField == "" || pfs.SortField == "name" {
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	}
	if pfs.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	return page(filtered, pfs), nil
}

func page[T any](in []T, pfs PageFilterSort) []T {
	start := pfs.StartIndex
	if start < 0 {
		start = 0
	}
	if start >= len(in) {
		return nil
	}
	out := in[start:]
	if pfs.MaxResults > 0 && len(out) > pfs.MaxResults {
		out = out[:pfs.MaxResults]
	}
	return out
}
