package txn

import (
	"fmt"
	"strings"
)

// resolveOrder linearizes operations so that every operation appears after
// all operations it depends on. Dependencies are small named sets rather
// than a general edge list, so a repeated single pass that picks the next
// operation whose dependencies are all already placed is sufficient. Ties
// are broken by insertion order, which keeps execution deterministic and
// audit trails reproducible.
//
// A dangling dependency or a cycle is a caller programming error and is
// reported with the offending operation named.
func resolveOrder(ops []*Operation) ([]*Operation, error) {
	ids := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		ids[op.id] = struct{}{}
	}

	for _, op := range ops {
		for _, dep := range op.dependencies {
			if _, ok := ids[dep]; !ok {
				return nil, fmt.Errorf("operation %q depends on %q: %w", op.id, dep, ErrDanglingDependency)
			}
		}
	}

	ordered := make([]*Operation, 0, len(ops))
	placed := make(map[string]struct{}, len(ops))

	for len(ordered) < len(ops) {
		progressed := false
		for _, op := range ops {
			if _, done := placed[op.id]; done {
				continue
			}
			if !allPlaced(op.dependencies, placed) {
				continue
			}
			ordered = append(ordered, op)
			placed[op.id] = struct{}{}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("operations [%s] cannot be ordered: %w",
				strings.Join(unplacedIDs(ops, placed), ", "), ErrDependencyCycle)
		}
	}

	return ordered, nil
}

func allPlaced(deps []string, placed map[string]struct{}) bool {
	for _, dep := range deps {
		if _, ok := placed[dep]; !ok {
			return false
		}
	}

	return true
}

func unplacedIDs(ops []*Operation, placed map[string]struct{}) []string {
	var ids []string
	for _, op := range ops {
		if _, ok := placed[op.id]; !ok {
			ids = append(ids, op.id)
		}
	}

	return ids
}
