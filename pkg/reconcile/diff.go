// Package reconcile turns successive visible sets of a tree into enter,
// update and exit transitions on a scene.
package reconcile

// Plan classifies keys of two successive renders.
type Plan[K comparable] struct {
	Enter  []K // in next only, in next order
	Update []K // in both, in next order
	Exit   []K // in prev only, in prev order
}

// Diff compares two keyed sets. Duplicate keys are treated as one.
func Diff[K comparable](prev, next []K) Plan[K] {
	inPrev := make(map[K]struct{}, len(prev))
	for _, k := range prev {
		inPrev[k] = struct{}{}
	}
	inNext := make(map[K]struct{}, len(next))

	var p Plan[K]
	for _, k := range next {
		if _, dup := inNext[k]; dup {
			continue
		}
		inNext[k] = struct{}{}
		if _, ok := inPrev[k]; ok {
			p.Update = append(p.Update, k)
		} else {
			p.Enter = append(p.Enter, k)
		}
	}
	seen := make(map[K]struct{}, len(prev))
	for _, k := range prev {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := inNext[k]; !ok {
			p.Exit = append(p.Exit, k)
		}
	}
	return p
}

// Empty reports whether nothing changed membership.
func (p Plan[K]) Empty() bool {
	return len(p.Enter) == 0 && len(p.Exit) == 0
}
