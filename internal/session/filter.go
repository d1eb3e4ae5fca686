package session

import "github.com/getsentry/opstractor/internal/optree"

// Filter inspects a finalized root call tree before it is aggregated. It
// returns the tree to aggregate, or nil to drop it. Dropped trees are not
// counted. A filter must not modify the tree.
type Filter func(root *optree.Op) *optree.Op

// Identity accepts every root.
func Identity(root *optree.Op) *optree.Op {
	return root
}

// RejectNames drops roots whose name is one of names, e.g. bookkeeping calls
// wrapping a whole trace.
func RejectNames(names ...string) Filter {
	rejected := make(map[string]struct{}, len(names))
	for _, n := range names {
		rejected[n] = struct{}{}
	}
	return func(root *optree.Op) *optree.Op {
		if root == nil {
			return nil
		}
		if _, ok := rejected[root.Name()]; ok {
			return nil
		}
		return root
	}
}
