package profile

import (
	"sync"
	"sync/atomic"

	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/profile/filter"
	"github.com/CESNET/ipfixcol-sub004/record"
	"github.com/CESNET/ipfixcol-sub004/source"
)

// Router holds the current profile tree and evaluates it against records,
// spec.md §4.6's routing contract: "For each record, evaluate every
// channel's filter; the set of matches is stored in the record's metadata."
//
// The tree pointer is swapped atomically by Reload; readers (the
// preprocessor, one per pipeline) always see a complete, consistent tree and
// never block a reconfiguration in progress.
type Router struct {
	root atomic.Pointer[Profile]
	mu   sync.Mutex // serializes Reload callers; Route is lock-free
}

// NewRouter creates a Router with no tree loaded; Route returns no matches
// until a tree is installed by Load or Reload.
func NewRouter() *Router {
	return &Router{}
}

// Root returns the currently active tree root, or nil if none has been
// loaded yet.
func (r *Router) Root() *Profile {
	return r.root.Load()
}

// Route evaluates every channel's filter against rec and returns the
// channels that matched, spec.md §6.5's example 5: a record matching no
// channel yields a zero-length, non-nil-semantics result, not an error.
func (r *Router) Route(rec record.View, odid uint32, src source.Info) []*Channel {
	root := r.root.Load()
	if root == nil {
		obs.ProfileUnmatchedTotal.Inc()
		return nil
	}

	ctx := filter.Context{Record: rec, ODID: odid, Source: src}
	var matches []*Channel
	Walk(root, nil, func(ch *Channel) {
		if ch.Filter == nil {
			return
		}
		if filter.Evaluate(ch.Filter, ctx) {
			matches = append(matches, ch)
			obs.ProfileMatchesTotal.WithLabelValues(ch.Path()).Inc()
		}
	})
	if len(matches) == 0 {
		obs.ProfileUnmatchedTotal.Inc()
	}
	return matches
}

// UnknownChannel reports whether no channel with this path exists in the
// currently active tree, spec.md §4.6: "Reconfiguration (tree swap) is
// triggered when a storage stage encounters a channel it does not know."
func (r *Router) UnknownChannel(path string) bool {
	root := r.root.Load()
	if root == nil {
		return true
	}
	for _, ch := range AllChannels(root) {
		if ch.Path() == path {
			return false
		}
	}
	return true
}

// Load installs root as the active tree without performing a diff. Used for
// the first load of a process; subsequent reconfigurations should go
// through Reload so create/update/delete callbacks fire.
func (r *Router) Load(root *Profile) {
	r.root.Store(root)
}
