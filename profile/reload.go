package profile

// ChangeFlags records what differs between an old and a mapped-in new
// channel/profile, spec.md §4.6's "diff between old and new trees yields
// create/update/delete callback invocations". Grounded in profile_events.c's
// PEVENTS_CHANGE_* bits (pevents_update_mapper_change_flags): directory and
// type are the two properties a profile can change across a reload without
// losing its identity.
type ChangeFlags uint8

const (
	ChangeDirectory ChangeFlags = 1 << iota
	ChangeType
)

// Callbacks receives the create/update/delete notifications of a Reload,
// spec.md §4.6. Any field may be left nil; Reload skips the corresponding
// notification kind.
type Callbacks struct {
	OnChannelCreate func(*Channel)
	OnChannelUpdate func(old, new *Channel, flags ChangeFlags)
	OnChannelDelete func(*Channel)

	OnProfileCreate func(*Profile)
	OnProfileUpdate func(old, new *Profile, flags ChangeFlags)
	OnProfileDelete func(*Profile)
}

// Reload replaces the router's tree with newRoot, diffing against the
// previously active tree by channel/profile path (the original C manager
// keys on memory address of the still-live object; since a Go reload always
// parses a brand new tree rather than mutating the old one in place, path is
// the stable identity a reader can reason about instead).
//
// Channels/profiles present in both trees at the same path fire OnUpdate
// with flags describing what changed, and fire nothing when neither
// directory nor type changed; channels/profiles only in the old
// tree fire OnDelete; channels/profiles only in the new tree fire OnCreate.
// Reload serializes against concurrent Reload calls but never blocks Route.
func (r *Router) Reload(newRoot *Profile, cb Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldRoot := r.root.Load()

	oldChannels := map[string]*Channel{}
	oldProfiles := map[string]*Profile{}
	if oldRoot != nil {
		Walk(oldRoot, func(p *Profile) { oldProfiles[p.path()] = p }, func(c *Channel) { oldChannels[c.Path()] = c })
	}

	newChannels := map[string]*Channel{}
	newProfiles := map[string]*Profile{}
	if newRoot != nil {
		Walk(newRoot, func(p *Profile) { newProfiles[p.path()] = p }, func(c *Channel) { newChannels[c.Path()] = c })
	}

	for path, np := range newProfiles {
		if op, ok := oldProfiles[path]; ok {
			flags := profileChangeFlags(op, np)
			if flags != 0 && cb.OnProfileUpdate != nil {
				cb.OnProfileUpdate(op, np, flags)
			}
		} else if cb.OnProfileCreate != nil {
			cb.OnProfileCreate(np)
		}
	}
	for path, op := range oldProfiles {
		if _, ok := newProfiles[path]; !ok && cb.OnProfileDelete != nil {
			cb.OnProfileDelete(op)
		}
	}

	for path, nc := range newChannels {
		if oc, ok := oldChannels[path]; ok {
			flags := profileChangeFlags(oc.profile, nc.profile)
			if flags != 0 && cb.OnChannelUpdate != nil {
				cb.OnChannelUpdate(oc, nc, flags)
			}
		} else if cb.OnChannelCreate != nil {
			cb.OnChannelCreate(nc)
		}
	}
	for path, oc := range oldChannels {
		if _, ok := newChannels[path]; !ok && cb.OnChannelDelete != nil {
			cb.OnChannelDelete(oc)
		}
	}

	r.root.Store(newRoot)
}

func profileChangeFlags(old, new *Profile) ChangeFlags {
	var flags ChangeFlags
	if old.Directory != new.Directory {
		flags |= ChangeDirectory
	}
	if old.Kind != new.Kind {
		flags |= ChangeType
	}
	return flags
}
