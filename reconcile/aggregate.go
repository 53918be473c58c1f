package reconcile

// Aggregate builds the reconciled entity from both snapshots and the result
// of resolving their conflicts. For every key present on either side:
//
//   - a resolved conflict contributes its resolved value;
//   - a field pending manual review keeps the local value until a human decides;
//   - a value missing or nil on one side is filled from the other;
//   - equal values are kept;
//   - otherwise the side with the higher version wins, and remote wins when
//     versions are equal or absent.
//
// The version of the result is the higher of the two input versions.
// Both snapshots must be valid; Aggregate does not mutate them.
func Aggregate(local, remote Snapshot, res BatchResult) Snapshot {
	pending := make(map[string]bool, len(res.PendingManual))
	for _, p := range res.PendingManual {
		pending[p.Field] = true
	}

	localVersion := versionPtr(local)
	remoteVersion := versionPtr(remote)

	out := make(Snapshot, len(local)+len(remote))
	visit := func(field string) {
		if field == VersionField {
			return
		}
		if _, done := out[field]; done {
			return
		}
		if v, ok := res.ResolvedData[field]; ok {
			out[field] = v
			return
		}

		lv, lok := local.Get(field)
		rv, rok := remote.Get(field)
		switch {
		case !lok && !rok:
			out[field] = nil
		case !lok:
			out[field] = rv
		case !rok:
			out[field] = lv
		case pending[field], ValuesEqual(lv, rv):
			out[field] = lv
		case localVersion != nil && remoteVersion != nil && *localVersion > *remoteVersion:
			out[field] = lv
		default:
			out[field] = rv
		}
	}
	for field := range local {
		visit(field)
	}
	for field := range remote {
		visit(field)
	}

	switch {
	case localVersion != nil && remoteVersion != nil:
		out[VersionField] = max(*localVersion, *remoteVersion)
	case localVersion != nil:
		out[VersionField] = *localVersion
	case remoteVersion != nil:
		out[VersionField] = *remoteVersion
	}
	return out
}

// Aggregate is a convenience wrapper around the package-level Aggregate.
func (e *Engine) Aggregate(local, remote Snapshot, res BatchResult) Snapshot {
	return Aggregate(local, remote, res)
}
