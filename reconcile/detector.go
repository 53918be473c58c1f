package reconcile

// ConflictDetector compares two snapshots field by field. It holds no mutable
// state and may be shared between goroutines.
type ConflictDetector struct {
	registry *StrategyRegistry
}

// NewConflictDetector returns a detector over the fields of registry.
func NewConflictDetector(registry *StrategyRegistry) *ConflictDetector {
	return &ConflictDetector{registry: registry}
}

// Detect returns the conflicts between local and remote in registry order.
// Both snapshots are validated before any field is compared, so a malformed
// version yields an error and no conflicts.
func (d *ConflictDetector) Detect(local, remote Snapshot) ([]FieldConflict, error) {
	if err := local.Validate(); err != nil {
		return nil, err
	}
	if err := remote.Validate(); err != nil {
		return nil, err
	}

	localVersion := versionPtr(local)
	remoteVersion := versionPtr(remote)

	var conflicts []FieldConflict
	for _, fs := range d.registry.config {
		lv := local[fs.Field]
		rv := remote[fs.Field]
		if !isConflicting(lv, rv, localVersion, remoteVersion) {
			continue
		}
		conflicts = append(conflicts, FieldConflict{
			Field:         fs.Field,
			LocalValue:    lv,
			RemoteValue:   rv,
			Strategy:      fs.Strategy,
			LocalVersion:  localVersion,
			RemoteVersion: remoteVersion,
		})
	}
	return conflicts, nil
}

// isConflicting decides whether two values of the same field conflict.
//
// When both sides carry a version, only equal versions with different values
// conflict; a version mismatch means the newer side is taken as authoritative
// by the aggregation layer and nothing is reported here.
func isConflicting(lv, rv any, localVersion, remoteVersion *int64) bool {
	if ValuesEqual(lv, rv) {
		return false
	}
	if lv == nil || rv == nil {
		return false
	}
	if localVersion != nil && remoteVersion != nil {
		return *localVersion == *remoteVersion
	}
	return true
}

// versionPtr assumes s has been validated.
func versionPtr(s Snapshot) *int64 {
	v, ok, err := s.Version()
	if !ok || err != nil {
		return nil
	}
	return &v
}
