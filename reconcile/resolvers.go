package reconcile

import (
	"fmt"
	"reflect"
	"unicode/utf8"
)

// FieldResolver settles a single conflict according to one strategy.
type FieldResolver interface {
	Resolve(c FieldConflict) ResolutionOutcome
}

var (
	_ FieldResolver = (*LastWriteWinsResolver)(nil)
	_ FieldResolver = (*LocalPriorityResolver)(nil)
	_ FieldResolver = (*RemotePriorityResolver)(nil)
	_ FieldResolver = (*MergeResolver)(nil)
	_ FieldResolver = (*ManualReviewResolver)(nil)
)

func resolved(c FieldConflict, value any, source Source, reason string) ResolutionOutcome {
	return ResolutionOutcome{
		Status:      StatusResolved,
		Field:       c.Field,
		Value:       value,
		Source:      source,
		Reason:      reason,
		LocalValue:  c.LocalValue,
		RemoteValue: c.RemoteValue,
	}
}

// LastWriteWinsResolver keeps the value with the higher version. Ties and
// missing versions go to remote.
type LastWriteWinsResolver struct{}

func (r *LastWriteWinsResolver) Resolve(c FieldConflict) ResolutionOutcome {
	if c.LocalVersion != nil && c.RemoteVersion != nil && *c.LocalVersion > *c.RemoteVersion {
		return resolved(c, c.LocalValue, SourceLocal, ReasonLastWriteWins)
	}
	return resolved(c, c.RemoteValue, SourceRemote, ReasonLastWriteWins)
}

type LocalPriorityResolver struct{}

func (r *LocalPriorityResolver) Resolve(c FieldConflict) ResolutionOutcome {
	return resolved(c, c.LocalValue, SourceLocal, ReasonLocalPriority)
}

type RemotePriorityResolver struct{}

func (r *RemotePriorityResolver) Resolve(c FieldConflict) ResolutionOutcome {
	return resolved(c, c.RemoteValue, SourceRemote, ReasonRemotePriority)
}

// MergeResolver combines both sides with a rule chosen by field name.
type MergeResolver struct{}

func (r *MergeResolver) Resolve(c FieldConflict) ResolutionOutcome {
	var value any
	switch c.Field {
	case "title", "listing_title":
		value = longerString(c.LocalValue, c.RemoteValue)
	case "description":
		// Re-running over already merged text grows it again; kept as is.
		value = fmt.Sprintf("%v\n\n%v", c.LocalValue, c.RemoteValue)
	case "images":
		value = unionList(c.LocalValue, c.RemoteValue)
	default:
		// sku, category and everything else
		value = c.RemoteValue
	}
	return resolved(c, value, SourceMerged, ReasonMerged)
}

// longerString returns local only when both are strings and local has more
// characters; otherwise remote.
func longerString(local, remote any) any {
	ls, lok := local.(string)
	rs, rok := remote.(string)
	if lok && rok && utf8.RuneCountInString(ls) > utf8.RuneCountInString(rs) {
		return ls
	}
	return remote
}

// unionList promotes both sides to lists and returns their union without
// duplicates, local entries first.
func unionList(local, remote any) []any {
	out := make([]any, 0)
	for _, side := range [][]any{asList(local), asList(remote)} {
		for _, v := range side {
			if v == nil || containsValue(out, v) {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

func asList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if ValuesEqual(x, v) {
			return true
		}
	}
	return false
}

// ManualReviewResolver defers the conflict to a human.
type ManualReviewResolver struct{ Reason string }

func (r *ManualReviewResolver) Resolve(c FieldConflict) ResolutionOutcome {
	reason := ReasonManualReview
	if r.Reason != "" {
		reason = r.Reason
	}
	return ResolutionOutcome{
		Status:      StatusPendingManualReview,
		Field:       c.Field,
		Reason:      reason,
		LocalValue:  c.LocalValue,
		RemoteValue: c.RemoteValue,
	}
}
