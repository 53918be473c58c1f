package reconcile

// StrategyResolver dispatches a conflict to the FieldResolver for its
// strategy. It is stateless and total: every conflict yields an outcome.
type StrategyResolver struct {
	lastWriteWins  LastWriteWinsResolver
	localPriority  LocalPriorityResolver
	remotePriority RemotePriorityResolver
	merge          MergeResolver
	manual         ManualReviewResolver
}

// NewStrategyResolver returns a resolver with the stock strategies.
func NewStrategyResolver() *StrategyResolver {
	return &StrategyResolver{}
}

// Resolve applies the conflict's strategy. A Manual conflict becomes a pending
// outcome only when autoResolve is false; with autoResolve it, like any value
// outside the known set, is settled by remote priority.
func (r *StrategyResolver) Resolve(c FieldConflict, autoResolve bool) ResolutionOutcome {
	return r.resolverFor(c.Strategy, autoResolve).Resolve(c)
}

func (r *StrategyResolver) resolverFor(kind StrategyKind, autoResolve bool) FieldResolver {
	switch kind {
	case LastWriteWins:
		return &r.lastWriteWins
	case LocalPriority:
		return &r.localPriority
	case RemotePriority:
		return &r.remotePriority
	case Merge:
		return &r.merge
	case Manual:
		if !autoResolve {
			return &r.manual
		}
		return &r.remotePriority
	default:
		return &r.remotePriority
	}
}
