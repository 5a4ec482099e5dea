package trim

import "github.com/astei/anviltrim/nbt"

const (
	// InhabitedTimeField is the cumulative number of ticks players spent near a chunk.
	InhabitedTimeField = "InhabitedTime"
	// TicksPerSecond is the game's fixed tick rate.
	TicksPerSecond = 20

	legacyLevelField = "Level"
)

// Decision is the fate of one chunk.
type Decision int

const (
	Keep Decision = iota
	Remove
)

func (d Decision) String() string {
	if d == Remove {
		return "remove"
	}
	return "keep"
}

// InhabitedTime reads the activity counter of a chunk. Chunks written before 1.18 keep
// it inside the Level compound.
func InhabitedTime(tree *nbt.Tree) (int64, bool) {
	if tree == nil || tree.Root == nil {
		return 0, false
	}
	if tag, ok := tree.Root.Get(InhabitedTimeField); ok {
		return nbt.AsInt64(tag)
	}
	if level, ok := tree.Root.Compound(legacyLevelField); ok {
		if tag, ok := level.Get(InhabitedTimeField); ok {
			return nbt.AsInt64(tag)
		}
	}
	return 0, false
}

// Decide removes a chunk when its counter is strictly below threshold. A chunk without
// a counter follows policy.
func Decide(tree *nbt.Tree, threshold int64, policy MissingCounterPolicy) Decision {
	inhabited, ok := InhabitedTime(tree)
	if !ok {
		if policy == RemoveMissing && threshold > 0 {
			return Remove
		}
		return Keep
	}
	if inhabited < threshold {
		return Remove
	}
	return Keep
}

// ThresholdFromSeconds converts "at most this many whole seconds inhabited" into a tick
// threshold: a chunk is removed when InhabitedTime/20 <= seconds.
func ThresholdFromSeconds(seconds int64) int64 {
	return (seconds + 1) * TicksPerSecond
}
