package reconciler

import "hash/fnv"

// inRollout reports whether hostname falls within the first percent of the
// hash space, giving a stable gradual rollout: a given hostname's
// membership never flaps between 0 and 100 as long as percent is held
// constant, which a percentage check against a fresh random number would
// not guarantee.
func inRollout(hostname string, percent int) bool {
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	return int(h.Sum32()%100) < percent
}
