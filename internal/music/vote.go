package music

// Tally collects skip votes for the entry at the head of a queue.
// It is not safe for concurrent use; the manager guards it with the
// guild lock.
type Tally struct {
	voters map[string]struct{}
}

// VoteResult reports the tally after a vote.
type VoteResult struct {
	HasVotedBefore bool
	Votes          int
	Listeners      int
	Percentage     float64
	// NeededVotes is how many more votes reach the threshold.
	NeededVotes int
	Skipped     bool
}

// SkipThreshold is the share of listeners, in percent, that skips.
const SkipThreshold = 50

// Register records userID's vote against listeners non-bot members. A
// repeat vote changes nothing but still reports the current tally.
func (t *Tally) Register(userID string, listeners int) VoteResult {
	if t.voters == nil {
		t.voters = make(map[string]struct{})
	}
	_, seen := t.voters[userID]
	if !seen {
		t.voters[userID] = struct{}{}
	}
	listeners = max(listeners, 1)
	votes := min(len(t.voters), listeners)
	return VoteResult{
		HasVotedBefore: seen,
		Votes:          votes,
		Listeners:      listeners,
		Percentage:     float64(votes) / float64(listeners) * 100,
		NeededVotes:    neededVotes(votes, listeners),
	}
}

// Reached reports whether r meets the skip threshold.
func (r VoteResult) Reached() bool {
	return r.Votes*100 >= SkipThreshold*r.Listeners
}

// Reset clears all votes.
func (t *Tally) Reset() {
	clear(t.voters)
}

// Len returns the number of distinct voters.
func (t *Tally) Len() int {
	return len(t.voters)
}

// neededVotes returns the smallest k such that votes+k reaches the
// threshold.
func neededVotes(votes, listeners int) int {
	k := 0
	for (votes+k)*100 < SkipThreshold*listeners {
		k++
	}
	return k
}
