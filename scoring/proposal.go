package scoring

import (
	"fmt"
	"sync"

	"github.com/martial-arena/combat-scoring/models"
)

// ProposalKey identifies a candidate scoring action awaiting votes.
// Votes are grouped by what happened, not by who reported it.
type ProposalKey struct {
	MatchID     int              `json:"match_id"`
	RoundNumber int              `json:"round_number"`
	Type        models.EventType `json:"type"`
	Corner      models.Corner    `json:"corner"`
}

func (k ProposalKey) String() string {
	return fmt.Sprintf("%d/r%d/%s/%s", k.MatchID, k.RoundNumber, k.Type, k.Corner)
}

// Tally collects voter ids per proposal for one match, in arrival order.
// It carries its own lock: mutations run under the match commit path
// while status reads come from any observer, so every method takes a
// short internal critical section and readers get copies.
type Tally struct {
	mu    sync.Mutex
	votes map[ProposalKey][]int
}

func NewTally() *Tally {
	return &Tally{votes: make(map[ProposalKey][]int)}
}

// Add records a vote and returns the voter count for the proposal.
// A repeated vote by the same official is idempotent.
func (t *Tally) Add(key ProposalKey, voterID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.votes[key] {
		if id == voterID {
			return len(t.votes[key])
		}
	}
	t.votes[key] = append(t.votes[key], voterID)
	return len(t.votes[key])
}

// Voters returns the voter ids for a proposal in arrival order.
func (t *Tally) Voters(key ProposalKey) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, len(t.votes[key]))
	copy(out, t.votes[key])
	return out
}

// Snapshot returns a copy of all pending tallies.
func (t *Tally) Snapshot() map[ProposalKey][]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[ProposalKey][]int, len(t.votes))
	for k, v := range t.votes {
		ids := make([]int, len(v))
		copy(ids, v)
		out[k] = ids
	}
	return out
}

// Prune drops votes from officials no longer in the eligible set. Called
// before quorum evaluation so unassigned officials stop counting without
// touching history.
func (t *Tally) Prune(eligible map[int]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, ids := range t.votes {
		kept := ids[:0]
		for _, id := range ids {
			if eligible[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(t.votes, key)
			continue
		}
		t.votes[key] = kept
	}
}

// Clear drops every pending vote for the match.
func (t *Tally) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.votes = make(map[ProposalKey][]int)
}

// Quorum is the majority threshold for a given assessor panel size.
// Five assessors need three concurring votes.
func Quorum(assessorCount int) int {
	if assessorCount <= 0 {
		return 1
	}
	return assessorCount/2 + 1
}
