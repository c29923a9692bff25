package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martial-arena/combat-scoring/models"
	"github.com/martial-arena/combat-scoring/scoring"
)

// assessor user ids by position; 600 is the judger.
var panelUserIDs = [5]int{101, 102, 103, 104, 105}

const judgerUserID = 600

// votingMatch builds a live match with a full five-assessor panel and a
// judger assigned.
func votingMatch(t *testing.T, e *engine) *models.Match {
	t.Helper()
	match := startedMatch(t, e, 3, false)
	for i, userID := range panelUserIDs {
		_, err := e.assignmentSvc.AssignOfficial(context.Background(), match.ID, userID, i+1, "")
		require.NoError(t, err)
	}
	_, err := e.assignmentSvc.AssignOfficial(context.Background(), match.ID, judgerUserID, models.JudgerPosition, "")
	require.NoError(t, err)
	return match
}

func scoreProposal() ProposedAction {
	return ProposedAction{Type: models.EventScoreTwo, Corner: models.CornerRed, TimestampInRound: 42}
}

func TestProcessVote_QuorumCommitsOnce(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	// Two votes: below the 3-of-5 quorum, nothing committed.
	for _, userID := range panelUserIDs[:2] {
		result, err := e.voteSvc.ProcessVote(ctx, match.ID, userID, scoreProposal())
		require.NoError(t, err)
		assert.Nil(t, result.Committed)
		require.Len(t, result.Status.Proposals, 1)
		assert.Equal(t, 3, result.Status.Quorum)
	}

	events, err := e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "only the round_start marker so far")

	// Third vote reaches quorum and commits exactly one ledger event.
	result, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[2], scoreProposal())
	require.NoError(t, err)
	require.NotNil(t, result.Committed)
	assert.Equal(t, models.EventScoreTwo, result.Committed.Type)
	assert.Equal(t, models.CornerRed, result.Committed.Corner)
	assert.Equal(t, 42, result.Committed.TimestampInRound)
	assert.ElementsMatch(t, []int64{101, 102, 103}, result.Committed.ApproverIDs)
	assert.Empty(t, result.Status.Proposals, "commit clears every pending vote")

	events, err = e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	proj, err := e.matchSvc.GetScoreboard(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, proj.RedScore)
}

func TestProcessVote_RepeatVoteDoesNotAdvanceQuorum(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	for i := 0; i < 5; i++ {
		result, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
		require.NoError(t, err)
		assert.Nil(t, result.Committed)
		require.Len(t, result.Status.Proposals, 1)
		assert.Equal(t, 1, result.Status.Proposals[0].Votes)
	}
}

func TestProcessVote_DisagreeingVotesStayPending(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	blue := scoreProposal()
	blue.Corner = models.CornerBlue

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[1], blue)
	require.NoError(t, err)

	status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, status.Proposals, 2, "red and blue are distinct proposals")

	events, err := e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestProcessVote_UnassignedOfficialRejected(t *testing.T) {
	e := newEngine()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(context.Background(), match.ID, 999, scoreProposal())
	assert.ErrorIs(t, err, ErrUnauthorizedVoter)
}

func TestProcessVote_JudgerIsAdvisory(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[1], scoreProposal())
	require.NoError(t, err)

	// The judger's agreement is recorded but never completes quorum.
	result, err := e.voteSvc.ProcessVote(ctx, match.ID, judgerUserID, scoreProposal())
	require.NoError(t, err)
	assert.True(t, result.Advisory)
	assert.Nil(t, result.Committed)
	require.Len(t, result.Status.Proposals, 1)
	assert.Equal(t, 3, result.Status.Proposals[0].Votes, "judger vote is visible in the tally")

	// Observers learn about the advisory vote right away.
	pushed, ok := e.hub.lastPayload(scoring.MsgVoteStatus).(*VoteStatus)
	require.True(t, ok)
	require.Len(t, pushed.Proposals, 1)
	assert.Equal(t, 3, pushed.Proposals[0].Votes)

	events, err := e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// A third assessor still has to concur, and the committed event's
	// approvers are the concurring assessors only.
	result, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[2], scoreProposal())
	require.NoError(t, err)
	require.NotNil(t, result.Committed)
	assert.NotContains(t, result.Committed.ApproverIDs, int64(judgerUserID))
	assert.ElementsMatch(t, []int64{101, 102, 103}, result.Committed.ApproverIDs)
}

func TestProcessVote_UnassignedVotesStopCounting(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[1], scoreProposal())
	require.NoError(t, err)

	// Position 1 is vacated; its pending vote must stop counting.
	first, err := e.assignments.GetByMatchAndUser(ctx, match.ID, panelUserIDs[0])
	require.NoError(t, err)
	require.NoError(t, e.assignmentSvc.RemoveAssignment(ctx, first.ID))

	result, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[2], scoreProposal())
	require.NoError(t, err)
	assert.Nil(t, result.Committed, "pruned vote must not complete quorum")
	require.Len(t, result.Status.Proposals, 1)
	assert.Equal(t, []int{102, 103}, result.Status.Proposals[0].VoterIDs)
}

func TestProcessVote_RequiresLiveRound(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.matchSvc.EndRound(ctx, match.ID, testOfficialID)
	require.NoError(t, err)

	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	assert.ErrorIs(t, err, ErrRoundNotInProgress)
}

func TestProcessVote_RejectsInvalidProposals(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	marker := ProposedAction{Type: models.EventRoundEnd, Corner: models.CornerNeutral}
	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], marker)
	assert.ErrorIs(t, err, ErrInvalidProposal)

	undo := ProposedAction{Type: models.EventUndo, Corner: models.CornerRed}
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], undo)
	assert.ErrorIs(t, err, ErrInvalidProposal, "undo goes through the privileged surface, not voting")

	badCorner := ProposedAction{Type: models.EventScoreOne, Corner: models.CornerDraw}
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], badCorner)
	assert.ErrorIs(t, err, ErrInvalidProposal)
}

func TestProcessVote_ConcurrentVotersCommitExactlyOnce(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	var wg sync.WaitGroup
	committed := make(chan *models.ScoringEvent, len(panelUserIDs))
	for _, userID := range panelUserIDs {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			result, err := e.voteSvc.ProcessVote(ctx, match.ID, id, scoreProposal())
			if err == nil && result.Committed != nil {
				committed <- result.Committed
			}
		}(userID)
	}
	wg.Wait()
	close(committed)

	var commits []*models.ScoringEvent
	for evt := range committed {
		commits = append(commits, evt)
	}
	require.Len(t, commits, 1, "all five agreeing must produce one ledger event")

	events, err := e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	proj, err := e.matchSvc.GetScoreboard(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, proj.RedScore, "score applied exactly once")
}

func TestResetVotes(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)
	_, err = e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[1], scoreProposal())
	require.NoError(t, err)

	require.NoError(t, e.voteSvc.ResetVotes(ctx, match.ID))

	status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Empty(t, status.Proposals)

	// The reset broadcast carries the real round and quorum, not zeroes.
	pushed, ok := e.hub.lastPayload(scoring.MsgVoteStatus).(*VoteStatus)
	require.True(t, ok)
	assert.Equal(t, match.ID, pushed.MatchID)
	assert.Equal(t, 1, pushed.RoundNumber)
	assert.Equal(t, 3, pushed.Quorum)
	assert.Empty(t, pushed.Proposals)

	// Voting starts over from zero after a reset.
	result, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[2], scoreProposal())
	require.NoError(t, err)
	assert.Nil(t, result.Committed)
	require.Len(t, result.Status.Proposals, 1)
	assert.Equal(t, 1, result.Status.Proposals[0].Votes)
}

func TestExpireRound_DropsStaleTallies(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)
	assert.Contains(t, e.voteSvc.TrackedMatches(), match.ID)

	// Round moves on; the round-1 tally is now stale.
	_, err = e.matchSvc.EndRound(ctx, match.ID, testOfficialID)
	require.NoError(t, err)
	_, err = e.matchSvc.StartRound(ctx, match.ID, testOfficialID)
	require.NoError(t, err)

	require.NoError(t, e.voteSvc.ExpireRound(ctx, match.ID))

	status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Empty(t, status.Proposals)
}

func TestExpireRound_KeepsCurrentRoundTally(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)

	require.NoError(t, e.voteSvc.ExpireRound(ctx, match.ID))

	status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, status.Proposals, 1, "live-round votes survive the sweep")
}

func TestExpireRound_DropsTallyForFinishedMatch(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	_, err := e.voteSvc.ProcessVote(ctx, match.ID, panelUserIDs[0], scoreProposal())
	require.NoError(t, err)

	_, err = e.matchSvc.CancelMatch(ctx, match.ID)
	require.NoError(t, err)

	require.NoError(t, e.voteSvc.ExpireRound(ctx, match.ID))
	assert.NotContains(t, e.voteSvc.TrackedMatches(), match.ID)
}

func TestGetVotingStatus_QuorumTracksPanelSize(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := startedMatch(t, e, 3, false)

	// Three-assessor panel: quorum is two.
	for i, userID := range []int{201, 202, 203} {
		_, err := e.assignmentSvc.AssignOfficial(ctx, match.ID, userID, i+1, "")
		require.NoError(t, err)
	}

	status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Quorum)
	assert.Equal(t, scoring.Quorum(3), status.Quorum)

	result, err := e.voteSvc.ProcessVote(ctx, match.ID, 201, scoreProposal())
	require.NoError(t, err)
	assert.Nil(t, result.Committed)

	result, err = e.voteSvc.ProcessVote(ctx, match.ID, 202, scoreProposal())
	require.NoError(t, err)
	assert.NotNil(t, result.Committed, "two of three completes quorum")
}

func TestGetVotingStatus_SafeDuringLiveVoting(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	match := votingMatch(t, e)

	// Scoreboard displays poll status while officials vote and reset;
	// the reads must never observe the tally mid-mutation.
	var wg sync.WaitGroup
	for _, userID := range panelUserIDs[:2] {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := e.voteSvc.ProcessVote(ctx, match.ID, id, scoreProposal())
				assert.NoError(t, err)
			}
		}(userID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			assert.NoError(t, e.voteSvc.ResetVotes(ctx, match.ID))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			status, err := e.voteSvc.GetVotingStatus(ctx, match.ID)
			if assert.NoError(t, err) {
				assert.Equal(t, 3, status.Quorum)
			}
		}
	}()
	wg.Wait()

	events, err := e.matchSvc.GetEventHistory(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "two agreeing voters never reach quorum")
}
