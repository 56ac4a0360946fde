package unicorn

import (
	"time"
)

// DefaultVotingWindow is the program's fixed voting period.
const DefaultVotingWindow = 24 * time.Hour

// ProposalStatus is derived from a proposal's stored fields and a clock; it
// is never stored on-chain.
type ProposalStatus string

const (
	ProposalOpen     ProposalStatus = "open"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExecuted ProposalStatus = "executed"
)

// Status evaluates the proposal at now. Ties and zero turnout reject.
func (p *Proposal) Status(now time.Time) ProposalStatus {
	switch {
	case p.IsExecuted:
		return ProposalExecuted
	case now.Unix() < p.VotingEnd:
		return ProposalOpen
	case p.YesVotes > p.NoVotes:
		return ProposalPassed
	default:
		return ProposalRejected
	}
}

// VotingEndFor returns the voting deadline the program assigns to a
// proposal created at createdAt.
func VotingEndFor(createdAt int64, window time.Duration) int64 {
	return createdAt + int64(window/time.Second)
}

// WithProvisionalVote returns a copy with one vote applied locally. The copy
// is flagged Provisional until replaced by a fetched record.
func (p Proposal) WithProvisionalVote(approve bool) Proposal {
	if approve {
		p.YesVotes++
	} else {
		p.NoVotes++
	}
	p.Provisional = true
	return p
}

// MilestoneStatus mirrors the stored completion flag.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

func (m *Milestone) Status() MilestoneStatus {
	if m.IsCompleted {
		return MilestoneCompleted
	}
	return MilestonePending
}
