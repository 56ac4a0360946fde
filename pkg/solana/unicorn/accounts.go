package unicorn

import (
	"github.com/gagliardetto/solana-go"
)

// Text slot widths shared by accounts and instruction validation.
const (
	MaxNameLen        = 32
	MaxSymbolLen      = 8
	MaxTitleLen       = 32
	MaxDescriptionLen = 256
)

// Account sizes in bytes.
const (
	ProjectSize   = 132
	ProposalSize  = 362
	MilestoneSize = 305
)

var projectLayout = newLayout("project",
	pubkeyField("authority"),
	textField("name", MaxNameLen),
	textField("symbol", MaxSymbolLen),
	u64Field("funding_goal"),
	u64Field("total_raised"),
	u64Field("token_price"),
	boolField("is_active"),
	u8Field("bump"),
	pubkeyField("token_mint"),
	u8Field("milestone_count"),
	u8Field("proposal_count"),
)

var proposalLayout = newLayout("proposal",
	pubkeyField("creator"),
	textField("title", MaxTitleLen),
	textField("description", MaxDescriptionLen),
	u64Field("amount"),
	u8Field("milestone_id"),
	u64Field("yes_votes"),
	u64Field("no_votes"),
	boolField("is_executed"),
	i64Field("created_at"),
	i64Field("voting_end"),
)

var milestoneLayout = newLayout("milestone",
	textField("title", MaxTitleLen),
	textField("description", MaxDescriptionLen),
	u64Field("amount"),
	boolField("is_completed"),
	i64Field("completed_at"),
)

// Project is the per-authority funding account. Currency fields are in
// smallest units.
type Project struct {
	Authority      solana.PublicKey `json:"authority"`
	Name           string           `json:"name"`
	Symbol         string           `json:"symbol"`
	FundingGoal    uint64           `json:"funding_goal"`
	TotalRaised    uint64           `json:"total_raised"`
	TokenPrice     uint64           `json:"token_price"`
	IsActive       bool             `json:"is_active"`
	Bump           uint8            `json:"bump"`
	TokenMint      solana.PublicKey `json:"token_mint"`
	MilestoneCount uint8            `json:"milestone_count"`
	ProposalCount  uint8            `json:"proposal_count"`
}

func (p *Project) bind() []any {
	return []any{
		&p.Authority, &p.Name, &p.Symbol,
		&p.FundingGoal, &p.TotalRaised, &p.TokenPrice,
		&p.IsActive, &p.Bump, &p.TokenMint,
		&p.MilestoneCount, &p.ProposalCount,
	}
}

// Proposal is a time-boxed vote to release a milestone's funds.
type Proposal struct {
	Creator     solana.PublicKey `json:"creator"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Amount      uint64           `json:"amount"`
	MilestoneID uint8            `json:"milestone_id"`
	YesVotes    uint64           `json:"yes_votes"`
	NoVotes     uint64           `json:"no_votes"`
	IsExecuted  bool             `json:"is_executed"`
	CreatedAt   int64            `json:"created_at"`
	VotingEnd   int64            `json:"voting_end"`

	// Provisional marks a locally adjusted copy that has not been re-fetched.
	Provisional bool `json:"provisional,omitempty"`
}

func (p *Proposal) bind() []any {
	return []any{
		&p.Creator, &p.Title, &p.Description,
		&p.Amount, &p.MilestoneID,
		&p.YesVotes, &p.NoVotes, &p.IsExecuted,
		&p.CreatedAt, &p.VotingEnd,
	}
}

// Milestone is an amount-bearing deliverable of a project.
type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      uint64 `json:"amount"`
	IsCompleted bool   `json:"is_completed"`
	CompletedAt int64  `json:"completed_at"`
}

func (m *Milestone) bind() []any {
	return []any{&m.Title, &m.Description, &m.Amount, &m.IsCompleted, &m.CompletedAt}
}

// DecodeProject parses a project account image.
func DecodeProject(raw []byte) (*Project, error) {
	var p Project
	if err := projectLayout.decode(raw, p.bind()); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeProposal parses a proposal account image.
func DecodeProposal(raw []byte) (*Proposal, error) {
	var p Proposal
	if err := proposalLayout.decode(raw, p.bind()); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeMilestone parses a milestone account image.
func DecodeMilestone(raw []byte) (*Milestone, error) {
	var m Milestone
	if err := milestoneLayout.decode(raw, m.bind()); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeProject builds the byte image the program would store for p. The
// client never writes accounts; this serves fixtures and local simulation.
func EncodeProject(p *Project) ([]byte, error) {
	return projectLayout.encode(p.bind())
}

func EncodeProposal(p *Proposal) ([]byte, error) {
	return proposalLayout.encode(p.bind())
}

func EncodeMilestone(m *Milestone) ([]byte, error) {
	return milestoneLayout.encode(m.bind())
}
