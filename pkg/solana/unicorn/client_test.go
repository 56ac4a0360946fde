package unicorn

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/utils"
)

type ClientTestSuite struct {
	suite.Suite
	ctx       context.Context
	transport *fakeTransport
	client    *Client
	authority solana.PrivateKey
	trader    solana.PrivateKey
	project   solana.PublicKey
	state     *Project
	now       time.Time
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.transport = newFakeTransport()
	s.authority = newKey(s.T())
	s.trader = newKey(s.T())
	s.now = time.Unix(50_000, 0)
	s.project, s.state = putProject(s.T(), s.transport, s.authority.PublicKey(), nil)
	s.client = s.newClient(s.transport)
}

func (s *ClientTestSuite) newClient(t Transport) *Client {
	c, err := NewClient(Config{
		ProgramID: testProgramID,
		Now:       func() time.Time { return s.now },
	}, t, nil)
	s.Require().NoError(err)
	return c
}

// rewriteProject stores a modified copy of the seeded project.
func (s *ClientTestSuite) rewriteProject(mutate func(*Project)) {
	p := *s.state
	mutate(&p)
	raw, err := EncodeProject(&p)
	s.Require().NoError(err)
	s.transport.put(s.project, raw)
	s.state = &p
}

func (s *ClientTestSuite) TestNewClientDefaults() {
	cfg := s.client.Config()
	s.Equal(DefaultUnitScale, cfg.UnitScale)
	s.Equal(DefaultVotingWindow, cfg.VotingWindow)
	s.Equal(utils.DefaultCurve(), cfg.Curve)

	_, err := NewClient(Config{}, s.transport, nil)
	s.ErrorIs(err, ErrInvalidInput)
	_, err = NewClient(Config{ProgramID: testProgramID}, nil, nil)
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ClientTestSuite) TestGetProject() {
	p, err := s.client.GetProject(s.ctx, s.project)
	s.Require().NoError(err)
	s.Equal("Unicorn", p.Name)

	_, err = s.client.GetProject(s.ctx, solana.NewWallet().PublicKey())
	s.ErrorIs(err, ErrNotFound)

	raw, err := EncodeProject(s.state)
	s.Require().NoError(err)
	elsewhere := solana.NewWallet().PublicKey()
	s.transport.put(elsewhere, raw)
	_, err = s.client.GetProject(s.ctx, elsewhere)
	s.ErrorIs(err, ErrMalformedAccount, "address must round-trip through the deriver")

	s.transport.put(elsewhere, raw[:10])
	_, err = s.client.GetProject(s.ctx, elsewhere)
	s.ErrorIs(err, ErrMalformedAccount)
}

func (s *ClientTestSuite) TestInitializeProject() {
	authority := newKey(s.T())
	pda, err := s.client.Deriver().Project(authority.PublicKey())
	s.Require().NoError(err)

	s.transport.onSubmit = func(ixs []solana.Instruction) error {
		accounts := ixs[0].Accounts()
		p := &Project{
			Authority:   authority.PublicKey(),
			Name:        "Rainbow",
			Symbol:      "RBW",
			FundingGoal: 25_000_000_000,
			TokenPrice:  1,
			IsActive:    true,
			Bump:        pda.Bump,
			TokenMint:   accounts[4].PublicKey,
		}
		raw, err := EncodeProject(p)
		if err != nil {
			return err
		}
		s.transport.put(accounts[0].PublicKey, raw)
		return nil
	}

	sig, p, err := s.client.InitializeProject(s.ctx, authority, "Rainbow", "RBW", "25")
	s.Require().NoError(err)
	s.NotEqual(solana.Signature{}, sig)
	s.Equal(uint64(25_000_000_000), p.FundingGoal)

	ixs := s.transport.lastSubmission()
	s.Require().Len(ixs, 1)
	s.Equal(pda.Address, ixs[0].Accounts()[0].PublicKey)
	data := ixData(s.T(), ixs[0])
	s.Equal(byte(OpInitializeProject), data[0])
	s.Equal(uint64(25_000_000_000), binary.LittleEndian.Uint64(data[len(data)-8:]))

	signers := s.transport.signers[len(s.transport.signers)-1]
	s.Require().Len(signers, 2)
	s.Equal(p.TokenMint, signers[1].PublicKey(), "mint co-signs")

	_, _, err = s.client.InitializeProject(s.ctx, authority, "Rainbow", "RBW", "25")
	s.ErrorIs(err, ErrInvalidInput, "project already exists")
}

func (s *ClientTestSuite) TestInitializeProjectValidatesLocally() {
	_, _, err := s.client.InitializeProject(s.ctx, s.authority, strings.Repeat("n", 33), "X", "1")
	s.ErrorIs(err, ErrInvalidInput)
	_, _, err = s.client.InitializeProject(s.ctx, s.authority, "n", "X", "0.0000000001")
	s.ErrorIs(err, ErrInvalidAmount)
	_, _, err = s.client.InitializeProject(s.ctx, s.authority, "n", "X", "0")
	s.ErrorIs(err, ErrInvalidInput)

	s.Zero(s.transport.fetches, "no network call before local validation passes")
	s.Empty(s.transport.submitted)
}

func (s *ClientTestSuite) TestInitializeProjectMintKeyFailure() {
	s.client.mintKey = func() (solana.PrivateKey, error) {
		return nil, errors.New("entropy exhausted")
	}
	_, _, err := s.client.InitializeProject(s.ctx, newKey(s.T()), "Rainbow", "RBW", "25")
	s.Require().Error(err)
	s.Contains(err.Error(), "entropy exhausted")
	s.Equal(KindUnknown, KindOf(err))
	s.NotErrorIs(err, ErrInvalidInput)
	s.Empty(s.transport.submitted)
}

func (s *ClientTestSuite) TestBuyTokensCreatesTokenAccount() {
	s.transport.onSubmit = func([]solana.Instruction) error {
		s.rewriteProject(func(p *Project) {
			p.TotalRaised += 2_000_000_000
			p.TokenPrice = utils.DefaultCurve().Price(p.TotalRaised, p.FundingGoal)
		})
		return nil
	}

	_, p, err := s.client.BuyTokens(s.ctx, s.trader, s.project, "2")
	s.Require().NoError(err)
	s.Equal(uint64(2_000_000_000), p.TotalRaised)
	s.Equal(uint64(21_000_000_000), p.TokenPrice)

	ixs := s.transport.lastSubmission()
	s.Require().Len(ixs, 2)
	s.Equal(solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	s.Equal(testProgramID, ixs[1].ProgramID())

	data := ixData(s.T(), ixs[1])
	s.Equal(byte(OpBuyTokens), data[0])
	s.Equal(uint64(2_000_000_000), binary.LittleEndian.Uint64(data[1:]))

	ata, _, err := solana.FindAssociatedTokenAddress(s.trader.PublicKey(), s.state.TokenMint)
	s.Require().NoError(err)
	s.Equal(ata, ixs[1].Accounts()[2].PublicKey)
}

func (s *ClientTestSuite) TestBuyTokensExistingTokenAccount() {
	ata, _, err := solana.FindAssociatedTokenAddress(s.trader.PublicKey(), s.state.TokenMint)
	s.Require().NoError(err)
	s.transport.put(ata, make([]byte, 165))

	_, _, err = s.client.BuyTokens(s.ctx, s.trader, s.project, "1")
	s.Require().NoError(err)
	s.Len(s.transport.lastSubmission(), 1)
}

func (s *ClientTestSuite) TestTradeGuards() {
	_, _, err := s.client.BuyTokens(s.ctx, s.trader, s.project, "0")
	s.ErrorIs(err, ErrInvalidInput)
	_, _, err = s.client.BuyTokens(s.ctx, s.trader, s.project, "1.0000000001")
	s.ErrorIs(err, ErrInvalidAmount)
	_, _, err = s.client.SellTokens(s.ctx, s.trader, s.project, 0)
	s.ErrorIs(err, ErrInvalidInput)

	s.rewriteProject(func(p *Project) { p.TotalRaised = p.FundingGoal })
	_, _, err = s.client.Contribute(s.ctx, s.trader, s.project, "1")
	s.ErrorIs(err, ErrInvalidInput, "goal reached")

	s.rewriteProject(func(p *Project) { p.IsActive = false })
	_, _, err = s.client.BuyTokens(s.ctx, s.trader, s.project, "1")
	s.ErrorIs(err, ErrInvalidInput, "inactive")

	s.Empty(s.transport.submitted)
}

func (s *ClientTestSuite) TestContribute() {
	_, _, err := s.client.Contribute(s.ctx, s.trader, s.project, "0.5")
	s.Require().NoError(err)
	ixs := s.transport.lastSubmission()
	data := ixData(s.T(), ixs[len(ixs)-1])
	s.Equal(byte(OpContribute), data[0])
	s.Equal(uint64(500_000_000), binary.LittleEndian.Uint64(data[1:]))
}

func (s *ClientTestSuite) TestSellTokens() {
	s.rewriteProject(func(p *Project) { p.TotalRaised = 3_000_000_000 })

	_, _, err := s.client.SellTokens(s.ctx, s.trader, s.project, 1)
	s.ErrorIs(err, ErrInvalidInput, "no token account to sell from")

	ata, _, err := solana.FindAssociatedTokenAddress(s.trader.PublicKey(), s.state.TokenMint)
	s.Require().NoError(err)
	s.transport.put(ata, make([]byte, 165))

	_, _, err = s.client.SellTokens(s.ctx, s.trader, s.project, 4)
	s.ErrorIs(err, ErrInvalidInput, "payout exceeds raised")

	_, _, err = s.client.SellTokens(s.ctx, s.trader, s.project, 2)
	s.Require().NoError(err)
	data := ixData(s.T(), s.transport.lastSubmission()[0])
	s.Equal([]byte{3, 2, 0, 0, 0, 0, 0, 0, 0}, data)
}

func (s *ClientTestSuite) TestAddMilestone() {
	s.rewriteProject(func(p *Project) { p.MilestoneCount = 2 })
	want, err := s.client.Deriver().Milestone(s.project, 2)
	s.Require().NoError(err)

	s.transport.onSubmit = func(ixs []solana.Instruction) error {
		putMilestone(s.T(), s.transport, s.project, 2, &Milestone{Title: "Beta", Description: "ship beta", Amount: 4_000_000_000})
		return nil
	}

	_, m, err := s.client.AddMilestone(s.ctx, s.authority, s.project, "Beta", "ship beta", "4")
	s.Require().NoError(err)
	s.Equal("Beta", m.Title)

	ix := s.transport.lastSubmission()[0]
	s.Equal(want.Address, ix.Accounts()[1].PublicKey)
	data := ixData(s.T(), ix)
	s.Equal(byte(OpAddMilestone), data[0])
	s.Equal(uint64(4_000_000_000), binary.LittleEndian.Uint64(data[len(data)-8:]))
}

func (s *ClientTestSuite) TestAddMilestoneGuards() {
	_, _, err := s.client.AddMilestone(s.ctx, s.authority, s.project, strings.Repeat("t", 33), "", "1")
	s.ErrorIs(err, ErrInvalidInput)
	s.Zero(s.transport.fetches)

	_, _, err = s.client.AddMilestone(s.ctx, s.trader, s.project, "t", "", "1")
	s.ErrorIs(err, ErrInvalidInput, "not the authority")

	s.rewriteProject(func(p *Project) { p.MilestoneCount = 255 })
	_, _, err = s.client.AddMilestone(s.ctx, s.authority, s.project, "t", "", "1")
	s.ErrorIs(err, ErrInvalidInput)
	s.Empty(s.transport.submitted)
}

func (s *ClientTestSuite) TestCompleteMilestone() {
	s.rewriteProject(func(p *Project) { p.MilestoneCount = 4 })
	putMilestone(s.T(), s.transport, s.project, 3, &Milestone{Title: "Launch", Amount: 1})
	putMilestone(s.T(), s.transport, s.project, 1, &Milestone{Title: "Done", IsCompleted: true, CompletedAt: 10})

	_, _, err := s.client.CompleteMilestone(s.ctx, s.authority, s.project, 1)
	s.ErrorIs(err, ErrInvalidInput, "already completed")
	_, _, err = s.client.CompleteMilestone(s.ctx, s.authority, s.project, 4)
	s.ErrorIs(err, ErrInvalidInput, "out of range")

	_, _, err = s.client.CompleteMilestone(s.ctx, s.authority, s.project, 3)
	s.Require().NoError(err)
	s.Equal([]byte{8, 3}, ixData(s.T(), s.transport.lastSubmission()[0]))
}

func (s *ClientTestSuite) TestCreateProposalUsesMilestoneAmount() {
	s.rewriteProject(func(p *Project) {
		p.MilestoneCount = 1
		p.ProposalCount = 1
	})
	putMilestone(s.T(), s.transport, s.project, 0, &Milestone{Title: "Alpha", Amount: 5_000_000_000})
	putProposal(s.T(), s.transport, s.project, 0, &Proposal{MilestoneID: 0, VotingEnd: 100, YesVotes: 1, NoVotes: 3})

	want, err := s.client.Deriver().Proposal(s.project, 1)
	s.Require().NoError(err)
	s.transport.onSubmit = func([]solana.Instruction) error {
		putProposal(s.T(), s.transport, s.project, 1, &Proposal{Title: "Fund alpha", Amount: 5_000_000_000, CreatedAt: 50_000, VotingEnd: 136_400})
		return nil
	}

	_, prop, err := s.client.CreateProposal(s.ctx, s.authority, s.project, 0, "Fund alpha", "release alpha funds")
	s.Require().NoError(err, "rejected proposal does not block the milestone")
	s.Equal(ProposalOpen, prop.Status(s.now))

	ix := s.transport.lastSubmission()[0]
	s.Equal(want.Address, ix.Accounts()[1].PublicKey)
	data := ixData(s.T(), ix)
	s.Equal(byte(0), data[len(data)-1])
	s.Equal(uint64(5_000_000_000), binary.LittleEndian.Uint64(data[len(data)-9:len(data)-1]))
}

func (s *ClientTestSuite) TestCreateProposalGuards() {
	s.rewriteProject(func(p *Project) {
		p.MilestoneCount = 2
		p.ProposalCount = 1
	})
	putMilestone(s.T(), s.transport, s.project, 0, &Milestone{Title: "Alpha", Amount: 1})
	putMilestone(s.T(), s.transport, s.project, 1, &Milestone{Title: "Beta", Amount: 1, IsCompleted: true})
	putProposal(s.T(), s.transport, s.project, 0, &Proposal{MilestoneID: 0, VotingEnd: 60_000})

	_, _, err := s.client.CreateProposal(s.ctx, s.authority, s.project, 0, "again", "")
	s.ErrorIs(err, ErrInvalidInput, "milestone already referenced by an open proposal")
	_, _, err = s.client.CreateProposal(s.ctx, s.authority, s.project, 1, "done", "")
	s.ErrorIs(err, ErrInvalidInput, "completed milestone")
	_, _, err = s.client.CreateProposal(s.ctx, s.authority, s.project, 2, "missing", "")
	s.ErrorIs(err, ErrInvalidInput, "out of range")
	_, _, err = s.client.CreateProposal(s.ctx, s.authority, s.project, 0, "t", strings.Repeat("d", 257))
	s.ErrorIs(err, ErrInvalidInput)

	s.Empty(s.transport.submitted)
}

func (s *ClientTestSuite) TestVote() {
	s.rewriteProject(func(p *Project) { p.ProposalCount = 1 })
	putProposal(s.T(), s.transport, s.project, 0, &Proposal{CreatedAt: 1000, VotingEnd: 87_400})

	s.transport.onSubmit = func([]solana.Instruction) error {
		putProposal(s.T(), s.transport, s.project, 0, &Proposal{CreatedAt: 1000, VotingEnd: 87_400, YesVotes: 1})
		return nil
	}
	voter := newKey(s.T())
	_, prop, err := s.client.Vote(s.ctx, voter, s.project, 0, true)
	s.Require().NoError(err)
	s.Equal(uint64(1), prop.YesVotes)
	s.False(prop.Provisional)

	ix := s.transport.lastSubmission()[0]
	s.Equal([]byte{5, 0, 0, 0, 0, 0, 0, 0, 0, 1}, ixData(s.T(), ix))
	s.True(ix.Accounts()[2].IsSigner)
	s.False(ix.Accounts()[2].IsWritable)

	s.now = time.Unix(87_400, 0)
	_, _, err = s.client.Vote(s.ctx, voter, s.project, 0, false)
	s.ErrorIs(err, ErrInvalidInput, "voting closed")
}

func (s *ClientTestSuite) TestReleaseFunds() {
	s.rewriteProject(func(p *Project) {
		p.MilestoneCount = 1
		p.ProposalCount = 2
	})
	putMilestone(s.T(), s.transport, s.project, 0, &Milestone{Title: "Alpha", Amount: 5_000_000_000})
	putProposal(s.T(), s.transport, s.project, 0, &Proposal{MilestoneID: 0, Amount: 5_000_000_000, VotingEnd: 40_000, YesVotes: 3, NoVotes: 1})
	putProposal(s.T(), s.transport, s.project, 1, &Proposal{MilestoneID: 0, VotingEnd: 60_000, YesVotes: 9})

	_, _, err := s.client.ReleaseFunds(s.ctx, s.authority, s.project, 1)
	s.ErrorIs(err, ErrInvalidInput, "still open")

	bt := &balanceTransport{fakeTransport: s.transport, balances: map[solana.PublicKey]uint64{s.project: 4_000_000_000}}
	client := s.newClient(bt)
	_, _, err = client.ReleaseFunds(s.ctx, s.authority, s.project, 0)
	s.ErrorIs(err, ErrInvalidInput, "balance below milestone amount")
	s.Empty(s.transport.submitted)

	bt.balances[s.project] = 6_000_000_000
	s.transport.onSubmit = func([]solana.Instruction) error {
		putProposal(s.T(), s.transport, s.project, 0, &Proposal{MilestoneID: 0, Amount: 5_000_000_000, VotingEnd: 40_000, YesVotes: 3, NoVotes: 1, IsExecuted: true})
		return nil
	}
	_, prop, err := client.ReleaseFunds(s.ctx, s.authority, s.project, 0)
	s.Require().NoError(err)
	s.Equal(ProposalExecuted, prop.Status(s.now))
	s.Equal([]byte{6, 0, 0, 0, 0, 0, 0, 0, 0}, ixData(s.T(), s.transport.lastSubmission()[0]))

	_, _, err = client.ReleaseFunds(s.ctx, s.authority, s.project, 0)
	s.ErrorIs(err, ErrInvalidInput, "executed is terminal")
}

func (s *ClientTestSuite) TestSubmitFailuresAreClassified() {
	s.transport.onSubmit = func([]solana.Instruction) error {
		return newError(KindRemoteRejected, "confirm", `{"InstructionError":[0,{"Custom":0}]} ProjectNotActive`, nil)
	}
	_, _, err := s.client.BuyTokens(s.ctx, s.trader, s.project, "1")
	s.ErrorIs(err, ErrRemoteRejected)
	s.Contains(err.Error(), "ProjectNotActive")
	s.False(Retryable(err))

	s.transport.onSubmit = func([]solana.Instruction) error { return errors.New("connection reset") }
	_, _, err = s.client.BuyTokens(s.ctx, s.trader, s.project, "1")
	s.Equal(KindTransport, KindOf(err))
	s.True(Retryable(err))
}

func (s *ClientTestSuite) TestReconcile() {
	p, err := s.client.Reconcile(s.ctx, s.project)
	s.NoError(err)
	s.NotNil(p)

	s.rewriteProject(func(p *Project) { p.TokenPrice = 1 })
	p, err = s.client.Reconcile(s.ctx, s.project)
	s.Require().Error(err)
	s.NotNil(p, "project is returned with the mismatch")
	s.ErrorIs(err, ErrPriceMismatch)

	var mismatch *PriceMismatchError
	s.Require().ErrorAs(err, &mismatch)
	s.Equal(uint64(1_000_000_000), mismatch.Expected)
	s.Equal(uint64(1), mismatch.Actual)
}

func (s *ClientTestSuite) TestListings() {
	s.rewriteProject(func(p *Project) {
		p.MilestoneCount = 2
		p.ProposalCount = 2
	})
	putMilestone(s.T(), s.transport, s.project, 0, &Milestone{Title: "A", IsCompleted: true})
	putMilestone(s.T(), s.transport, s.project, 1, &Milestone{Title: "B"})
	putProposal(s.T(), s.transport, s.project, 0, &Proposal{Title: "P0", VotingEnd: 60_000})
	putProposal(s.T(), s.transport, s.project, 1, &Proposal{Title: "P1", VotingEnd: 10, NoVotes: 1})

	milestones, err := s.client.ListMilestones(s.ctx, s.project)
	s.Require().NoError(err)
	s.Require().Len(milestones, 2)
	s.Equal(MilestoneCompleted, milestones[0].Status)
	s.Equal(MilestonePending, milestones[1].Status)
	s.Equal("B", milestones[1].Title)

	proposals, err := s.client.ListProposals(s.ctx, s.project)
	s.Require().NoError(err)
	s.Require().Len(proposals, 2)
	s.Equal(ProposalOpen, proposals[0].Status)
	s.Equal(ProposalRejected, proposals[1].Status)
	s.Equal(uint8(1), proposals[1].Index)
}

func (s *ClientTestSuite) TestQuotes() {
	buy, err := s.client.QuoteBuy(s.ctx, s.project, "3")
	s.Require().NoError(err)
	s.Equal(uint64(3), buy.GetAmount)
	s.Equal(uint64(31_000_000_000), buy.PriceAfterSwap)

	_, err = s.client.QuoteSell(s.ctx, s.project, 1)
	s.ErrorIs(err, ErrInvalidInput, "nothing raised yet")
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("x")))
	require.False(t, Retryable(nil))
}
