package unicorn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/internal/monitoring"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/utils"
)

// Config is the deployment the client talks to.
type Config struct {
	ProgramID    solana.PublicKey
	UnitScale    uint64
	VotingWindow time.Duration
	Curve        utils.LinearCurve
	// Now is the clock used for proposal status; nil means time.Now.
	Now func() time.Time
}

// Client drives the launchpad program: it derives addresses, encodes
// instructions, submits them and returns freshly fetched records. It keeps
// no cache, so every read is a new fetch.
type Client struct {
	cfg       Config
	deriver   Deriver
	transport Transport
	log       *logrus.Entry

	// source of fresh mint keys
	mintKey func() (solana.PrivateKey, error)
}

func NewClient(cfg Config, transport Transport, log *logrus.Entry) (*Client, error) {
	if cfg.ProgramID.IsZero() {
		return nil, invalidInput("new client", "program id is required")
	}
	if transport == nil {
		return nil, invalidInput("new client", "transport is required")
	}
	if cfg.UnitScale == 0 {
		cfg.UnitScale = DefaultUnitScale
	}
	if cfg.VotingWindow <= 0 {
		cfg.VotingWindow = DefaultVotingWindow
	}
	if cfg.Curve == (utils.LinearCurve{}) {
		cfg.Curve = utils.DefaultCurve()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		cfg:       cfg,
		deriver:   NewDeriver(cfg.ProgramID),
		transport: transport,
		log:       log.WithField("program", cfg.ProgramID.String()),
		mintKey:   solana.NewRandomPrivateKey,
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) Deriver() Deriver {
	return c.deriver
}

// ProjectAddress derives the project account of authority.
func (c *Client) ProjectAddress(authority solana.PublicKey) (solana.PublicKey, error) {
	r, err := c.deriver.Project(authority)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return r.Address, nil
}

// InitializeProject creates the caller's project together with a fresh mint.
// fundingGoal is in human units.
func (c *Client) InitializeProject(ctx context.Context, authority solana.PrivateKey, name, symbol, fundingGoal string) (solana.Signature, *Project, error) {
	const op = "initialize project"
	goal, err := ToBaseUnits(fundingGoal, c.cfg.UnitScale)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if goal == 0 {
		return solana.Signature{}, nil, invalidInput(op, "funding goal must be positive")
	}
	ix := &InitializeProject{Name: name, Symbol: symbol, FundingGoal: goal}
	if err := ix.validate(); err != nil {
		return solana.Signature{}, nil, err
	}

	pda, err := c.deriver.Project(authority.PublicKey())
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if _, err := c.transport.Fetch(ctx, pda.Address); err == nil {
		return solana.Signature{}, nil, invalidInput(op, "project %s already exists", pda.Address)
	} else if !errors.Is(err, ErrNotFound) {
		return solana.Signature{}, nil, err
	}

	mint, err := c.mintKey()
	if err != nil {
		return solana.Signature{}, nil, fmt.Errorf("%s: generate mint key: %w", op, err)
	}
	ix.Project = pda.Address
	ix.Authority = authority.PublicKey()
	ix.Mint = mint.PublicKey()

	sig, err := c.submit(ctx, ix, []solana.PrivateKey{authority, mint})
	if err != nil {
		return sig, nil, err
	}
	p, err := c.GetProject(ctx, pda.Address)
	return sig, p, err
}

// Contribute pays amount (human units) into a project that has not reached
// its goal.
func (c *Client) Contribute(ctx context.Context, contributor solana.PrivateKey, project solana.PublicKey, amount string) (solana.Signature, *Project, error) {
	return c.trade(ctx, OpContribute, contributor, project, amount)
}

// BuyTokens pays amount (human units) for tokens at the stored price.
func (c *Client) BuyTokens(ctx context.Context, buyer solana.PrivateKey, project solana.PublicKey, amount string) (solana.Signature, *Project, error) {
	return c.trade(ctx, OpBuyTokens, buyer, project, amount)
}

// SellTokens sells tokens, counted in raw token units, back to the project.
func (c *Client) SellTokens(ctx context.Context, seller solana.PrivateKey, project solana.PublicKey, tokens uint64) (solana.Signature, *Project, error) {
	const op = "sell tokens"
	if tokens == 0 {
		return solana.Signature{}, nil, invalidInput(op, "amount must be positive")
	}
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if !p.IsActive {
		return solana.Signature{}, nil, invalidInput(op, "project %s is not active", project)
	}
	if _, err := c.cfg.Curve.QuoteSell(tokens, p.TokenPrice, p.TotalRaised, p.FundingGoal); err != nil {
		return solana.Signature{}, nil, newError(KindInvalidInput, op, "", err)
	}

	accounts, pre, err := c.tradeAccounts(ctx, seller.PublicKey(), project, p.TokenMint)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if len(pre) > 0 {
		return solana.Signature{}, nil, invalidInput(op, "seller has no token account for mint %s", p.TokenMint)
	}
	sig, err := c.submit(ctx, &SellTokens{TradeAccounts: accounts, Amount: tokens}, []solana.PrivateKey{seller})
	if err != nil {
		return sig, nil, err
	}
	p, err = c.GetProject(ctx, project)
	return sig, p, err
}

func (c *Client) trade(ctx context.Context, opcode Opcode, trader solana.PrivateKey, project solana.PublicKey, amount string) (solana.Signature, *Project, error) {
	op := opcode.String()
	units, err := ToBaseUnits(amount, c.cfg.UnitScale)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if units == 0 {
		return solana.Signature{}, nil, invalidInput(op, "amount must be positive")
	}

	p, err := c.GetProject(ctx, project)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if !p.IsActive {
		return solana.Signature{}, nil, invalidInput(op, "project %s is not active", project)
	}
	if opcode == OpContribute && p.TotalRaised >= p.FundingGoal {
		return solana.Signature{}, nil, invalidInput(op, "project %s has reached its funding goal", project)
	}

	accounts, pre, err := c.tradeAccounts(ctx, trader.PublicKey(), project, p.TokenMint)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	var ix Instruction
	if opcode == OpContribute {
		ix = &Contribute{TradeAccounts: accounts, Amount: units}
	} else {
		ix = &BuyTokens{TradeAccounts: accounts, Amount: units}
	}
	sig, err := c.submit(ctx, ix, []solana.PrivateKey{trader}, pre...)
	if err != nil {
		return sig, nil, err
	}
	p, err = c.GetProject(ctx, project)
	return sig, p, err
}

// tradeAccounts resolves the trader's associated token account and returns a
// create instruction to prepend when it does not exist yet.
func (c *Client) tradeAccounts(ctx context.Context, trader, project, mint solana.PublicKey) (TradeAccounts, []solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(trader, mint)
	if err != nil {
		return TradeAccounts{}, nil, newError(KindAddressDerivation, "token account", "", err)
	}
	accounts := TradeAccounts{Project: project, Trader: trader, TokenAccount: ata, Mint: mint}

	_, err = c.transport.Fetch(ctx, ata)
	switch {
	case err == nil:
		return accounts, nil, nil
	case errors.Is(err, ErrNotFound):
		c.log.WithField("token_account", ata.String()).Debug("token account missing, creating")
		create := associatedtokenaccount.NewCreateInstruction(trader, trader, mint).Build()
		return accounts, []solana.Instruction{create}, nil
	default:
		return TradeAccounts{}, nil, err
	}
}

// AddMilestone appends a milestone at the project's next free index.
// amount is in human units.
func (c *Client) AddMilestone(ctx context.Context, authority solana.PrivateKey, project solana.PublicKey, title, description, amount string) (solana.Signature, *Milestone, error) {
	const op = "add milestone"
	units, err := ToBaseUnits(amount, c.cfg.UnitScale)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	ix := &AddMilestone{Title: title, Description: description, Amount: units}
	if err := ix.validate(); err != nil {
		return solana.Signature{}, nil, err
	}

	p, err := c.ownedProject(ctx, op, authority.PublicKey(), project)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if p.MilestoneCount == math.MaxUint8 {
		return solana.Signature{}, nil, invalidInput(op, "project %s has no free milestone index", project)
	}
	index := p.MilestoneCount
	pda, err := c.deriver.Milestone(project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	ix.Project = project
	ix.Milestone = pda.Address
	ix.Authority = authority.PublicKey()

	sig, err := c.submit(ctx, ix, []solana.PrivateKey{authority})
	if err != nil {
		return sig, nil, err
	}
	m, err := c.GetMilestone(ctx, project, index)
	return sig, m, err
}

// CompleteMilestone marks a pending milestone completed. It does not require
// a proposal.
func (c *Client) CompleteMilestone(ctx context.Context, authority solana.PrivateKey, project solana.PublicKey, index uint8) (solana.Signature, *Milestone, error) {
	const op = "complete milestone"
	p, err := c.ownedProject(ctx, op, authority.PublicKey(), project)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if index >= p.MilestoneCount {
		return solana.Signature{}, nil, invalidInput(op, "milestone %d out of range, project has %d", index, p.MilestoneCount)
	}
	m, err := c.GetMilestone(ctx, project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if m.Status() != MilestonePending {
		return solana.Signature{}, nil, invalidInput(op, "milestone %d is already completed", index)
	}
	pda, err := c.deriver.Milestone(project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}

	sig, err := c.submit(ctx, &CompleteMilestone{
		Project:     project,
		Milestone:   pda.Address,
		Authority:   authority.PublicKey(),
		MilestoneID: index,
	}, []solana.PrivateKey{authority})
	if err != nil {
		return sig, nil, err
	}
	m, err = c.GetMilestone(ctx, project, index)
	return sig, m, err
}

// CreateProposal opens a vote on releasing a milestone's funds. The amount
// is taken from the milestone, which is authoritative.
func (c *Client) CreateProposal(ctx context.Context, authority solana.PrivateKey, project solana.PublicKey, milestoneID uint8, title, description string) (solana.Signature, *Proposal, error) {
	const op = "create proposal"
	ix := &CreateProposal{Title: title, Description: description, MilestoneID: milestoneID}
	if err := ix.validate(); err != nil {
		return solana.Signature{}, nil, err
	}

	p, err := c.ownedProject(ctx, op, authority.PublicKey(), project)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if milestoneID >= p.MilestoneCount {
		return solana.Signature{}, nil, invalidInput(op, "milestone %d out of range, project has %d", milestoneID, p.MilestoneCount)
	}
	if p.ProposalCount == math.MaxUint8 {
		return solana.Signature{}, nil, invalidInput(op, "project %s has no free proposal index", project)
	}
	m, err := c.GetMilestone(ctx, project, milestoneID)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if m.Status() != MilestonePending {
		return solana.Signature{}, nil, invalidInput(op, "milestone %d is already completed", milestoneID)
	}
	proposals, err := c.listProposals(ctx, project, p.ProposalCount)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	for _, e := range proposals {
		if e.MilestoneID == milestoneID && e.Status != ProposalRejected {
			return solana.Signature{}, nil, invalidInput(op, "milestone %d is already referenced by %s proposal %d", milestoneID, e.Status, e.Index)
		}
	}

	index := p.ProposalCount
	pda, err := c.deriver.Proposal(project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	ix.Project = project
	ix.Proposal = pda.Address
	ix.Authority = authority.PublicKey()
	ix.Amount = m.Amount

	sig, err := c.submit(ctx, ix, []solana.PrivateKey{authority})
	if err != nil {
		return sig, nil, err
	}
	prop, err := c.GetProposal(ctx, project, index)
	return sig, prop, err
}

// Vote casts one yes or no vote on an open proposal. The program keeps no
// per-voter record, so calling twice counts twice.
func (c *Client) Vote(ctx context.Context, voter solana.PrivateKey, project solana.PublicKey, index uint8, approve bool) (solana.Signature, *Proposal, error) {
	const op = "vote"
	prop, err := c.GetProposal(ctx, project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if st := prop.Status(c.cfg.Now()); st != ProposalOpen {
		return solana.Signature{}, nil, invalidInput(op, "proposal %d is %s", index, st)
	}
	pda, err := c.deriver.Proposal(project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}

	sig, err := c.submit(ctx, &Vote{
		Project:    project,
		Proposal:   pda.Address,
		Voter:      voter.PublicKey(),
		ProposalID: uint64(index),
		Approve:    approve,
	}, []solana.PrivateKey{voter})
	if err != nil {
		return sig, nil, err
	}
	prop, err = c.GetProposal(ctx, project, index)
	return sig, prop, err
}

// ReleaseFunds executes a passed proposal, paying the milestone amount to
// the authority. When the transport can read balances the project balance
// is checked first.
func (c *Client) ReleaseFunds(ctx context.Context, authority solana.PrivateKey, project solana.PublicKey, index uint8) (solana.Signature, *Proposal, error) {
	const op = "release funds"
	if _, err := c.ownedProject(ctx, op, authority.PublicKey(), project); err != nil {
		return solana.Signature{}, nil, err
	}
	prop, err := c.GetProposal(ctx, project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if st := prop.Status(c.cfg.Now()); st != ProposalPassed {
		return solana.Signature{}, nil, invalidInput(op, "proposal %d is %s", index, st)
	}

	m, err := c.GetMilestone(ctx, project, prop.MilestoneID)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if m.Amount != prop.Amount {
		c.log.WithFields(logrus.Fields{
			"proposal":         index,
			"milestone":        prop.MilestoneID,
			"proposal_amount":  prop.Amount,
			"milestone_amount": m.Amount,
		}).Warn("proposal amount differs from milestone amount, milestone is authoritative")
	}
	if br, ok := c.transport.(BalanceReader); ok {
		bal, err := br.Balance(ctx, project)
		if err != nil {
			return solana.Signature{}, nil, err
		}
		if bal < m.Amount {
			return solana.Signature{}, nil, invalidInput(op, "project balance %d does not cover milestone amount %d", bal, m.Amount)
		}
	}

	pda, err := c.deriver.Proposal(project, index)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	sig, err := c.submit(ctx, &ReleaseFunds{
		Project:    project,
		Proposal:   pda.Address,
		Authority:  authority.PublicKey(),
		ProposalID: uint64(index),
	}, []solana.PrivateKey{authority})
	if err != nil {
		return sig, nil, err
	}
	prop, err = c.GetProposal(ctx, project, index)
	return sig, prop, err
}

// GetProject fetches and decodes a project, checking that its stored
// authority and bump derive the address it was read from.
func (c *Client) GetProject(ctx context.Context, address solana.PublicKey) (*Project, error) {
	raw, err := c.transport.Fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	p, err := DecodeProject(raw)
	if err != nil {
		return nil, err
	}
	if err := c.deriver.VerifyProject(address, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) GetProposal(ctx context.Context, project solana.PublicKey, index uint8) (*Proposal, error) {
	pda, err := c.deriver.Proposal(project, index)
	if err != nil {
		return nil, err
	}
	raw, err := c.transport.Fetch(ctx, pda.Address)
	if err != nil {
		return nil, err
	}
	return DecodeProposal(raw)
}

func (c *Client) GetMilestone(ctx context.Context, project solana.PublicKey, index uint8) (*Milestone, error) {
	pda, err := c.deriver.Milestone(project, index)
	if err != nil {
		return nil, err
	}
	raw, err := c.transport.Fetch(ctx, pda.Address)
	if err != nil {
		return nil, err
	}
	return DecodeMilestone(raw)
}

// MilestoneEntry is a milestone with its index, address and status.
type MilestoneEntry struct {
	Index   uint8            `json:"index"`
	Address solana.PublicKey `json:"address"`
	Status  MilestoneStatus  `json:"status"`
	*Milestone
}

// ProposalEntry is a proposal with its index, address and status at the
// time it was listed.
type ProposalEntry struct {
	Index   uint8            `json:"index"`
	Address solana.PublicKey `json:"address"`
	Status  ProposalStatus   `json:"status"`
	*Proposal
}

// ListMilestones fetches milestones 0..MilestoneCount-1 of a project.
func (c *Client) ListMilestones(ctx context.Context, project solana.PublicKey) ([]MilestoneEntry, error) {
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	out := make([]MilestoneEntry, 0, p.MilestoneCount)
	for i := 0; i < int(p.MilestoneCount); i++ {
		pda, err := c.deriver.Milestone(project, uint8(i))
		if err != nil {
			return nil, err
		}
		m, err := c.GetMilestone(ctx, project, uint8(i))
		if err != nil {
			return nil, err
		}
		out = append(out, MilestoneEntry{Index: uint8(i), Address: pda.Address, Status: m.Status(), Milestone: m})
	}
	return out, nil
}

// ListProposals fetches proposals 0..ProposalCount-1 of a project.
func (c *Client) ListProposals(ctx context.Context, project solana.PublicKey) ([]ProposalEntry, error) {
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	return c.listProposals(ctx, project, p.ProposalCount)
}

func (c *Client) listProposals(ctx context.Context, project solana.PublicKey, count uint8) ([]ProposalEntry, error) {
	now := c.cfg.Now()
	out := make([]ProposalEntry, 0, count)
	for i := 0; i < int(count); i++ {
		pda, err := c.deriver.Proposal(project, uint8(i))
		if err != nil {
			return nil, err
		}
		prop, err := c.GetProposal(ctx, project, uint8(i))
		if err != nil {
			return nil, err
		}
		out = append(out, ProposalEntry{Index: uint8(i), Address: pda.Address, Status: prop.Status(now), Proposal: prop})
	}
	return out, nil
}

// CheckPrice compares the stored price of p with the local curve.
func (c *Client) CheckPrice(address solana.PublicKey, p *Project) error {
	expected := c.cfg.Curve.Price(p.TotalRaised, p.FundingGoal)
	if expected == p.TokenPrice {
		return nil
	}
	monitoring.RecordPriceMismatch(address.String())
	c.log.WithFields(logrus.Fields{
		"project":  address.String(),
		"expected": expected,
		"actual":   p.TokenPrice,
	}).Warn("stored token price disagrees with curve")
	return &PriceMismatchError{Project: address.String(), Expected: expected, Actual: p.TokenPrice}
}

// Reconcile fetches a project and checks its price. The project is returned
// alongside a *PriceMismatchError so callers can still show it.
func (c *Client) Reconcile(ctx context.Context, address solana.PublicKey) (*Project, error) {
	p, err := c.GetProject(ctx, address)
	if err != nil {
		return nil, err
	}
	return p, c.CheckPrice(address, p)
}

// QuoteBuy predicts a buy of amount human units against the current state.
func (c *Client) QuoteBuy(ctx context.Context, project solana.PublicKey, amount string) (*utils.TradeResult, error) {
	units, err := ToBaseUnits(amount, c.cfg.UnitScale)
	if err != nil {
		return nil, err
	}
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	res, err := c.cfg.Curve.QuoteBuy(units, p.TokenPrice, p.TotalRaised, p.FundingGoal)
	if err != nil {
		return nil, newError(KindInvalidInput, "quote buy", "", err)
	}
	return res, nil
}

// QuoteSell predicts a sale of tokens raw token units.
func (c *Client) QuoteSell(ctx context.Context, project solana.PublicKey, tokens uint64) (*utils.TradeResult, error) {
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	res, err := c.cfg.Curve.QuoteSell(tokens, p.TokenPrice, p.TotalRaised, p.FundingGoal)
	if err != nil {
		return nil, newError(KindInvalidInput, "quote sell", "", err)
	}
	return res, nil
}

func (c *Client) ownedProject(ctx context.Context, op string, authority, project solana.PublicKey) (*Project, error) {
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if !p.Authority.Equals(authority) {
		return nil, invalidInput(op, "%s is not the authority of project %s", authority, project)
	}
	return p, nil
}

func (c *Client) submit(ctx context.Context, ix Instruction, signers []solana.PrivateKey, pre ...solana.Instruction) (solana.Signature, error) {
	built, err := Build(c.cfg.ProgramID, ix)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs := append(pre, built)

	entry := c.log.WithFields(logrus.Fields{
		"instruction": ix.Opcode().String(),
		"signer":      signers[0].PublicKey().String(),
	})
	entry.Debug("submitting")

	sig, err := c.transport.Submit(ctx, ixs, signers)
	if err != nil {
		kind := KindOf(err)
		if kind == KindUnknown {
			err = newError(KindTransport, "submit", "", err)
			kind = KindTransport
		}
		monitoring.RecordSubmission(ix.Opcode().String(), kind.String())
		entry.WithError(err).Warn("submission failed")
		return sig, err
	}
	monitoring.RecordSubmission(ix.Opcode().String(), "ok")
	entry.WithField("signature", sig.String()).Info("submitted")
	return sig, nil
}
