package unicorn

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed tags, hashed as raw ASCII.
var (
	SeedProject   = []byte("project")
	SeedProposal  = []byte("proposal")
	SeedMilestone = []byte("milestone")
)

// PDAResult is a derived address plus the bump that made it fall off the curve.
type PDAResult struct {
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

// Deriver computes the program-owned addresses used by the launchpad program.
// It is stateless and safe for concurrent use.
type Deriver struct {
	ProgramID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) Deriver {
	return Deriver{ProgramID: programID}
}

// Derive runs the program's bump search over tag followed by parts.
func (d Deriver) Derive(tag []byte, parts ...[]byte) (PDAResult, error) {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, tag)
	seeds = append(seeds, parts...)

	address, bump, err := solana.FindProgramAddress(seeds, d.ProgramID)
	if err != nil {
		return PDAResult{}, newError(KindAddressDerivation, "derive", fmt.Sprintf("failed to find %s PDA", tag), err)
	}
	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// Project derives the project account owned by authority.
func (d Deriver) Project(authority solana.PublicKey) (PDAResult, error) {
	return d.Derive(SeedProject, authority[:])
}

// Proposal derives the proposal at index under project.
func (d Deriver) Proposal(project solana.PublicKey, index uint8) (PDAResult, error) {
	return d.Derive(SeedProposal, project[:], []byte{index})
}

// Milestone derives the milestone at index under project.
func (d Deriver) Milestone(project solana.PublicKey, index uint8) (PDAResult, error) {
	return d.Derive(SeedMilestone, project[:], []byte{index})
}

// VerifyProject checks that a decoded project's authority and bump reproduce
// the address it was fetched from.
func (d Deriver) VerifyProject(address solana.PublicKey, p *Project) error {
	derived, err := solana.CreateProgramAddress(
		[][]byte{SeedProject, p.Authority[:], {p.Bump}},
		d.ProgramID,
	)
	if err != nil {
		return malformed("verify project", "bump %d does not derive a program address: %v", p.Bump, err)
	}
	if !derived.Equals(address) {
		return malformed("verify project", "authority %s derives %s, fetched from %s", p.Authority, derived, address)
	}
	return nil
}

// ChildAddresses derives every milestone and proposal address of a project
// up to the given counters.
func (d Deriver) ChildAddresses(project solana.PublicKey, milestoneCount, proposalCount uint8) (milestones, proposals []PDAResult, err error) {
	milestones = make([]PDAResult, 0, milestoneCount)
	for i := 0; i < int(milestoneCount); i++ {
		r, err := d.Milestone(project, uint8(i))
		if err != nil {
			return nil, nil, err
		}
		milestones = append(milestones, r)
	}

	proposals = make([]PDAResult, 0, proposalCount)
	for i := 0; i < int(proposalCount); i++ {
		r, err := d.Proposal(project, uint8(i))
		if err != nil {
			return nil, nil, err
		}
		proposals = append(proposals, r)
	}
	return milestones, proposals, nil
}
