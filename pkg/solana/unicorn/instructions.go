package unicorn

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Opcode is the leading byte of every instruction payload.
type Opcode uint8

const (
	OpInitializeProject Opcode = 0
	OpContribute        Opcode = 1
	OpBuyTokens         Opcode = 2
	OpSellTokens        Opcode = 3
	OpCreateProposal    Opcode = 4
	OpVote              Opcode = 5
	OpReleaseFunds      Opcode = 6
	OpAddMilestone      Opcode = 7
	OpCompleteMilestone Opcode = 8
)

// addMilestoneReserved is the zero padding between the length prefixes and
// the text of AddMilestone.
const addMilestoneReserved = 24

var opcodeNames = map[Opcode]string{
	OpInitializeProject: "InitializeProject",
	OpContribute:        "Contribute",
	OpBuyTokens:         "BuyTokens",
	OpSellTokens:        "SellTokens",
	OpCreateProposal:    "CreateProposal",
	OpVote:              "Vote",
	OpReleaseFunds:      "ReleaseFunds",
	OpAddMilestone:      "AddMilestone",
	OpCompleteMilestone: "CompleteMilestone",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Instruction is implemented only by the variants in this file. Each variant
// owns its typed payload and the accounts it touches.
type Instruction interface {
	Opcode() Opcode
	AccountMetas() solana.AccountMetaSlice
	validate() error
	writePayload(w payloadWriter)
}

type payloadWriter struct {
	*bytes.Buffer
}

func (w payloadWriter) u8(v uint8) {
	w.WriteByte(v)
}

func (w payloadWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w payloadWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func (w payloadWriter) zeros(n int) {
	w.Write(make([]byte, n))
}

func checkText(op, name, s string, max int) error {
	if reason := textProblem(s, max); reason != "" {
		return invalidInput(op, "%s %s", name, reason)
	}
	return nil
}

// Encode returns the opcode byte followed by the packed payload. Validation
// runs first, so nothing is produced for bad input.
func Encode(ix Instruction) ([]byte, error) {
	if err := ix.validate(); err != nil {
		return nil, err
	}
	w := payloadWriter{new(bytes.Buffer)}
	w.u8(uint8(ix.Opcode()))
	ix.writePayload(w)
	return w.Bytes(), nil
}

// Build encodes ix and attaches its accounts for programID.
func Build(programID solana.PublicKey, ix Instruction) (solana.Instruction, error) {
	data, err := Encode(ix)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, ix.AccountMetas(), data), nil
}

// InitializeProject creates the project account and its mint in one step.
// Mint must co-sign.
type InitializeProject struct {
	Project     solana.PublicKey
	Authority   solana.PublicKey
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	FundingGoal uint64
}

func (ix *InitializeProject) Opcode() Opcode { return OpInitializeProject }

func (ix *InitializeProject) validate() error {
	if err := checkText("initialize project", "name", ix.Name, MaxNameLen); err != nil {
		return err
	}
	return checkText("initialize project", "symbol", ix.Symbol, MaxSymbolLen)
}

func (ix *InitializeProject) writePayload(w payloadWriter) {
	w.u32(uint32(len(ix.Name)))
	w.u32(uint32(len(ix.Symbol)))
	w.WriteString(ix.Name)
	w.WriteString(ix.Symbol)
	w.u64(ix.FundingGoal)
}

func (ix *InitializeProject) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, true, false),
		solana.NewAccountMeta(ix.Authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(ix.Mint, true, true),
	}
}

// TradeAccounts are the accounts shared by Contribute, BuyTokens and SellTokens.
type TradeAccounts struct {
	Project      solana.PublicKey
	Trader       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey
}

func (a TradeAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Project, true, false),
		solana.NewAccountMeta(a.Trader, true, true),
		solana.NewAccountMeta(a.TokenAccount, true, false),
		solana.NewAccountMeta(a.Mint, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

// Contribute pays Amount into the project and mints tokens at the current
// price. It behaves like BuyTokens but refuses once the goal is reached.
type Contribute struct {
	TradeAccounts
	Amount uint64
}

func (ix *Contribute) Opcode() Opcode                        { return OpContribute }
func (ix *Contribute) validate() error                       { return nil }
func (ix *Contribute) writePayload(w payloadWriter)          { w.u64(ix.Amount) }
func (ix *Contribute) AccountMetas() solana.AccountMetaSlice { return ix.metas() }

// BuyTokens pays Amount smallest units for tokens at the current price.
type BuyTokens struct {
	TradeAccounts
	Amount uint64
}

func (ix *BuyTokens) Opcode() Opcode                        { return OpBuyTokens }
func (ix *BuyTokens) validate() error                       { return nil }
func (ix *BuyTokens) writePayload(w payloadWriter)          { w.u64(ix.Amount) }
func (ix *BuyTokens) AccountMetas() solana.AccountMetaSlice { return ix.metas() }

// SellTokens burns Amount tokens and pays back Amount*price.
type SellTokens struct {
	TradeAccounts
	Amount uint64
}

func (ix *SellTokens) Opcode() Opcode                        { return OpSellTokens }
func (ix *SellTokens) validate() error                       { return nil }
func (ix *SellTokens) writePayload(w payloadWriter)          { w.u64(ix.Amount) }
func (ix *SellTokens) AccountMetas() solana.AccountMetaSlice { return ix.metas() }

type CreateProposal struct {
	Project     solana.PublicKey
	Proposal    solana.PublicKey
	Authority   solana.PublicKey
	Title       string
	Description string
	Amount      uint64
	MilestoneID uint8
}

func (ix *CreateProposal) Opcode() Opcode { return OpCreateProposal }

func (ix *CreateProposal) validate() error {
	if err := checkText("create proposal", "title", ix.Title, MaxTitleLen); err != nil {
		return err
	}
	return checkText("create proposal", "description", ix.Description, MaxDescriptionLen)
}

func (ix *CreateProposal) writePayload(w payloadWriter) {
	w.u32(uint32(len(ix.Title)))
	w.u32(uint32(len(ix.Description)))
	w.WriteString(ix.Title)
	w.WriteString(ix.Description)
	w.u64(ix.Amount)
	w.u8(ix.MilestoneID)
}

func (ix *CreateProposal) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, true, false),
		solana.NewAccountMeta(ix.Proposal, true, false),
		solana.NewAccountMeta(ix.Authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

type Vote struct {
	Project    solana.PublicKey
	Proposal   solana.PublicKey
	Voter      solana.PublicKey
	ProposalID uint64
	Approve    bool
}

func (ix *Vote) Opcode() Opcode  { return OpVote }
func (ix *Vote) validate() error { return nil }

func (ix *Vote) writePayload(w payloadWriter) {
	w.u64(ix.ProposalID)
	if ix.Approve {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (ix *Vote) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, false, false),
		solana.NewAccountMeta(ix.Proposal, true, false),
		solana.NewAccountMeta(ix.Voter, false, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

type ReleaseFunds struct {
	Project    solana.PublicKey
	Proposal   solana.PublicKey
	Authority  solana.PublicKey
	ProposalID uint64
}

func (ix *ReleaseFunds) Opcode() Opcode               { return OpReleaseFunds }
func (ix *ReleaseFunds) validate() error              { return nil }
func (ix *ReleaseFunds) writePayload(w payloadWriter) { w.u64(ix.ProposalID) }

func (ix *ReleaseFunds) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, true, false),
		solana.NewAccountMeta(ix.Proposal, true, false),
		solana.NewAccountMeta(ix.Authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

type AddMilestone struct {
	Project     solana.PublicKey
	Milestone   solana.PublicKey
	Authority   solana.PublicKey
	Title       string
	Description string
	Amount      uint64
}

func (ix *AddMilestone) Opcode() Opcode { return OpAddMilestone }

func (ix *AddMilestone) validate() error {
	if err := checkText("add milestone", "title", ix.Title, MaxTitleLen); err != nil {
		return err
	}
	return checkText("add milestone", "description", ix.Description, MaxDescriptionLen)
}

func (ix *AddMilestone) writePayload(w payloadWriter) {
	w.u32(uint32(len(ix.Title)))
	w.u32(uint32(len(ix.Description)))
	w.zeros(addMilestoneReserved)
	w.WriteString(ix.Title)
	w.WriteString(ix.Description)
	w.u64(ix.Amount)
}

func (ix *AddMilestone) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, true, false),
		solana.NewAccountMeta(ix.Milestone, true, false),
		solana.NewAccountMeta(ix.Authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

type CompleteMilestone struct {
	Project     solana.PublicKey
	Milestone   solana.PublicKey
	Authority   solana.PublicKey
	MilestoneID uint8
}

func (ix *CompleteMilestone) Opcode() Opcode               { return OpCompleteMilestone }
func (ix *CompleteMilestone) validate() error              { return nil }
func (ix *CompleteMilestone) writePayload(w payloadWriter) { w.u8(ix.MilestoneID) }

func (ix *CompleteMilestone) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(ix.Project, false, false),
		solana.NewAccountMeta(ix.Milestone, true, false),
		solana.NewAccountMeta(ix.Authority, false, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}
