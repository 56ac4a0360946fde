package unicorn

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var testProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

// fakeTransport serves account images from memory. onSubmit lets a test play
// the program's part by mutating accounts.
type fakeTransport struct {
	mu        sync.Mutex
	accounts  map[solana.PublicKey][]byte
	submitted [][]solana.Instruction
	signers   [][]solana.PrivateKey
	fetches   int
	onSubmit  func(ixs []solana.Instruction) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{accounts: make(map[solana.PublicKey][]byte)}
}

func (f *fakeTransport) Submit(_ context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, ixs)
	f.signers = append(f.signers, signers)
	hook := f.onSubmit
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ixs); err != nil {
			return solana.Signature{}, err
		}
	}
	return solana.Signature{1, 2, 3}, nil
}

func (f *fakeTransport) Fetch(_ context.Context, address solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	raw, ok := f.accounts[address]
	if !ok {
		return nil, newError(KindNotFound, "fetch", address.String(), nil)
	}
	return append([]byte(nil), raw...), nil
}

func (f *fakeTransport) put(address solana.PublicKey, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = raw
}

func (f *fakeTransport) lastSubmission() []solana.Instruction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

// balanceTransport adds native balances to fakeTransport.
type balanceTransport struct {
	*fakeTransport
	balances map[solana.PublicKey]uint64
}

func (b *balanceTransport) Balance(_ context.Context, address solana.PublicKey) (uint64, error) {
	return b.balances[address], nil
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

func putProject(t *testing.T, f *fakeTransport, authority solana.PublicKey, mutate func(*Project)) (solana.PublicKey, *Project) {
	t.Helper()
	pda, err := NewDeriver(testProgramID).Project(authority)
	require.NoError(t, err)

	p := &Project{
		Authority:   authority,
		Name:        "Unicorn",
		Symbol:      "UNI",
		FundingGoal: 10_000_000_000,
		TokenPrice:  1_000_000_000,
		IsActive:    true,
		Bump:        pda.Bump,
		TokenMint:   solana.NewWallet().PublicKey(),
	}
	if mutate != nil {
		mutate(p)
	}
	raw, err := EncodeProject(p)
	require.NoError(t, err)
	f.put(pda.Address, raw)
	return pda.Address, p
}

func putMilestone(t *testing.T, f *fakeTransport, project solana.PublicKey, index uint8, m *Milestone) solana.PublicKey {
	t.Helper()
	pda, err := NewDeriver(testProgramID).Milestone(project, index)
	require.NoError(t, err)
	raw, err := EncodeMilestone(m)
	require.NoError(t, err)
	f.put(pda.Address, raw)
	return pda.Address
}

func putProposal(t *testing.T, f *fakeTransport, project solana.PublicKey, index uint8, p *Proposal) solana.PublicKey {
	t.Helper()
	pda, err := NewDeriver(testProgramID).Proposal(project, index)
	require.NoError(t, err)
	raw, err := EncodeProposal(p)
	require.NoError(t, err)
	f.put(pda.Address, raw)
	return pda.Address
}

func ixData(t *testing.T, ix solana.Instruction) []byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	return data
}
