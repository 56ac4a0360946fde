package unicorn

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handBuiltProject lays a project out field by field without the codec.
func handBuiltProject(authority, mint solana.PublicKey, name, symbol string, goal, raised, price uint64, active bool, bump, milestones, proposals uint8) []byte {
	raw := make([]byte, 0, ProjectSize)
	raw = append(raw, authority[:]...)
	raw = append(raw, padded(name, 32)...)
	raw = append(raw, padded(symbol, 8)...)
	raw = binary.LittleEndian.AppendUint64(raw, goal)
	raw = binary.LittleEndian.AppendUint64(raw, raised)
	raw = binary.LittleEndian.AppendUint64(raw, price)
	if active {
		raw = append(raw, 1)
	} else {
		raw = append(raw, 0)
	}
	raw = append(raw, bump)
	raw = append(raw, mint[:]...)
	raw = append(raw, milestones, proposals)
	return raw
}

func padded(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

func TestLayoutSizes(t *testing.T) {
	assert.Equal(t, ProjectSize, projectLayout.Size())
	assert.Equal(t, ProposalSize, proposalLayout.Size())
	assert.Equal(t, MilestoneSize, milestoneLayout.Size())

	assert.Equal(t, 0, projectLayout.Offset("authority"))
	assert.Equal(t, 72, projectLayout.Offset("funding_goal"))
	assert.Equal(t, 96, projectLayout.Offset("is_active"))
	assert.Equal(t, 98, projectLayout.Offset("token_mint"))
	assert.Equal(t, 131, projectLayout.Offset("proposal_count"))
	assert.Equal(t, 329, proposalLayout.Offset("yes_votes"))
	assert.Equal(t, 296, milestoneLayout.Offset("is_completed"))
	assert.Equal(t, -1, milestoneLayout.Offset("missing"))
}

func TestDecodeProject(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	t.Run("Hand built bytes round trip", func(t *testing.T) {
		raw := handBuiltProject(authority, mint, "Unicorn", "UNI", 10_000_000_000, 2_500_000_000, 26_000_000_000, true, 254, 3, 2)
		require.Len(t, raw, ProjectSize)

		p, err := DecodeProject(raw)
		require.NoError(t, err)
		assert.Equal(t, authority, p.Authority)
		assert.Equal(t, "Unicorn", p.Name)
		assert.Equal(t, "UNI", p.Symbol)
		assert.Equal(t, uint64(10_000_000_000), p.FundingGoal)
		assert.Equal(t, uint64(2_500_000_000), p.TotalRaised)
		assert.Equal(t, uint64(26_000_000_000), p.TokenPrice)
		assert.True(t, p.IsActive)
		assert.Equal(t, uint8(254), p.Bump)
		assert.Equal(t, mint, p.TokenMint)
		assert.Equal(t, uint8(3), p.MilestoneCount)
		assert.Equal(t, uint8(2), p.ProposalCount)

		encoded, err := EncodeProject(p)
		require.NoError(t, err)
		assert.Equal(t, raw, encoded)
	})

	t.Run("Fresh project price decodes to one unit", func(t *testing.T) {
		raw := handBuiltProject(authority, mint, "Fresh", "FR", 10_000_000_000, 0, 1_000_000_000, true, 255, 0, 0)
		p, err := DecodeProject(raw)
		require.NoError(t, err)
		assert.Equal(t, 1.0, FromBaseUnits(p.TokenPrice, DefaultUnitScale))
		assert.Equal(t, "1", FormatBaseUnits(p.TokenPrice, DefaultUnitScale))
		assert.Equal(t, "10", FormatBaseUnits(p.FundingGoal, DefaultUnitScale))
	})

	t.Run("Trailing bytes are ignored", func(t *testing.T) {
		raw := handBuiltProject(authority, mint, "A", "B", 1, 0, 1, false, 1, 0, 0)
		p, err := DecodeProject(append(raw, 0xff, 0xff))
		require.NoError(t, err)
		assert.Equal(t, "A", p.Name)
	})

	t.Run("Short input is malformed", func(t *testing.T) {
		raw := handBuiltProject(authority, mint, "A", "B", 1, 0, 1, false, 1, 0, 0)
		_, err := DecodeProject(raw[:ProjectSize-1])
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedAccount)
		assert.Equal(t, KindMalformedAccount, KindOf(err))
	})

	t.Run("Invalid UTF-8 is malformed", func(t *testing.T) {
		raw := handBuiltProject(authority, mint, "A", "B", 1, 0, 1, false, 1, 0, 0)
		raw[32] = 0xff
		_, err := DecodeProject(raw)
		assert.ErrorIs(t, err, ErrMalformedAccount)
	})
}

func TestTextWidth(t *testing.T) {
	t.Run("Maximum width round trips", func(t *testing.T) {
		m := &Milestone{
			Title:       strings.Repeat("t", MaxTitleLen),
			Description: strings.Repeat("d", MaxDescriptionLen),
			Amount:      5,
		}
		raw, err := EncodeMilestone(m)
		require.NoError(t, err)
		require.Len(t, raw, MilestoneSize)

		got, err := DecodeMilestone(raw)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	})

	t.Run("One byte over is rejected", func(t *testing.T) {
		_, err := EncodeMilestone(&Milestone{Title: strings.Repeat("t", MaxTitleLen+1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = EncodeProject(&Project{Symbol: "TOOLONGSYM"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Lossy text is rejected", func(t *testing.T) {
		for _, name := range []string{"\xff\xfe", "ab\x00", "a\x00b"} {
			_, err := EncodeProject(&Project{Name: name})
			assert.ErrorIs(t, err, ErrInvalidInput, "%q", name)
		}
	})
}

func TestProposalRoundTrip(t *testing.T) {
	p := &Proposal{
		Creator:     solana.NewWallet().PublicKey(),
		Title:       "Release alpha",
		Description: "Pay the alpha milestone",
		Amount:      3_000_000_000,
		MilestoneID: 1,
		YesVotes:    5,
		NoVotes:     2,
		CreatedAt:   1000,
		VotingEnd:   87400,
	}
	raw, err := EncodeProposal(p)
	require.NoError(t, err)
	require.Len(t, raw, ProposalSize)
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(raw[proposalLayout.Offset("yes_votes"):]))

	got, err := DecodeProposal(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.False(t, got.Provisional)
}

func TestNegativeTimestamp(t *testing.T) {
	m := &Milestone{Title: "old", IsCompleted: true, CompletedAt: -42}
	raw, err := EncodeMilestone(m)
	require.NoError(t, err)
	got, err := DecodeMilestone(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), got.CompletedAt)
}
