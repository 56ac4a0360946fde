package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unit = 1_000_000_000

func TestLinearCurvePrice(t *testing.T) {
	c := DefaultCurve()
	const goal = 10 * unit

	t.Run("Endpoints", func(t *testing.T) {
		assert.Equal(t, uint64(1*unit), c.Price(0, goal))
		assert.Equal(t, uint64(101*unit), c.Price(goal, goal))
		assert.Equal(t, uint64(51*unit), c.Price(goal/2, goal))
	})

	t.Run("Zero goal returns base", func(t *testing.T) {
		for _, raised := range []uint64{0, 1, unit, ^uint64(0)} {
			assert.Equal(t, uint64(unit), c.Price(raised, 0))
		}
	})

	t.Run("Non-decreasing", func(t *testing.T) {
		for _, g := range []uint64{1, 7, 3 * unit, 1 << 62} {
			prev := c.Price(0, g)
			step := g/97 + 1
			for raised := uint64(0); raised <= g; raised += step {
				p := c.Price(raised, g)
				assert.GreaterOrEqual(t, p, prev, "goal %d raised %d", g, raised)
				prev = p
			}
			assert.GreaterOrEqual(t, c.Price(g, g), prev)
		}
	})

	t.Run("Raw program curve", func(t *testing.T) {
		raw := LinearCurve{BasePrice: 1, Slope: 100}
		assert.Equal(t, uint64(1), raw.Price(0, goal))
		assert.Equal(t, uint64(101), raw.Price(goal, goal))
		assert.Equal(t, uint64(26), raw.Price(goal/4, goal))
	})

	t.Run("Saturates instead of wrapping", func(t *testing.T) {
		huge := LinearCurve{BasePrice: ^uint64(0), Slope: 100}
		assert.Equal(t, ^uint64(0), huge.Price(1, 1))
	})
}

func TestQuotes(t *testing.T) {
	c := LinearCurve{BasePrice: 1, Slope: 100}
	const goal = 10 * unit

	t.Run("Buy", func(t *testing.T) {
		res, err := c.QuoteBuy(5*unit, 1, 0, goal)
		require.NoError(t, err)
		assert.Equal(t, "token", res.GetToken)
		assert.Equal(t, uint64(5*unit), res.GetAmount)
		assert.Equal(t, uint64(5*unit), res.RaisedAfterSwap)
		assert.Equal(t, uint64(51), res.PriceAfterSwap)
		assert.False(t, res.GoalReachedAfter)

		res, err = c.QuoteBuy(10, 51, goal-10, goal)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), res.GetAmount, "below one price buys nothing")
		assert.True(t, res.GoalReachedAfter)

		_, err = c.QuoteBuy(1, 0, 0, goal)
		assert.Error(t, err)
		_, err = c.QuoteBuy(2, 1, ^uint64(0), goal)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("Sell", func(t *testing.T) {
		res, err := c.QuoteSell(100, 51, 5*unit, goal)
		require.NoError(t, err)
		assert.Equal(t, "sol", res.GetToken)
		assert.Equal(t, uint64(5100), res.GetAmount)
		assert.Equal(t, uint64(5*unit-5100), res.RaisedAfterSwap)

		_, err = c.QuoteSell(100, 51, 5000, goal)
		assert.ErrorIs(t, err, ErrInsufficientReserve)

		_, err = c.QuoteSell(^uint64(0), 2, ^uint64(0), goal)
		assert.ErrorIs(t, err, ErrOverflow)
	})
}

func TestPoints(t *testing.T) {
	c := DefaultCurve()
	points := c.Points(10*unit, 4)
	require.Len(t, points, 5)
	assert.Equal(t, CurvePoint{Raised: 0, Price: unit}, points[0])
	assert.Equal(t, CurvePoint{Raised: 10 * unit, Price: 101 * unit}, points[4])
	assert.Equal(t, uint64(5*unit), points[2].Raised)

	assert.Len(t, c.Points(10, 0), 2)
}
