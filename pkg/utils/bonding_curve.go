package utils

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// DefaultBasePrice is one human unit at a 10^9 unit scale. Deployed
	// programs that start at one smallest unit need a base price of 1
	// (UNICORN_CURVE_BASE_PRICE=1), or every reconcile reports a mismatch.
	DefaultBasePrice uint64 = 1_000_000_000
	// DefaultSlope is the percentage increase at a fully funded project.
	DefaultSlope uint64 = 100
)

var (
	ErrOverflow            = errors.New("amount overflows u64")
	ErrInsufficientReserve = errors.New("payout exceeds total raised")
)

// LinearCurve prices tokens as base + base*slope*raised/goal, all in
// smallest units with integer floor division.
type LinearCurve struct {
	BasePrice uint64 `json:"base_price" mapstructure:"base_price"`
	Slope     uint64 `json:"slope" mapstructure:"slope"`
}

func DefaultCurve() LinearCurve {
	return LinearCurve{BasePrice: DefaultBasePrice, Slope: DefaultSlope}
}

// Price returns the token price for a project with totalRaised out of goal.
// A zero goal prices at base.
func (c LinearCurve) Price(totalRaised, goal uint64) uint64 {
	if goal == 0 {
		return c.BasePrice
	}
	base := new(big.Int).SetUint64(c.BasePrice)
	inc := new(big.Int).Mul(base, new(big.Int).SetUint64(c.Slope))
	inc.Mul(inc, new(big.Int).SetUint64(totalRaised))
	inc.Quo(inc, new(big.Int).SetUint64(goal))
	inc.Add(inc, base)
	if !inc.IsUint64() {
		return ^uint64(0)
	}
	return inc.Uint64()
}

// TradeResult is the predicted effect of a single buy or sell.
type TradeResult struct {
	GetToken         string `json:"get_token"` // "token" or "sol"
	GetAmount        uint64 `json:"get_amount"`
	CostAmount       uint64 `json:"cost_amount"`
	PriceBeforeSwap  uint64 `json:"price_before_swap"`
	RaisedAfterSwap  uint64 `json:"raised_after_swap"`
	PriceAfterSwap   uint64 `json:"price_after_swap"`
	GoalReachedAfter bool   `json:"goal_reached_after"`
}

// QuoteBuy predicts a buy of payment smallest units at the stored price.
// Tokens are payment/price, so a payment below one price buys nothing.
func (c LinearCurve) QuoteBuy(payment, price, totalRaised, goal uint64) (*TradeResult, error) {
	if price == 0 {
		return nil, fmt.Errorf("quote buy: price is zero")
	}
	raised := totalRaised + payment
	if raised < totalRaised {
		return nil, fmt.Errorf("quote buy: %w", ErrOverflow)
	}
	return &TradeResult{
		GetToken:         "token",
		GetAmount:        payment / price,
		CostAmount:       payment,
		PriceBeforeSwap:  price,
		RaisedAfterSwap:  raised,
		PriceAfterSwap:   c.Price(raised, goal),
		GoalReachedAfter: goal > 0 && raised >= goal,
	}, nil
}

// QuoteSell predicts a sale of tokens at the stored price. The program pays
// tokens*price and deducts it from totalRaised.
func (c LinearCurve) QuoteSell(tokens, price, totalRaised, goal uint64) (*TradeResult, error) {
	payout := new(big.Int).Mul(new(big.Int).SetUint64(tokens), new(big.Int).SetUint64(price))
	if !payout.IsUint64() {
		return nil, fmt.Errorf("quote sell: %w", ErrOverflow)
	}
	out := payout.Uint64()
	if out > totalRaised {
		return nil, fmt.Errorf("quote sell: %w: %d > %d", ErrInsufficientReserve, out, totalRaised)
	}
	raised := totalRaised - out
	return &TradeResult{
		GetToken:         "sol",
		GetAmount:        out,
		CostAmount:       tokens,
		PriceBeforeSwap:  price,
		RaisedAfterSwap:  raised,
		PriceAfterSwap:   c.Price(raised, goal),
		GoalReachedAfter: goal > 0 && raised >= goal,
	}, nil
}

// CurvePoint is one sample of the price curve.
type CurvePoint struct {
	Raised uint64 `json:"raised"`
	Price  uint64 `json:"price"`
}

// Points samples the curve at steps+1 evenly spaced raised amounts from 0
// to goal inclusive.
func (c LinearCurve) Points(goal uint64, steps int) []CurvePoint {
	if steps < 1 {
		steps = 1
	}
	points := make([]CurvePoint, 0, steps+1)
	g := new(big.Int).SetUint64(goal)
	for i := 0; i <= steps; i++ {
		r := new(big.Int).Mul(g, big.NewInt(int64(i)))
		r.Quo(r, big.NewInt(int64(steps)))
		raised := r.Uint64()
		points = append(points, CurvePoint{Raised: raised, Price: c.Price(raised, goal)})
	}
	return points
}
