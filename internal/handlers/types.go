package handlers

import (
	"github.com/gagliardetto/solana-go"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/utils"
)

// ProjectResp is a project with human readable amounts.
type ProjectResp struct {
	Address solana.PublicKey `json:"address"`
	*unicorn.Project
	FundingGoalReadable string  `json:"funding_goal_readable"`
	TotalRaisedReadable string  `json:"total_raised_readable"`
	TokenPriceReadable  string  `json:"token_price_readable"`
	Progress            float64 `json:"progress"`
	GoalReached         bool    `json:"goal_reached"`
}

func BuildProjectResp(address solana.PublicKey, p *unicorn.Project, scale uint64) *ProjectResp {
	resp := &ProjectResp{
		Address:             address,
		Project:             p,
		FundingGoalReadable: unicorn.FormatBaseUnits(p.FundingGoal, scale),
		TotalRaisedReadable: unicorn.FormatBaseUnits(p.TotalRaised, scale),
		TokenPriceReadable:  unicorn.FormatBaseUnits(p.TokenPrice, scale),
		GoalReached:         p.FundingGoal > 0 && p.TotalRaised >= p.FundingGoal,
	}
	if p.FundingGoal > 0 {
		resp.Progress = float64(p.TotalRaised) / float64(p.FundingGoal)
	}
	return resp
}

type QuoteResp struct {
	Side string `json:"side"`
	*utils.TradeResult
}

type ReconcileResp struct {
	Project  *ProjectResp `json:"project"`
	Expected uint64       `json:"expected_price"`
	Actual   uint64       `json:"actual_price"`
	Mismatch bool         `json:"mismatch"`
}

type TrackReq struct {
	Address string `json:"address" binding:"required"`
	Label   string `json:"label"`
}
