package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/internal/snapshot"
	solanapkg "github.com/soloking1412/Unicorn-Launchpad/pkg/solana"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxCurveSteps    = 1000
)

// LaunchpadReader is the read side of the launchpad client.
type LaunchpadReader interface {
	GetProject(ctx context.Context, address solana.PublicKey) (*unicorn.Project, error)
	ListMilestones(ctx context.Context, project solana.PublicKey) ([]unicorn.MilestoneEntry, error)
	ListProposals(ctx context.Context, project solana.PublicKey) ([]unicorn.ProposalEntry, error)
	QuoteBuy(ctx context.Context, project solana.PublicKey, amount string) (*utils.TradeResult, error)
	QuoteSell(ctx context.Context, project solana.PublicKey, tokens uint64) (*utils.TradeResult, error)
	Reconcile(ctx context.Context, address solana.PublicKey) (*unicorn.Project, error)
	Config() unicorn.Config
}

type Options struct {
	// Queue track requests are published to; empty tracks directly in the store
	TrackQueue string

	// Endpoints probed by /health
	RPCEndpoints []string

	// How long project reads are served from memory
	CacheTTL time.Duration
}

// Handlers serves the read-only launchpad API.
type Handlers struct {
	reader    LaunchpadReader
	store     snapshot.Store
	publisher snapshot.Publisher
	health    *solanapkg.HealthChecker
	projects  *cache.Cache
	opts      Options
	log       *logrus.Entry
}

// New creates the handlers. store, publisher and health may be nil; the
// routes depending on them then answer 503.
func New(reader LaunchpadReader, store snapshot.Store, publisher snapshot.Publisher, health *solanapkg.HealthChecker, opts Options, log *logrus.Entry) *Handlers {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 2 * time.Second
	}
	return &Handlers{
		reader:    reader,
		store:     store,
		publisher: publisher,
		health:    health,
		projects:  cache.New(opts.CacheTTL, 10*opts.CacheTTL),
		opts:      opts,
		log:       log,
	}
}

// errorStatus maps a client error to an HTTP status.
func errorStatus(err error) int {
	switch unicorn.KindOf(err) {
	case unicorn.KindInvalidInput:
		return http.StatusBadRequest
	case unicorn.KindNotFound:
		return http.StatusNotFound
	case unicorn.KindMalformedAccount, unicorn.KindAddressDerivation:
		return http.StatusUnprocessableEntity
	case unicorn.KindTimeout:
		return http.StatusGatewayTimeout
	case unicorn.KindTransport, unicorn.KindRemoteRejected:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": unicorn.KindOf(err).String()})
}

func addressParam(c *gin.Context) (solana.PublicKey, bool) {
	address, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address format"})
		return solana.PublicKey{}, false
	}
	return address, true
}

func limitQuery(c *gin.Context) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return 0, false
	}
	return n, true
}

func (h *Handlers) project(ctx context.Context, address solana.PublicKey) (*unicorn.Project, error) {
	if v, ok := h.projects.Get(address.String()); ok {
		return v.(*unicorn.Project), nil
	}
	p, err := h.reader.GetProject(ctx, address)
	if err != nil {
		return nil, err
	}
	h.projects.SetDefault(address.String(), p)
	return p, nil
}

// GetProject returns a project account.
func (h *Handlers) GetProject(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	p, err := h.project(c.Request.Context(), address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BuildProjectResp(address, p, h.reader.Config().UnitScale))
}

func (h *Handlers) ListMilestones(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	entries, err := h.reader.ListMilestones(c.Request.Context(), address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListProposals returns proposals with their status as of now.
func (h *Handlers) ListProposals(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	entries, err := h.reader.ListProposals(c.Request.Context(), address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Quote predicts a trade: ?side=buy&amount=1.5 or ?side=sell&tokens=100.
func (h *Handlers) Quote(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}

	var (
		res *utils.TradeResult
		err error
	)
	side := c.DefaultQuery("side", "buy")
	switch side {
	case "buy":
		res, err = h.reader.QuoteBuy(c.Request.Context(), address, c.Query("amount"))
	case "sell":
		tokens, perr := strconv.ParseUint(c.Query("tokens"), 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tokens must be an unsigned integer"})
			return
		}
		res, err = h.reader.QuoteSell(c.Request.Context(), address, tokens)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be buy or sell"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteResp{Side: side, TradeResult: res})
}

// Reconcile compares the stored price with the local curve.
func (h *Handlers) Reconcile(c *gin.Context) {
	address, ok := addressParam(c)
	if !ok {
		return
	}
	p, err := h.reader.Reconcile(c.Request.Context(), address)
	var mismatch *unicorn.PriceMismatchError
	if err != nil && !errors.As(err, &mismatch) {
		h.fail(c, err)
		return
	}
	cfg := h.reader.Config()
	c.JSON(http.StatusOK, ReconcileResp{
		Project:  BuildProjectResp(address, p, cfg.UnitScale),
		Expected: cfg.Curve.Price(p.TotalRaised, p.FundingGoal),
		Actual:   p.TokenPrice,
		Mismatch: mismatch != nil,
	})
}

// Curve samples the configured price curve: ?goal=<units>&steps=<n>.
func (h *Handlers) Curve(c *gin.Context) {
	goal, err := strconv.ParseUint(c.Query("goal"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "goal must be an unsigned integer"})
		return
	}
	steps, err := strconv.Atoi(c.DefaultQuery("steps", "10"))
	if err != nil || steps < 1 || steps > maxCurveSteps {
		c.JSON(http.StatusBadRequest, gin.H{"error": "steps must be between 1 and 1000"})
		return
	}
	c.JSON(http.StatusOK, h.reader.Config().Curve.Points(goal, steps))
}

func (h *Handlers) Health(c *gin.Context) {
	if h.health == nil || len(h.opts.RPCEndpoints) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	results := h.health.CheckAll(c.Request.Context(), h.opts.RPCEndpoints)
	status, code := "ok", http.StatusOK
	for _, r := range results {
		if !r.OK {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "rpc": results})
}
