package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/internal/models"
	"github.com/soloking1412/Unicorn-Launchpad/internal/monitoring"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
)

const defaultMaxErrors = 3

// ProjectReader is the part of the launchpad client the recorder needs.
type ProjectReader interface {
	GetProject(ctx context.Context, address solana.PublicKey) (*unicorn.Project, error)
	CheckPrice(address solana.PublicKey, p *unicorn.Project) error
	Config() unicorn.Config
}

type Publisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// TrackRequest asks the worker to start snapshotting a project.
type TrackRequest struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// MismatchEvent is published for every recorded price mismatch.
type MismatchEvent struct {
	EventID    string    `json:"event_id"`
	Project    string    `json:"project"`
	SnapshotID uint      `json:"snapshot_id"`
	Expected   uint64    `json:"expected"`
	Actual     uint64    `json:"actual"`
	ObservedAt time.Time `json:"observed_at"`
}

type Options struct {
	// Queue mismatch events go to; empty disables publishing
	MismatchQueue string

	Concurrency int

	// Consecutive failures after which a project stops being tracked
	MaxErrors int
}

// Result summarises one pass over the tracked projects.
type Result struct {
	Recorded   int
	Mismatches int
	Failed     int
}

type Recorder struct {
	store     Store
	reader    ProjectReader
	publisher Publisher
	opts      Options
	log       *logrus.Entry

	mu          sync.Mutex
	errorCounts map[uint]int

	now func() time.Time
}

// NewRecorder creates a recorder. publisher may be nil.
func NewRecorder(store Store, reader ProjectReader, publisher Publisher, opts Options, log *logrus.Entry) *Recorder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}
	return &Recorder{
		store:       store,
		reader:      reader,
		publisher:   publisher,
		opts:        opts,
		log:         log,
		errorCounts: make(map[uint]int),
		now:         time.Now,
	}
}

// RunOnce snapshots every enabled project.
func (r *Recorder) RunOnce(ctx context.Context) (Result, error) {
	projects, err := r.store.EnabledProjects(ctx)
	if err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
	)
	wp := workerpool.New(r.opts.Concurrency)
	for _, tp := range projects {
		tp := tp
		wp.Submit(func() {
			mismatch, err := r.Record(ctx, tp)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
			case mismatch:
				result.Recorded++
				result.Mismatches++
			default:
				result.Recorded++
			}
		})
	}
	wp.StopWait()

	r.log.WithFields(logrus.Fields{
		"recorded":   result.Recorded,
		"mismatches": result.Mismatches,
		"failed":     result.Failed,
	}).Info("Snapshot pass finished")
	return result, nil
}

// Record fetches one tracked project and stores a snapshot of it. It
// reports whether the stored price disagreed with the curve.
func (r *Recorder) Record(ctx context.Context, tp models.TrackedProject) (bool, error) {
	log := r.log.WithField("project", tp.Address)

	address, err := solana.PublicKeyFromBase58(tp.Address)
	if err != nil {
		r.fail(ctx, tp, err, true)
		return false, err
	}

	p, err := r.reader.GetProject(ctx, address)
	if err != nil {
		// a missing or foreign account will not recover by retrying
		switch unicorn.KindOf(err) {
		case unicorn.KindNotFound, unicorn.KindMalformedAccount:
			r.fail(ctx, tp, err, true)
		default:
			r.fail(ctx, tp, err, false)
		}
		return false, err
	}

	cfg := r.reader.Config()
	snap := &models.ProjectSnapshot{
		TrackedID:       tp.ID,
		Address:         tp.Address,
		Name:            p.Name,
		Symbol:          p.Symbol,
		FundingGoal:     p.FundingGoal,
		TotalRaised:     p.TotalRaised,
		TokenPrice:      p.TokenPrice,
		ExpectedPrice:   cfg.Curve.Price(p.TotalRaised, p.FundingGoal),
		IsActive:        p.IsActive,
		MilestoneCount:  p.MilestoneCount,
		ProposalCount:   p.ProposalCount,
		SourceUpdatedAt: r.now(),
	}
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		monitoring.RecordSnapshot(false)
		log.WithError(err).Error("Failed to save snapshot")
		return false, err
	}
	monitoring.RecordSnapshot(true)
	r.succeed(ctx, tp)

	var mismatch *unicorn.PriceMismatchError
	if err := r.reader.CheckPrice(address, p); !errors.As(err, &mismatch) {
		return false, nil
	}

	m := &models.PriceMismatch{
		EventID:    uuid.NewString(),
		SnapshotID: snap.ID,
		Address:    tp.Address,
		Expected:   mismatch.Expected,
		Actual:     mismatch.Actual,
	}
	if err := r.store.SaveMismatch(ctx, m); err != nil {
		log.WithError(err).Error("Failed to save price mismatch")
		return true, nil
	}
	r.publishMismatch(ctx, m, snap.SourceUpdatedAt)
	return true, nil
}

func (r *Recorder) publishMismatch(ctx context.Context, m *models.PriceMismatch, observed time.Time) {
	if r.publisher == nil || r.opts.MismatchQueue == "" {
		return
	}
	event := MismatchEvent{
		EventID:    m.EventID,
		Project:    m.Address,
		SnapshotID: m.SnapshotID,
		Expected:   m.Expected,
		Actual:     m.Actual,
		ObservedAt: observed,
	}
	if err := r.publisher.Publish(ctx, r.opts.MismatchQueue, event); err != nil {
		r.log.WithError(err).WithField("event_id", m.EventID).Warn("Failed to publish price mismatch")
	}
}

// fail counts a failure and disables the project once it is permanent or
// repeated MaxErrors times.
func (r *Recorder) fail(ctx context.Context, tp models.TrackedProject, cause error, permanent bool) {
	monitoring.RecordSnapshot(false)

	r.mu.Lock()
	r.errorCounts[tp.ID]++
	count := r.errorCounts[tp.ID]
	disable := permanent || count >= r.opts.MaxErrors
	if disable {
		delete(r.errorCounts, tp.ID)
	}
	r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"project": tp.Address, "errors": count})
	if disable {
		log.WithError(cause).Error("Disabling snapshots of project")
	} else {
		log.WithError(cause).Warn("Failed to snapshot project")
	}
	if err := r.store.SetStatus(ctx, tp.ID, truncate(cause.Error(), 500), !disable); err != nil {
		log.WithError(err).Error("Failed to update tracked project")
	}
}

func (r *Recorder) succeed(ctx context.Context, tp models.TrackedProject) {
	r.mu.Lock()
	delete(r.errorCounts, tp.ID)
	r.mu.Unlock()

	if tp.LastError == "" {
		return
	}
	if err := r.store.SetStatus(ctx, tp.ID, "", true); err != nil {
		r.log.WithError(err).WithField("project", tp.Address).Error("Failed to clear tracked project error")
	}
}

// HandleTrackRequest is the consumer callback for track requests. Invalid
// requests are dropped rather than requeued.
func (r *Recorder) HandleTrackRequest(ctx context.Context, body []byte) error {
	var req TrackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		r.log.WithError(err).Warn("Dropping malformed track request")
		return nil
	}
	if _, err := solana.PublicKeyFromBase58(req.Address); err != nil {
		r.log.WithError(err).WithField("address", req.Address).Warn("Dropping track request with invalid address")
		return nil
	}
	tp, err := r.store.Track(ctx, req.Address, req.Label)
	if err != nil {
		return fmt.Errorf("track %s: %w", req.Address, err)
	}
	r.log.WithFields(logrus.Fields{"project": tp.Address, "id": tp.ID}).Info("Tracking project")
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
