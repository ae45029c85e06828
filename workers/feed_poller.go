// workers/feed_poller.go
package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"campaign-score-system/services"
)

const (
	stateIdle int32 = iota
	stateRunning
)

// Report is the per-pass tally of reconciliation verdicts.
type Report struct {
	Scanned int `json:"scanned"`
	Intact  int `json:"intact"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

func (r *Report) bump(v services.Verdict) {
	switch v {
	case services.VerdictIntact:
		r.Intact++
	case services.VerdictCreated:
		r.Created++
	case services.VerdictUpdated:
		r.Updated++
	case services.VerdictDeleted:
		r.Deleted++
	case services.VerdictError:
		r.Errors++
	}
}

// FeedPoller drives the pagination loop against the event feed. One pass
// walks every page, reconciles each post with a message body (bounded
// concurrency within a page) and commits score candidates at every page
// boundary, so a mid-pass crash loses at most one page of credit.
type FeedPoller struct {
	db          *gorm.DB
	feed        services.FeedClient
	extractor   *services.HashtagExtractor
	table       services.ScoreTable
	media       services.PhotoMirror
	interval    time.Duration
	maxInFlight int

	state atomic.Int32
}

func NewFeedPoller(db *gorm.DB, feed services.FeedClient, extractor *services.HashtagExtractor, table services.ScoreTable, media services.PhotoMirror, interval time.Duration, maxInFlight int) *FeedPoller {
	if maxInFlight <= 0 {
		maxInFlight = 6
	}
	return &FeedPoller{
		db:          db,
		feed:        feed,
		extractor:   extractor,
		table:       table,
		media:       media,
		interval:    interval,
		maxInFlight: maxInFlight,
	}
}

func (p *FeedPoller) Start(ctx context.Context) {
	log.Info("🔁 Starting feed poller (event feed → posts/score records)…")
	go p.run(ctx)
}

func (p *FeedPoller) run(ctx context.Context) {
	// immediate pass at process start, then the fixed interval
	if _, err := p.Probe(ctx); err != nil {
		log.Errorf("[PROBE] initial pass failed: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.Probe(ctx); err != nil {
				log.Errorf("[PROBE] pass failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("⏹️ Feed poller stopped")
			return
		}
	}
}

// Probe runs one full synchronization pass. Re-entrant invocation while a
// pass is still running is a no-op (the timer does not care how slow the
// upstream is), signalled by a nil report. A page fetch failure aborts the
// pass: skipping a page silently would break the guarantee that no post is
// left unprocessed, so we let the next scheduled pass retry from page one.
func (p *FeedPoller) Probe(ctx context.Context) (*Report, error) {
	if !p.state.CompareAndSwap(stateIdle, stateRunning) {
		log.Debug("[PROBE] previous pass still running, skipping")
		return nil, nil
	}
	defer p.state.Store(stateIdle)

	log.Info("[PROBE] pass started")

	// pass-scoped collaborators: the directory and catalog caches must not
	// outlive the pass
	users := services.NewUserDirectory(p.db)
	missions := services.NewMissionCatalog(p.db)
	reconciler := services.NewPostReconciler(p.db, p.feed, users, missions, p.extractor, p.table, p.media)
	ledger := services.NewScoreLedger(p.db, p.table)

	report := &Report{}

	page, err := p.feed.FetchFirstPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first feed page: %w", err)
	}

	for {
		report.Scanned += len(page.Items)
		candidates := p.reconcilePage(ctx, reconciler, page.Items, report)

		if _, err := ledger.Apply(ctx, candidates); err != nil {
			return report, fmt.Errorf("failed to commit score batch: %w", err)
		}

		if page.NextCursor == "" {
			break
		}
		page, err = p.feed.FetchPage(ctx, page.NextCursor)
		if err != nil {
			return report, fmt.Errorf("failed to fetch next feed page: %w", err)
		}
	}

	log.Infof("[PROBE] pass ended: scanned=%d intact=%d created=%d updated=%d deleted=%d errors=%d",
		report.Scanned, report.Intact, report.Created, report.Updated, report.Deleted, report.Errors)
	return report, nil
}

// reconcilePage fans the page's posts out to the reconciler with a bounded
// number in flight. Posts without a message body carry no mission tag by
// definition and are skipped outright. A single post failing yields an
// error verdict, never a page abort.
func (p *FeedPoller) reconcilePage(ctx context.Context, reconciler *services.PostReconciler, items []services.FeedItem, report *Report) []services.ScoreCandidate {
	var (
		mu         sync.Mutex
		candidates []services.ScoreCandidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxInFlight)

	for _, item := range items {
		if strings.TrimSpace(item.Message) == "" {
			continue
		}
		item := item
		g.Go(func() error {
			verdict, cand, err := reconciler.Reconcile(gctx, item)
			if err != nil {
				log.Errorf("[PROBE] post %s sync failed: %v", item.ExternalID, err)
			}

			mu.Lock()
			report.bump(verdict)
			if cand != nil {
				candidates = append(candidates, *cand)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return candidates
}
