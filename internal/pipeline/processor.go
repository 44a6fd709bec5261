package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/cryptobrief/refinery/internal/cache"
	"github.com/cryptobrief/refinery/internal/llm"
	"github.com/cryptobrief/refinery/internal/model"
	"github.com/cryptobrief/refinery/internal/store"
	"github.com/cryptobrief/refinery/internal/worker"
)

// Processor drives one polling cycle: fetch a batch, then per candidate run
// dedup → evaluate → rewrite → archive, strictly in sequence. Stage failures
// degrade per policy (fail-open dedup, fail-closed evaluation) and never
// abort the cycle.
type Processor struct {
	cfg     *model.Config
	llm     llm.Provider
	source  *store.SourceRepository
	archive *store.ArchiveRepository
	seen    cache.Cache
	pacer   *worker.Pacer
	log     *slog.Logger
	now     func() time.Time
}

// Deps wires the processor's collaborators.
type Deps struct {
	Config  *model.Config
	LLM     llm.Provider
	Source  *store.SourceRepository
	Archive *store.ArchiveRepository
	Seen    cache.Cache
	Pacer   *worker.Pacer
	Logger  *slog.Logger
}

// NewProcessor creates the pipeline with the given dependencies.
func NewProcessor(deps Deps) *Processor {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	pacer := deps.Pacer
	if pacer == nil {
		pacer = worker.NewPacer(time.Second)
	}

	return &Processor{
		cfg:     deps.Config,
		llm:     deps.LLM,
		source:  deps.Source,
		archive: deps.Archive,
		seen:    deps.Seen,
		pacer:   pacer,
		log:     log.With("component", "pipeline"),
		now:     time.Now,
	}
}

// CycleStats summarizes one pass over a batch.
type CycleStats struct {
	Fetched int
	Skipped int
	Passed  int
	Blocked int
	Stored  int
}

// Run executes one full cycle. Fetch errors degrade to an empty batch; the
// only error surfaced is context cancellation, so the caller can tell a
// shutdown apart from a finished pass.
func (p *Processor) Run(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	candidates := p.fetch(ctx)
	stats.Fetched = len(candidates)
	if len(candidates) == 0 {
		p.log.Info("no candidates this cycle")
		return stats, ctx.Err()
	}

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		p.log.Info("processing candidate",
			"n", i+1,
			"total", len(candidates),
			"headline", candidate.HeadlinePrefix())

		switch p.processOne(ctx, candidate) {
		case outcomeSkipped:
			stats.Skipped++
		case outcomeBlocked:
			stats.Blocked++
		case outcomePassed:
			stats.Passed++
		case outcomeStored:
			stats.Passed++
			stats.Stored++
		}

		// Fixed pause between candidates to stay under the model
		// endpoint's rate limits.
		if err := p.pacer.Wait(ctx); err != nil {
			return stats, err
		}
	}

	p.log.Info("cycle complete",
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"passed", stats.Passed,
		"blocked", stats.Blocked,
		"stored", stats.Stored)

	return stats, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeBlocked
	outcomePassed // passed evaluation but was not stored (rewrite or insert failed)
	outcomeStored
)

func (p *Processor) processOne(ctx context.Context, candidate model.Candidate) outcome {
	if p.isDuplicate(ctx, candidate) {
		p.log.Info("skipped duplicate", "headline", candidate.HeadlinePrefix())
		p.markHandled(ctx, candidate)
		return outcomeSkipped
	}

	eval := p.evaluate(ctx, candidate)
	if !eval.Passed() {
		p.log.Info("blocked",
			"headline", candidate.HeadlinePrefix(),
			"reason", eval.Reason)
		p.markHandled(ctx, candidate)
		return outcomeBlocked
	}
	p.log.Info("passed",
		"headline", candidate.HeadlinePrefix(),
		"score", eval.RelevanceScore)

	story, err := p.llm.Rewrite(ctx, llm.RewriteRequest{
		Candidate:     candidate,
		DefaultTicker: p.cfg.Pipeline.DefaultTicker,
	})
	if err != nil {
		// Dropped for this cycle only; the next poll re-fetches it.
		p.log.Error("rewrite failed",
			"stage", "rewrite",
			"headline", candidate.HeadlinePrefix(),
			"error", err)
		return outcomePassed
	}

	fillNumericFallbacks(story, candidate)

	if !p.store(ctx, candidate, eval, story) {
		return outcomePassed
	}

	p.rememberStored(candidate)
	if p.cfg.Pipeline.MarkPolicy == model.MarkStored || p.cfg.Pipeline.MarkPolicy == model.MarkHandled {
		p.markProcessed(ctx, candidate)
	}
	return outcomeStored
}

func (p *Processor) fetch(ctx context.Context) []model.Candidate {
	var (
		candidates []model.Candidate
		err        error
	)
	if p.cfg.Pipeline.FetchMode == model.FetchUnprocessed {
		candidates, err = p.source.FetchUnprocessed(ctx, p.cfg.Pipeline.BatchLimit, p.cfg.Pipeline.RecencyWindow())
	} else {
		candidates, err = p.source.FetchLatest(ctx, p.cfg.Pipeline.BatchLimit)
	}
	if err != nil {
		// An unreachable source table is a normal outcome for one cycle.
		p.log.Error("fetch failed", "stage", "fetch", "error", err)
		return nil
	}
	return candidates
}

// evaluate wraps the classify call with its fail-closed policy: any model or
// parse error becomes a BLOCK verdict carrying the error as the reason.
func (p *Processor) evaluate(ctx context.Context, candidate model.Candidate) model.Evaluation {
	eval, err := p.llm.Classify(ctx, llm.ClassifyRequest{
		Candidate: candidate,
		Rubric:    p.cfg.LLM.Rubric,
		Format:    p.cfg.LLM.Format,
	})
	if err != nil {
		p.log.Error("evaluation failed",
			"stage", "evaluate",
			"headline", candidate.HeadlinePrefix(),
			"error", err)
		return model.BlockedEvaluation("Error: " + err.Error())
	}
	return *eval
}

func (p *Processor) store(ctx context.Context, candidate model.Candidate, eval model.Evaluation, story *model.RefinedStory) bool {
	// Prune first so the insert lands under the ceiling. A prune failure
	// does not stop the insert; the next cycle prunes again.
	deleted, err := p.archive.Prune(ctx, p.cfg.Retention.Ceiling, p.cfg.Retention.Order)
	if err != nil {
		p.log.Error("prune failed", "stage", "store", "error", err)
	} else if deleted > 0 {
		p.log.Info("pruned oldest stories", "deleted", deleted)
	}

	archived := buildArchivedStory(candidate, eval, story, p.now(), p.cfg.Pipeline.ProcessingVersion)
	if err := p.archive.Insert(ctx, archived); err != nil {
		p.log.Error("insert failed",
			"stage", "store",
			"headline", candidate.HeadlinePrefix(),
			"error", err)
		return false
	}

	p.log.Info("stored story", "headline", archived.Headline)
	return true
}

// buildArchivedStory merges the candidate, its evaluation metadata, and the
// refined story into one destination row, applying the length caps.
func buildArchivedStory(candidate model.Candidate, eval model.Evaluation, story *model.RefinedStory, processedAt time.Time, version string) *model.ArchivedStory {
	importance := eval.Importance
	if importance == "" {
		importance = "MEDIUM"
	}

	return &model.ArchivedStory{
		OriginalID:          candidate.ID,
		OriginalHeadline:    candidate.Headline,
		OriginalDescription: candidate.Description,
		OriginalLink:        candidate.Link,
		OriginalPublishedAt: candidate.PublishedAt,
		OriginalSourceName:  candidate.SourceName,

		Headline:     model.Truncate(story.Headline, model.HeadlineMaxLen),
		Summary:      model.Truncate(story.Summary, model.SummaryMaxLen),
		Tickers:      story.Tickers,
		Sentiment:    story.Sentiment,
		MarketImpact: model.Truncate(story.MarketImpact, model.MarketImpactMaxLen),

		RelevanceScore:   eval.RelevanceScore,
		EvaluationReason: eval.Reason,
		Categories:       eval.Categories,
		ImportanceLevel:  importance,
		Blockchains:      eval.MentionedBlockchains,

		Price:              story.Price,
		PriceChangePercent: story.PriceChangePercent,
		Volume:             story.Volume,
		MarketCap:          story.MarketCap,

		ProcessedAt:       processedAt,
		ProcessingVersion: version,
	}
}

// isDuplicate runs the configured dedup checks in order. Every check is
// fail-open: a query error counts as "not a duplicate", trading an occasional
// double-processing for never silently skipping a story forever.
func (p *Processor) isDuplicate(ctx context.Context, candidate model.Candidate) bool {
	for _, key := range p.cfg.Pipeline.DedupKeys {
		switch key {
		case model.DedupByLink:
			if candidate.Link == "" {
				continue
			}
			if p.seenKey(model.DedupByLink, candidate.Link) {
				return true
			}
			dup, err := p.archive.HasLink(ctx, candidate.Link)
			if err != nil {
				p.log.Error("dedup check failed", "stage", "dedup", "key", key, "error", err)
				continue
			}
			if dup {
				return true
			}

		case model.DedupByHeadline:
			if candidate.Headline == "" {
				continue
			}
			if p.seenKey(model.DedupByHeadline, candidate.Headline) {
				return true
			}
			since := p.now().Add(-p.cfg.Pipeline.RecencyWindow())
			dup, err := p.archive.HasRecentHeadline(ctx, candidate.Headline, since)
			if err != nil {
				p.log.Error("dedup check failed", "stage", "dedup", "key", key, "error", err)
				continue
			}
			if dup {
				p.log.Info("duplicate headline within recency window",
					"headline", candidate.HeadlinePrefix())
				return true
			}

		case model.DedupByID:
			if candidate.ID == "" {
				continue
			}
			if p.seenKey(model.DedupByID, candidate.ID) {
				return true
			}
			dup, err := p.archive.HasOriginalID(ctx, candidate.ID)
			if err != nil {
				p.log.Error("dedup check failed", "stage", "dedup", "key", key, "error", err)
				continue
			}
			if dup {
				return true
			}
		}
	}
	return false
}

func (p *Processor) seenKey(kind, value string) bool {
	if p.seen == nil {
		return false
	}
	return p.seen.Get(cache.Key(kind, value))
}

// rememberStored records the candidate's dedup keys so later cycles skip the
// destination-table queries for it while the entry is fresh.
func (p *Processor) rememberStored(candidate model.Candidate) {
	if p.seen == nil {
		return
	}
	ttl := p.cfg.Pipeline.RecencyWindow()
	if candidate.Link != "" {
		p.seen.Set(cache.Key(model.DedupByLink, candidate.Link), ttl)
	}
	if candidate.Headline != "" {
		p.seen.Set(cache.Key(model.DedupByHeadline, candidate.Headline), ttl)
	}
	if candidate.ID != "" {
		p.seen.Set(cache.Key(model.DedupByID, candidate.ID), ttl)
	}
}

// markHandled flips the processed flag for blocked and duplicate candidates
// when the profile says so, stopping their re-evaluation on later cycles.
func (p *Processor) markHandled(ctx context.Context, candidate model.Candidate) {
	if p.cfg.Pipeline.MarkPolicy != model.MarkHandled {
		return
	}
	p.markProcessed(ctx, candidate)
}

func (p *Processor) markProcessed(ctx context.Context, candidate model.Candidate) {
	if err := p.source.MarkProcessed(ctx, candidate.ID); err != nil {
		// Best effort; dedup suppresses the second copy if this row is
		// fetched again.
		p.log.Error("mark processed failed",
			"stage", "store",
			"id", candidate.ID,
			"error", err)
	}
}
