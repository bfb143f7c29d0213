package services

import (
	"context"
	"time"

	"schoolbox-be/internal/metrics"
	"schoolbox-be/internal/models"

	"go.uber.org/zap"
)

// processingVersion is stamped on every email so future schema changes can
// tell which pipeline revision produced a document.
const processingVersion = 1

// PipelineConfig bounds one batch pass.
type PipelineConfig struct {
	PollWindow      time.Duration
	MaxBatchSize    int64
	Workers         int
	ProviderTimeout time.Duration
}

// Pipeline wires the five stages together: list, parse, dedupe, classify,
// persist, route. All collaborators arrive through the constructor so tests
// can substitute fakes.
type Pipeline struct {
	inbox      Inbox
	classifier Classifier
	emails     EmailStore
	router     *ActionRouter
	logger     *zap.Logger
	cfg        PipelineConfig
}

func NewPipeline(inbox Inbox, classifier Classifier, emails EmailStore, router *ActionRouter, logger *zap.Logger, cfg PipelineConfig) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 25
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	return &Pipeline{
		inbox:      inbox,
		classifier: classifier,
		emails:     emails,
		router:     router,
		logger:     logger,
		cfg:        cfg,
	}
}

// BatchResult summarizes one pass for the manual-trigger endpoint and logs.
type BatchResult struct {
	Listed    int `json:"listed"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunBatch performs one full pass over recent inbox messages. Messages are
// processed with bounded concurrency; a failure on one message never blocks
// its siblings, and errors are attributed to the message that caused them.
func (p *Pipeline) RunBatch(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	listCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	refs, err := p.inbox.ListRecent(listCtx, p.cfg.PollWindow, p.cfg.MaxBatchSize)
	cancel()
	if err != nil {
		metrics.EmailsFailed.WithLabelValues(ErrorKind(err)).Inc()
		return BatchResult{}, err
	}

	// Emails saved on an earlier tick whose classification failed are no
	// longer guaranteed to show up in the provider listing; drain them from
	// the store alongside the new mail.
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		seen[ref.ID] = true
	}
	backlog, err := p.emails.ListUnprocessed(ctx, p.cfg.MaxBatchSize)
	if err != nil {
		p.logger.Warn("failed to list unprocessed backlog", zap.Error(err))
	}
	for _, email := range backlog {
		if !seen[email.MessageID] {
			refs = append(refs, MessageRef{ID: email.MessageID, ThreadID: email.ThreadID})
		}
	}

	result := BatchResult{Listed: len(refs)}
	if len(refs) == 0 {
		return result, nil
	}

	type outcome struct {
		skipped bool
		err     error
	}
	outcomes := make(chan outcome, len(refs))

	// Bounded fan-out: the classifier provider rate-limits aggressively,
	// so a large batch must not hit it all at once.
	sem := make(chan struct{}, p.cfg.Workers)
	for _, ref := range refs {
		sem <- struct{}{}
		go func(ref MessageRef) {
			defer func() { <-sem }()
			skipped, err := p.ProcessMessage(ctx, ref.ID)
			outcomes <- outcome{skipped: skipped, err: err}
		}(ref)
	}

	for range refs {
		o := <-outcomes
		switch {
		case o.err != nil:
			result.Failed++
		case o.skipped:
			result.Skipped++
		default:
			result.Processed++
		}
	}

	p.logger.Info("batch pass complete",
		zap.Int("listed", result.Listed),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("took", time.Since(start)))

	return result, nil
}

// ProcessMessage runs the five pipeline stages for one provider message,
// strictly in sequence. Returns skipped=true when the message was already
// ingested (the idempotency check fires before any model call).
func (p *Pipeline) ProcessMessage(ctx context.Context, messageID string) (skipped bool, err error) {
	// Dedupe before fetching the full payload or paying for a model call.
	existing, err := p.emails.FindByMessageID(ctx, messageID)
	if err != nil {
		p.failMessage(messageID, persistenceErr("idempotency check: %w", err))
		return false, err
	}
	if existing != nil && existing.AIProcessing.Processed {
		metrics.EmailsSkipped.Inc()
		// Keep the provider side consistent: a processed message should
		// not keep showing up in the unread listing.
		if err := p.markProviderProcessed(ctx, messageID); err != nil {
			p.logger.Warn("failed to mark processed message read",
				zap.String("messageId", messageID), zap.Error(err))
		}
		return true, nil
	}

	var email *models.Email
	if existing != nil {
		// Saved on an earlier tick but classification failed; retry from
		// the durable record.
		email = existing
	} else {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
		raw, err := p.inbox.Fetch(fetchCtx, messageID)
		cancel()
		if err != nil {
			p.failMessage(messageID, err)
			return false, err
		}

		email = ParseMessage(raw)

		// Persist before classification so a crash mid-pipeline leaves a
		// durable, re-processable record. Save retries once on failure.
		email, err = p.saveWithRetry(ctx, email)
		if err != nil {
			wrapped := persistenceErr("save %s: %w", messageID, err)
			p.failMessage(messageID, wrapped)
			p.logger.Error("email could not be persisted",
				zap.String("messageId", messageID),
				zap.String("from", email.From.Email),
				zap.String("subject", email.Subject),
				zap.Error(err))
			return false, wrapped
		}
	}

	classifyCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	analysis, err := p.classifier.Classify(classifyCtx, email)
	cancel()
	if err != nil {
		// The email stays processed=false so a later tick retries it.
		p.failMessage(messageID, err)
		if appendErr := p.emails.AppendError(ctx, messageID, models.ErrorEntry{
			Type:    ErrorKind(err),
			Message: err.Error(),
		}); appendErr != nil {
			p.logger.Error("failed to append classification error",
				zap.String("messageId", messageID), zap.Error(appendErr))
		}
		return false, err
	}

	if err := p.emails.MarkProcessed(ctx, messageID, analysis); err != nil {
		wrapped := persistenceErr("mark processed %s: %w", messageID, err)
		p.failMessage(messageID, wrapped)
		return false, wrapped
	}
	email.AIProcessing.Processed = true

	// Outward side effects only after the durable record exists.
	p.router.Route(ctx, email, analysis)

	if err := p.markProviderProcessed(ctx, messageID); err != nil {
		// Recorded but not fatal: the dedupe check absorbs the re-listing.
		if appendErr := p.emails.AppendError(ctx, messageID, models.ErrorEntry{
			Type:    ErrorKind(err),
			Message: err.Error(),
		}); appendErr != nil {
			p.logger.Error("failed to append provider error",
				zap.String("messageId", messageID), zap.Error(appendErr))
		}
	}

	metrics.EmailsProcessed.WithLabelValues(string(analysis.Category)).Inc()
	p.logger.Info("email processed",
		zap.String("messageId", messageID),
		zap.String("category", string(analysis.Category)),
		zap.String("priority", string(analysis.Priority)))

	return false, nil
}

// ProcessStored re-runs classification and routing for an email that is
// already persisted, used by the manual retry endpoint.
func (p *Pipeline) ProcessStored(ctx context.Context, messageID string) error {
	email, err := p.emails.FindByMessageID(ctx, messageID)
	if err != nil {
		return persistenceErr("load %s: %w", messageID, err)
	}
	if email == nil {
		return persistenceErr("email %s not found", messageID)
	}
	if email.AIProcessing.Processed {
		return nil
	}

	_, err = p.ProcessMessage(ctx, messageID)
	return err
}

func (p *Pipeline) saveWithRetry(ctx context.Context, email *models.Email) (*models.Email, error) {
	saved, err := p.emails.Save(ctx, email)
	if err == nil {
		return saved, nil
	}
	return p.emails.Save(ctx, email)
}

func (p *Pipeline) markProviderProcessed(ctx context.Context, messageID string) error {
	markCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer cancel()
	return p.inbox.MarkProcessed(markCtx, messageID)
}

func (p *Pipeline) failMessage(messageID string, err error) {
	metrics.EmailsFailed.WithLabelValues(ErrorKind(err)).Inc()
	p.logger.Warn("message failed",
		zap.String("messageId", messageID),
		zap.String("kind", ErrorKind(err)),
		zap.Error(err))
}
