package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anyproto/any-sync/metric"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/domain"
)

func (e *engine) Dispatch(ctx context.Context, req domain.NotificationRequest) (res *domain.DispatchResult, err error) {
	st := time.Now()
	if req.Id == "" {
		req.Id = domain.NewRequestId()
	}
	if err = e.validate(&req); err != nil {
		return nil, err
	}
	defer func() {
		e.metrics.requests.Add(1)
		e.metrics.duration.Observe(time.Since(st).Seconds())
		if e.metric != nil {
			e.metric.RequestLog(ctx, "dispatch.request",
				metric.TotalDur(time.Since(st)),
				zap.String("requestId", req.Id),
				zap.Error(err),
			)
		}
	}()

	res = &domain.DispatchResult{RequestId: req.Id}
	pending, err := e.resolve(ctx, req, res)
	if err != nil {
		return nil, err
	}
	e.metrics.tokens.Add(int64(len(pending)))

	for attempt := 1; len(pending) > 0 && attempt <= e.conf.MaxAttempts; attempt++ {
		verdicts := e.sendRound(ctx, req, pending, attempt)
		var rateLimited bool
		pending, rateLimited = e.applyRound(ctx, req, pending, verdicts, attempt, res)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(pending) == 0 {
			break
		}
		e.backoff.observeThrottle(rateLimited)
		if err = e.backoff.sleep(ctx, attempt); err != nil {
			return nil, err
		}
	}

	log.Debug("dispatch complete",
		zap.String("requestId", req.Id),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", len(res.Failed)),
		zap.Int("invalidated", len(res.Invalidated)),
		zap.Duration("dur", time.Since(st)))
	return res, nil
}

// resolve maps recipients to their valid tokens, deduplicated across
// recipients. Recipients without a single token fail terminally here and
// never reach a gateway.
func (e *engine) resolve(ctx context.Context, req domain.NotificationRequest, res *domain.DispatchResult) (pending []domain.Token, err error) {
	seen := make(map[string]struct{})
	for _, recipientId := range req.RecipientIds {
		tokens, err := e.tokenRepo.Lookup(ctx, recipientId)
		if err != nil {
			return nil, fmt.Errorf("token lookup: %w", err)
		}
		if len(tokens) == 0 {
			res.Failed = append(res.Failed, domain.Failure{
				RecipientId: recipientId,
				Reason:      domain.ReasonNoToken,
			})
			e.record(domain.DeliveryOutcome{
				RequestId:   req.Id,
				RecipientId: recipientId,
				Status:      domain.StatusFailed,
				Reason:      domain.ReasonNoToken,
			})
			continue
		}
		for _, t := range tokens {
			if _, ok := seen[t.Id]; ok {
				continue
			}
			seen[t.Id] = struct{}{}
			pending = append(pending, t)
		}
	}
	return
}

type verdict struct {
	status domain.Status
	reason domain.Reason
}

// sendRound fans the pending tokens out in platform batches of at most
// MaxBatchSize, every token in exactly one batch. The semaphore bounds
// concurrent gateway calls engine-wide; once the caller context is done no
// further batch is scheduled, but started calls run to completion.
func (e *engine) sendRound(ctx context.Context, req domain.NotificationRequest, pending []domain.Token, attempt int) map[string]verdict {
	verdicts := make(map[string]verdict, len(pending))
	byPlatform := make(map[domain.Platform][]domain.Token)
	for _, t := range pending {
		byPlatform[t.Platform] = append(byPlatform[t.Platform], t)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
schedule:
	for platform, tokens := range byPlatform {
		gw, ok := e.gateways[platform]
		if !ok {
			log.Warn("no gateway for platform",
				zap.String("platform", platform.String()),
				zap.Int("tokens", len(tokens)))
			mu.Lock()
			for _, t := range tokens {
				verdicts[t.Id] = verdict{status: domain.StatusFailed, reason: domain.ReasonUnavailable}
			}
			mu.Unlock()
			continue
		}
		for len(tokens) > 0 {
			chunk := tokens
			if len(chunk) > e.conf.MaxBatchSize {
				chunk = tokens[:e.conf.MaxBatchSize]
			}
			tokens = tokens[len(chunk):]
			if err := e.sem.Acquire(ctx, 1); err != nil {
				break schedule
			}
			batch := domain.Batch{
				RequestId: req.Id,
				Platform:  platform,
				Tokens:    chunk,
				Title:     req.Title,
				Body:      req.Body,
				Data:      req.Data,
				Priority:  req.Priority,
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer e.sem.Release(1)
				statuses := e.sendBatch(gw, batch, attempt)
				mu.Lock()
				for _, s := range statuses {
					verdicts[s.Token] = verdict{status: s.Status, reason: s.Reason}
				}
				mu.Unlock()
			}()
		}
	}
	wg.Wait()
	return verdicts
}

// sendBatch runs one gateway call under the per-call timeout and normalizes
// the reply: a wholesale error marks the whole batch retryable, tokens the
// gateway did not report stay retryable too. The call context derives from
// runCtx, not the request context, so an in-flight call outlives cancellation.
func (e *engine) sendBatch(gw Gateway, batch domain.Batch, attempt int) []domain.SendStatus {
	callCtx, cancel := context.WithTimeout(e.runCtx, e.conf.sendTimeout())
	defer cancel()
	st := time.Now()
	statuses, err := gw.SendBatch(callCtx, batch)
	if err != nil {
		reason := domain.ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = domain.ReasonTimeout
		}
		log.Warn("batch send failed",
			zap.String("requestId", batch.RequestId),
			zap.String("platform", batch.Platform.String()),
			zap.Int("tokens", len(batch.Tokens)),
			zap.Int("attempt", attempt),
			zap.Duration("dur", time.Since(st)),
			zap.Error(err))
		statuses = statuses[:0]
		for _, t := range batch.Tokens {
			statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: domain.StatusRetryable, Reason: reason})
		}
		return statuses
	}
	if len(statuses) < len(batch.Tokens) {
		reported := make(map[string]struct{}, len(statuses))
		for _, s := range statuses {
			reported[s.Token] = struct{}{}
		}
		for _, t := range batch.Tokens {
			if _, ok := reported[t.Id]; !ok {
				statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: domain.StatusRetryable, Reason: domain.ReasonUnavailable})
			}
		}
	}
	return statuses
}

// applyRound records outcomes and splits the round into terminal tokens and
// the retry set for the next round. Unregistered tokens invalidate exactly
// once, on runCtx, even when the caller already cancelled; all other result
// bookkeeping is skipped after cancellation because the result is discarded.
func (e *engine) applyRound(ctx context.Context, req domain.NotificationRequest, pending []domain.Token, verdicts map[string]verdict, attempt int, res *domain.DispatchResult) (retry []domain.Token, rateLimited bool) {
	cancelled := ctx.Err() != nil
	for _, token := range pending {
		v, ok := verdicts[token.Id]
		if !ok {
			// never scheduled, only possible after cancellation
			continue
		}
		outcome := domain.DeliveryOutcome{
			RequestId:   req.Id,
			RecipientId: token.RecipientId,
			TokenId:     token.Id,
			Status:      v.status,
			Reason:      v.reason,
			Attempt:     attempt,
		}
		switch v.status {
		case domain.StatusDelivered:
			if !cancelled {
				res.Delivered++
				e.record(outcome)
			}
		case domain.StatusFailed:
			if v.reason == domain.ReasonUnregistered {
				if _, err := e.tokenRepo.Invalidate(e.runCtx, token.Id); err != nil {
					log.Error("token invalidation failed",
						zap.String("token", token.Id),
						zap.Error(err))
					if !cancelled {
						res.Failed = append(res.Failed, domain.Failure{RecipientId: token.RecipientId, TokenId: token.Id, Reason: v.reason})
					}
				} else {
					e.metrics.invalidated.Add(1)
					if !cancelled {
						res.Invalidated = append(res.Invalidated, token)
					}
				}
			} else if !cancelled {
				res.Failed = append(res.Failed, domain.Failure{RecipientId: token.RecipientId, TokenId: token.Id, Reason: v.reason})
			}
			if !cancelled {
				e.record(outcome)
			}
		case domain.StatusRetryable:
			if v.reason == domain.ReasonRateLimited {
				rateLimited = true
			}
			if attempt >= e.conf.MaxAttempts {
				outcome.Status = domain.StatusFailed
				outcome.Reason = domain.ReasonRetriesExhausted
				if !cancelled {
					res.Failed = append(res.Failed, domain.Failure{RecipientId: token.RecipientId, TokenId: token.Id, Reason: domain.ReasonRetriesExhausted})
					e.record(outcome)
				}
			} else {
				if !cancelled {
					e.record(outcome)
				}
				retry = append(retry, token)
			}
		}
	}
	return
}

func (e *engine) record(o domain.DeliveryOutcome) {
	switch o.Status {
	case domain.StatusDelivered:
		e.metrics.delivered.Add(1)
	case domain.StatusFailed:
		e.metrics.failed.Add(1)
	case domain.StatusRetryable:
		e.metrics.retries.Add(1)
	}
	e.sink.Record(o)
}
