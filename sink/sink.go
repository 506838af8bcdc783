//go:generate mockgen -destination mock_sink/mock_sink.go github.com/anyproto/anytype-push-dispatch/sink Sink

package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/cheggaaa/mb/v3"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/domain"
)

const CName = "push.sink"

var log = logger.NewNamed(CName)

func New() Sink {
	return new(sink)
}

// Sink receives one outcome per token per attempt. Record is best-effort and
// never blocks dispatch progress.
type Sink interface {
	Record(outcome domain.DeliveryOutcome)
	app.ComponentRunnable
}

type sink struct {
	outcomes *mb.MB[domain.DeliveryOutcome]
	recorded atomic.Int64
	dropped  atomic.Int64
	flushed  atomic.Int64
}

func (s *sink) Init(a *app.App) (err error) {
	s.outcomes = mb.New[domain.DeliveryOutcome](1000)
	return
}

func (s *sink) Name() (name string) {
	return CName
}

func (s *sink) Run(ctx context.Context) (err error) {
	go s.flushLoop()
	return
}

func (s *sink) Record(outcome domain.DeliveryOutcome) {
	if err := s.outcomes.TryAdd(outcome); err != nil {
		s.dropped.Add(1)
		log.Debug("outcome dropped", zap.String("token", outcome.TokenId), zap.Error(err))
		return
	}
	s.recorded.Add(1)
}

func (s *sink) flushLoop() {
	ctx := mb.CtxWithTimeLimit(context.Background(), time.Second)
	cond := s.outcomes.NewCond().WithMin(10)
	for {
		outcomes, err := cond.Wait(ctx)
		if err != nil {
			return
		}
		s.flush(outcomes)
	}
}

func (s *sink) flush(outcomes []domain.DeliveryOutcome) {
	var delivered, failed, retryable int
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusDelivered:
			delivered++
		case domain.StatusFailed:
			failed++
		default:
			retryable++
		}
		log.Debug("outcome",
			zap.String("requestId", o.RequestId),
			zap.String("recipientId", o.RecipientId),
			zap.String("token", o.TokenId),
			zap.String("status", o.Status.String()),
			zap.String("reason", o.Reason.String()),
			zap.Int("attempt", o.Attempt))
	}
	s.flushed.Add(int64(len(outcomes)))
	log.Info("outcomes recorded",
		zap.Int("count", len(outcomes)),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed),
		zap.Int("retryable", retryable))
}

func (s *sink) Close(ctx context.Context) (err error) {
	return s.outcomes.Close()
}
