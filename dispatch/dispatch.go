package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/anyproto/any-sync/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/anyproto/anytype-push-dispatch/domain"
	"github.com/anyproto/anytype-push-dispatch/queue"
	"github.com/anyproto/anytype-push-dispatch/repo/tokenrepo"
	"github.com/anyproto/anytype-push-dispatch/sink"
)

const CName = "push.dispatch"

// providers cap multicast size at 500 tokens per call
const maxBatchLimit = 500

var log = logger.NewNamed(CName)

var (
	ErrInvalidRequest = errors.New("invalid notification request")
)

func New() Engine {
	return new(engine)
}

type Engine interface {
	// Dispatch delivers the request to every registered token of every
	// recipient and returns once all tokens reached a terminal state.
	Dispatch(ctx context.Context, req domain.NotificationRequest) (res *domain.DispatchResult, err error)
	RegisterGateway(p domain.Platform, gw Gateway)
	app.ComponentRunnable
}

// Gateway performs one delivery attempt for a batch. Implementations translate
// provider responses into per-token statuses and never retry on their own; the
// error return is reserved for wholesale transport failures.
type Gateway interface {
	SendBatch(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error)
}

type Config struct {
	MaxBatchSize     int `yaml:"maxBatchSize"`
	MaxAttempts      int `yaml:"maxAttempts"`
	BaseRetryDelayMs int `yaml:"baseRetryDelayMs"`
	MaxRetryDelayMs  int `yaml:"maxRetryDelayMs"`
	SendTimeoutMs    int `yaml:"sendTimeoutMs"`
	Concurrency      int `yaml:"concurrency"`
	Consumers        int `yaml:"consumers"`
	MaxTitleBytes    int `yaml:"maxTitleBytes"`
	MaxBodyBytes     int `yaml:"maxBodyBytes"`
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > maxBatchLimit {
		c.MaxBatchSize = maxBatchLimit
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseRetryDelayMs <= 0 {
		c.BaseRetryDelayMs = 500
	}
	if c.MaxRetryDelayMs <= 0 {
		c.MaxRetryDelayMs = 30000
	}
	if c.SendTimeoutMs <= 0 {
		c.SendTimeoutMs = 10000
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.Consumers <= 0 {
		c.Consumers = 4
	}
	if c.MaxTitleBytes <= 0 {
		c.MaxTitleBytes = 256
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4096
	}
	return c
}

func (c Config) baseRetryDelay() time.Duration {
	return time.Duration(c.BaseRetryDelayMs) * time.Millisecond
}

func (c Config) maxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMs) * time.Millisecond
}

func (c Config) sendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

type configSource interface {
	GetDispatch() Config
}

type engine struct {
	conf      Config
	tokenRepo tokenrepo.TokenRepo
	queue     queue.Queue
	sink      sink.Sink
	metric    metric.Metric

	gateways map[domain.Platform]Gateway
	sem      *semaphore.Weighted
	backoff  *backoff
	metrics  metrics

	runCtx       context.Context
	runCtxCancel context.CancelFunc
}

func (e *engine) Init(a *app.App) (err error) {
	e.conf = a.MustComponent("config").(configSource).GetDispatch().withDefaults()
	e.tokenRepo = a.MustComponent(tokenrepo.CName).(tokenrepo.TokenRepo)
	e.queue = a.MustComponent(queue.CName).(queue.Queue)
	e.sink = a.MustComponent(sink.CName).(sink.Sink)
	e.gateways = make(map[domain.Platform]Gateway)
	e.sem = semaphore.NewWeighted(int64(e.conf.Concurrency))
	e.backoff = newBackoff(e.conf.baseRetryDelay(), e.conf.maxRetryDelay())
	e.metrics.duration = newDurationSummary()
	e.runCtx, e.runCtxCancel = context.WithCancel(context.Background())
	if m := a.Component(metric.CName); m != nil {
		e.metric = m.(metric.Metric)
		registerMetrics(e.metric.Registry(), e)
	}
	return
}

func (e *engine) Name() (name string) {
	return CName
}

func (e *engine) Run(ctx context.Context) (err error) {
	for range e.conf.Consumers {
		if err = e.queue.Consume(ctx, e.handleMessage); err != nil {
			return
		}
	}
	return
}

func (e *engine) RegisterGateway(p domain.Platform, gw Gateway) {
	if _, ok := e.gateways[p]; ok {
		log.Warn("gateway overridden", zap.String("platform", p.String()))
	}
	e.gateways[p] = gw
}

func (e *engine) handleMessage(msg queue.Message) error {
	res, err := e.Dispatch(e.runCtx, msg.Request)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			log.Warn("drop invalid request", zap.String("requestId", msg.Request.Id), zap.Error(err))
			return nil
		}
		return err
	}
	log.Info("request dispatched",
		zap.String("requestId", res.RequestId),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", len(res.Failed)),
		zap.Int("invalidated", len(res.Invalidated)))
	return nil
}

func (e *engine) validate(req *domain.NotificationRequest) error {
	req.RecipientIds = dedupe(req.RecipientIds)
	if len(req.RecipientIds) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidRequest)
	}
	for _, id := range req.RecipientIds {
		if id == "" {
			return fmt.Errorf("%w: empty recipient id", ErrInvalidRequest)
		}
	}
	if req.Title == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidRequest)
	}
	if req.Body == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}
	if len(req.Title) > e.conf.MaxTitleBytes {
		return fmt.Errorf("%w: title exceeds %d bytes", ErrInvalidRequest, e.conf.MaxTitleBytes)
	}
	if len(req.Body) > e.conf.MaxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidRequest, e.conf.MaxBodyBytes)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (e *engine) Close(ctx context.Context) (err error) {
	if e.runCtxCancel != nil {
		e.runCtxCancel()
	}
	return
}
