package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anyproto/anytype-push-dispatch/domain"
	"github.com/anyproto/anytype-push-dispatch/queue"
	"github.com/anyproto/anytype-push-dispatch/queue/mock_queue"
	"github.com/anyproto/anytype-push-dispatch/repo/tokenrepo"
	"github.com/anyproto/anytype-push-dispatch/repo/tokenrepo/mock_tokenrepo"
	"github.com/anyproto/anytype-push-dispatch/sink"
	"github.com/anyproto/anytype-push-dispatch/sink/mock_sink"
)

var ctx = context.Background()

func TestEngine_Dispatch_Invalid(t *testing.T) {
	fx := newFixture(t, Config{})
	for _, req := range []domain.NotificationRequest{
		{Title: "t", Body: "b"},
		{RecipientIds: []string{""}, Title: "t", Body: "b"},
		{RecipientIds: []string{"rA"}, Body: "b"},
		{RecipientIds: []string{"rA"}, Title: "t"},
		{RecipientIds: []string{"rA"}, Title: strings.Repeat("t", 257), Body: "b"},
		{RecipientIds: []string{"rA"}, Title: "t", Body: strings.Repeat("b", 4097)},
	} {
		res, err := fx.Dispatch(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest)
		assert.Nil(t, res)
	}
	assert.Empty(t, fx.outcomes.all())
}

func TestEngine_Dispatch_MixedOutcomes(t *testing.T) {
	fx := newFixture(t, Config{})
	t1 := androidToken("t1", "rA")
	t2 := androidToken("t2", "rA")
	t3 := androidToken("t3", "rC")
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{t1, t2}, nil)
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rB").Return(nil, nil)
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rC").Return([]domain.Token{t3}, nil)
	fx.tokenRepo.EXPECT().Invalidate(gomock.Any(), "t2").Return(false, nil).Times(1)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		calls.Add(1)
		assert.Len(t, batch.Tokens, 3)
		return []domain.SendStatus{
			{Token: "t1", Status: domain.StatusDelivered},
			{Token: "t2", Status: domain.StatusFailed, Reason: domain.ReasonUnregistered},
			{Token: "t3", Status: domain.StatusDelivered},
		}, nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{
		RecipientIds: []string{"rA", "rB", "rC"},
		Title:        "hello",
		Body:         "world",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	require.Len(t, res.Invalidated, 1)
	assert.Equal(t, "t2", res.Invalidated[0].Id)
	assert.Equal(t, []domain.Failure{{RecipientId: "rB", Reason: domain.ReasonNoToken}}, res.Failed)
	assert.EqualValues(t, 1, calls.Load())

	noToken := fx.outcomes.byRecipient("rB")
	require.Len(t, noToken, 1)
	assert.Equal(t, domain.StatusFailed, noToken[0].Status)
	assert.Equal(t, domain.ReasonNoToken, noToken[0].Reason)
	assert.Empty(t, noToken[0].TokenId)
	assert.Equal(t, 0, noToken[0].Attempt)

	unreg := fx.outcomes.byToken("t2")
	require.Len(t, unreg, 1)
	assert.Equal(t, domain.StatusFailed, unreg[0].Status)
	assert.Equal(t, domain.ReasonUnregistered, unreg[0].Reason)
	assert.Equal(t, 1, unreg[0].Attempt)
}

func TestEngine_Dispatch_RetryThenDeliver(t *testing.T) {
	fx := newFixture(t, Config{BaseRetryDelayMs: 1, MaxRetryDelayMs: 4})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		if calls.Add(1) <= 2 {
			return []domain.SendStatus{{Token: "t1", Status: domain.StatusRetryable, Reason: domain.ReasonRateLimited}}, nil
		}
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Invalidated)
	assert.EqualValues(t, 3, calls.Load())

	outcomes := fx.outcomes.byToken("t1")
	require.Len(t, outcomes, 3)
	for i, o := range outcomes[:2] {
		assert.Equal(t, domain.StatusRetryable, o.Status)
		assert.Equal(t, domain.ReasonRateLimited, o.Reason)
		assert.Equal(t, i+1, o.Attempt)
	}
	assert.Equal(t, domain.StatusDelivered, outcomes[2].Status)
	assert.Equal(t, 3, outcomes[2].Attempt)
}

func TestEngine_Dispatch_RetriesExhausted(t *testing.T) {
	fx := newFixture(t, Config{MaxAttempts: 3, BaseRetryDelayMs: 1, MaxRetryDelayMs: 4})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		calls.Add(1)
		return []domain.SendStatus{{Token: "t1", Status: domain.StatusRetryable, Reason: domain.ReasonUnavailable}}, nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, []domain.Failure{{RecipientId: "rA", TokenId: "t1", Reason: domain.ReasonRetriesExhausted}}, res.Failed)
	assert.EqualValues(t, 3, calls.Load())

	outcomes := fx.outcomes.byToken("t1")
	require.Len(t, outcomes, 3)
	assert.Equal(t, domain.StatusRetryable, outcomes[0].Status)
	assert.Equal(t, domain.StatusRetryable, outcomes[1].Status)
	assert.Equal(t, domain.StatusFailed, outcomes[2].Status)
	assert.Equal(t, domain.ReasonRetriesExhausted, outcomes[2].Reason)
	assert.Equal(t, 3, outcomes[2].Attempt)
}

func TestEngine_Dispatch_WholesaleError(t *testing.T) {
	fx := newFixture(t, Config{BaseRetryDelayMs: 1, MaxRetryDelayMs: 4})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	outcomes := fx.outcomes.byToken("t1")
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.StatusRetryable, outcomes[0].Status)
	assert.Equal(t, domain.ReasonUnavailable, outcomes[0].Reason)
	assert.Equal(t, domain.StatusDelivered, outcomes[1].Status)
}

func TestEngine_Dispatch_Timeout(t *testing.T) {
	fx := newFixture(t, Config{SendTimeoutMs: 20, BaseRetryDelayMs: 1, MaxRetryDelayMs: 4})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(sendCtx context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		if calls.Add(1) == 1 {
			<-sendCtx.Done()
			return nil, sendCtx.Err()
		}
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	outcomes := fx.outcomes.byToken("t1")
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.StatusRetryable, outcomes[0].Status)
	assert.Equal(t, domain.ReasonTimeout, outcomes[0].Reason)
	assert.Equal(t, domain.StatusDelivered, outcomes[1].Status)
}

func TestEngine_Dispatch_MissingStatuses(t *testing.T) {
	fx := newFixture(t, Config{BaseRetryDelayMs: 1, MaxRetryDelayMs: 4})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").
		Return([]domain.Token{androidToken("t1", "rA"), androidToken("t2", "rA")}, nil)

	var calls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		if calls.Add(1) == 1 {
			return []domain.SendStatus{{Token: "t1", Status: domain.StatusDelivered}}, nil
		}
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)

	outcomes := fx.outcomes.byToken("t2")
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.StatusRetryable, outcomes[0].Status)
	assert.Equal(t, domain.ReasonUnavailable, outcomes[0].Reason)
	assert.Equal(t, domain.StatusDelivered, outcomes[1].Status)
	assert.Equal(t, 2, outcomes[1].Attempt)
}

func TestEngine_Dispatch_BatchSplit(t *testing.T) {
	fx := newFixture(t, Config{MaxBatchSize: 100, Concurrency: 2, BaseRetryDelayMs: 1})
	tokens := make([]domain.Token, 250)
	for i := range tokens {
		tokens[i] = androidToken(fmt.Sprintf("t%03d", i), "rA")
	}
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return(tokens, nil)

	var (
		mu       sync.Mutex
		calls    int
		seen     = map[string]int{}
		inflight atomic.Int32
		maxIn    atomic.Int32
	)
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		cur := inflight.Add(1)
		for {
			prev := maxIn.Load()
			if cur <= prev || maxIn.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		assert.LessOrEqual(t, len(batch.Tokens), 100)
		mu.Lock()
		calls++
		for _, tok := range batch.Tokens {
			seen[tok.Id]++
		}
		mu.Unlock()
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 250, res.Delivered)
	assert.Equal(t, 3, calls)
	assert.Len(t, seen, 250)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.LessOrEqual(t, maxIn.Load(), int32(2))
}

func TestEngine_Dispatch_PlatformPartition(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{
		androidToken("ta", "rA"),
		{Id: "ti", RecipientId: "rA", Platform: domain.PlatformIOS},
	}, nil)

	var androidCalls, iosCalls atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		androidCalls.Add(1)
		assert.Equal(t, domain.PlatformAndroid, batch.Platform)
		assert.Equal(t, []string{"ta"}, batch.TokenIds())
		return deliverAll(batch), nil
	}})
	fx.RegisterGateway(domain.PlatformIOS, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		iosCalls.Add(1)
		assert.Equal(t, domain.PlatformIOS, batch.Platform)
		assert.Equal(t, []string{"ti"}, batch.TokenIds())
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.EqualValues(t, 1, androidCalls.Load())
	assert.EqualValues(t, 1, iosCalls.Load())
}

func TestEngine_Dispatch_SharedToken(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rB").Return([]domain.Token{androidToken("t1", "rB")}, nil)

	var total atomic.Int32
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		total.Add(int32(len(batch.Tokens)))
		return deliverAll(batch), nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA", "rB"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.EqualValues(t, 1, total.Load())
}

func TestEngine_Dispatch_NoGateway(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").
		Return([]domain.Token{{Id: "ti", RecipientId: "rA", Platform: domain.PlatformIOS}}, nil)

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, []domain.Failure{{RecipientId: "rA", TokenId: "ti", Reason: domain.ReasonUnavailable}}, res.Failed)

	outcomes := fx.outcomes.byToken("ti")
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusFailed, outcomes[0].Status)
	assert.Equal(t, domain.ReasonUnavailable, outcomes[0].Reason)
}

func TestEngine_Dispatch_InvalidateError(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)
	fx.tokenRepo.EXPECT().Invalidate(gomock.Any(), "t1").Return(false, errors.New("mongo down")).Times(1)

	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		return []domain.SendStatus{{Token: "t1", Status: domain.StatusFailed, Reason: domain.ReasonUnregistered}}, nil
	}})

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Empty(t, res.Invalidated)
	assert.Equal(t, []domain.Failure{{RecipientId: "rA", TokenId: "t1", Reason: domain.ReasonUnregistered}}, res.Failed)
}

func TestEngine_Dispatch_LookupError(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return(nil, errors.New("mongo down"))

	res, err := fx.Dispatch(ctx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, res)
	assert.Empty(t, fx.outcomes.all())
}

func TestEngine_Dispatch_Cancelled(t *testing.T) {
	fx := newFixture(t, Config{BaseRetryDelayMs: 1})
	fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)
	fx.tokenRepo.EXPECT().Invalidate(gomock.Any(), "t1").Return(false, nil).Times(1)

	started := make(chan struct{})
	release := make(chan struct{})
	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		close(started)
		<-release
		return []domain.SendStatus{{Token: "t1", Status: domain.StatusFailed, Reason: domain.ReasonUnregistered}}, nil
	}})

	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		res  *domain.DispatchResult
		derr error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, derr = fx.Dispatch(dispatchCtx, domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"})
	}()
	<-started
	cancel()
	close(release)
	<-done

	require.ErrorIs(t, derr, context.Canceled)
	assert.Nil(t, res)
	assert.Empty(t, fx.outcomes.all())
}

func TestEngine_QueueConsume(t *testing.T) {
	fx := newFixture(t, Config{Consumers: 2})
	require.Len(t, fx.handlers, 2)
	handle := fx.handlers[0]

	fx.RegisterGateway(domain.PlatformAndroid, &testGateway{send: func(_ context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
		return deliverAll(batch), nil
	}})

	t.Run("dispatches request", func(t *testing.T) {
		fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return([]domain.Token{androidToken("t1", "rA")}, nil)
		err := handle(queue.Message{Request: domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"}})
		require.NoError(t, err)
	})
	t.Run("acks invalid request", func(t *testing.T) {
		err := handle(queue.Message{Request: domain.NotificationRequest{RecipientIds: []string{"rA"}}})
		require.NoError(t, err)
	})
	t.Run("rejects on store error", func(t *testing.T) {
		fx.tokenRepo.EXPECT().Lookup(gomock.Any(), "rA").Return(nil, errors.New("mongo down"))
		err := handle(queue.Message{Request: domain.NotificationRequest{RecipientIds: []string{"rA"}, Title: "t", Body: "b"}})
		require.Error(t, err)
	})
}

type fixture struct {
	Engine
	a         *app.App
	ctrl      *gomock.Controller
	tokenRepo *mock_tokenrepo.MockTokenRepo
	queue     *mock_queue.MockQueue
	sink      *mock_sink.MockSink
	handlers  []func(queue.Message) error
	outcomes  *outcomeLog
}

func newFixture(t *testing.T, conf Config) *fixture {
	fx := &fixture{
		Engine:   New(),
		a:        new(app.App),
		ctrl:     gomock.NewController(t),
		outcomes: &outcomeLog{},
	}
	fx.tokenRepo = mock_tokenrepo.NewMockTokenRepo(fx.ctrl)
	fx.tokenRepo.EXPECT().Name().Return(tokenrepo.CName).AnyTimes()
	fx.tokenRepo.EXPECT().Init(gomock.Any()).AnyTimes()
	fx.tokenRepo.EXPECT().Run(gomock.Any()).AnyTimes()
	fx.tokenRepo.EXPECT().Close(gomock.Any()).AnyTimes()
	fx.queue = mock_queue.NewMockQueue(fx.ctrl)
	fx.queue.EXPECT().Name().Return(queue.CName).AnyTimes()
	fx.queue.EXPECT().Init(gomock.Any()).AnyTimes()
	fx.queue.EXPECT().Run(gomock.Any()).AnyTimes()
	fx.queue.EXPECT().Close(gomock.Any()).AnyTimes()
	fx.queue.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, handle func(queue.Message) error) error {
			fx.handlers = append(fx.handlers, handle)
			return nil
		}).AnyTimes()
	fx.sink = mock_sink.NewMockSink(fx.ctrl)
	fx.sink.EXPECT().Name().Return(sink.CName).AnyTimes()
	fx.sink.EXPECT().Init(gomock.Any()).AnyTimes()
	fx.sink.EXPECT().Run(gomock.Any()).AnyTimes()
	fx.sink.EXPECT().Close(gomock.Any()).AnyTimes()
	fx.sink.EXPECT().Record(gomock.Any()).Do(fx.outcomes.add).AnyTimes()

	fx.a.Register(&testConfig{dispatch: conf}).
		Register(fx.tokenRepo).
		Register(fx.queue).
		Register(fx.sink).
		Register(fx.Engine)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}

type testConfig struct {
	dispatch Config
}

func (c *testConfig) Init(a *app.App) (err error) { return }
func (c *testConfig) Name() string                { return "config" }
func (c *testConfig) GetDispatch() Config         { return c.dispatch }

type testGateway struct {
	send func(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error)
}

func (g *testGateway) SendBatch(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
	return g.send(ctx, batch)
}

func deliverAll(batch domain.Batch) (statuses []domain.SendStatus) {
	for _, t := range batch.Tokens {
		statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: domain.StatusDelivered})
	}
	return
}

func androidToken(id, recipientId string) domain.Token {
	return domain.Token{Id: id, RecipientId: recipientId, Platform: domain.PlatformAndroid}
}

type outcomeLog struct {
	mu   sync.Mutex
	list []domain.DeliveryOutcome
}

func (l *outcomeLog) add(o domain.DeliveryOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, o)
}

func (l *outcomeLog) all() []domain.DeliveryOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.DeliveryOutcome(nil), l.list...)
}

func (l *outcomeLog) byToken(tokenId string) (out []domain.DeliveryOutcome) {
	for _, o := range l.all() {
		if o.TokenId == tokenId {
			out = append(out, o)
		}
	}
	return
}

func (l *outcomeLog) byRecipient(recipientId string) (out []domain.DeliveryOutcome) {
	for _, o := range l.all() {
		if o.RecipientId == recipientId {
			out = append(out, o)
		}
	}
	return
}
