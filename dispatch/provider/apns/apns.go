package apns

import (
	"context"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/dispatch"
	"github.com/anyproto/anytype-push-dispatch/domain"
)

const CName = "push.provider.apns"

var log = logger.NewNamed(CName)

func New() APNS {
	return new(apns)
}

type APNS interface {
	app.Component
}

type configSource interface {
	GetAPNS() Config
}

type Config struct {
	KeyFile    string `yaml:"keyFile"`
	KeyId      string `yaml:"keyId"`
	TeamId     string `yaml:"teamId"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

type apns struct {
}

// Init registers the gateway for ios when a key is configured, taking the
// platform over from any fcm registration.
func (s *apns) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetAPNS()
	if conf.KeyFile == "" {
		return
	}
	authKey, err := token.AuthKeyFromFile(conf.KeyFile)
	if err != nil {
		return err
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   conf.KeyId,
		TeamID:  conf.TeamId,
	})
	if conf.Production {
		client = client.Production()
	}
	e := a.MustComponent(dispatch.CName).(dispatch.Engine)
	e.RegisterGateway(domain.PlatformIOS, &apnsGateway{client: client, topic: conf.Topic})
	return
}

func (s *apns) Name() (name string) {
	return CName
}

// pushClient is the slice of *apns2.Client the gateway needs.
type pushClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type apnsGateway struct {
	client pushClient
	topic  string
}

// SendBatch pushes one notification per token: the apns http/2 api is unary.
// A transport error on one token leaves its siblings untouched.
func (g *apnsGateway) SendBatch(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
	pl := payload.NewPayload().
		AlertTitle(batch.Title).
		AlertBody(batch.Body)
	for k, v := range batch.Data {
		pl.Custom(k, v)
	}
	priority := apns2.PriorityLow
	if batch.Priority == domain.PriorityHigh {
		priority = apns2.PriorityHigh
	}

	statuses := make([]domain.SendStatus, 0, len(batch.Tokens))
	for _, t := range batch.Tokens {
		if ctx.Err() != nil {
			// the engine schedules unreported tokens for another round
			break
		}
		resp, err := g.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: t.Id,
			Topic:       g.topic,
			Payload:     pl,
			Priority:    priority,
		})
		if err != nil {
			log.Debug("apns transport error", zap.String("token", t.Id), zap.Error(err))
			statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: domain.StatusRetryable, Reason: domain.ReasonUnavailable})
			continue
		}
		if resp.Sent() {
			statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: domain.StatusDelivered})
			continue
		}
		status, reason := classifyResponse(resp)
		log.Debug("apns rejected notification",
			zap.String("token", t.Id),
			zap.String("reason", resp.Reason),
			zap.Int("status", resp.StatusCode))
		statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: status, Reason: reason})
	}
	return statuses, nil
}

func classifyResponse(resp *apns2.Response) (domain.Status, domain.Reason) {
	switch resp.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return domain.StatusFailed, domain.ReasonUnregistered
	case apns2.ReasonTooManyRequests:
		return domain.StatusRetryable, domain.ReasonRateLimited
	default:
		return domain.StatusRetryable, domain.ReasonUnavailable
	}
}
