package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/anyproto/anytype-push-dispatch/dispatch"
	"github.com/anyproto/anytype-push-dispatch/domain"
)

const CName = "push.provider.fcm"

var log = logger.NewNamed(CName)

func New() FCM {
	return new(fcm)
}

type FCM interface {
	app.Component
}

type fcm struct {
}

func (f *fcm) Init(a *app.App) (err error) {
	e := a.MustComponent(dispatch.CName).(dispatch.Engine)
	conf := a.MustComponent("config").(configSource).GetFCM()

	if conf.CredentialsFile.Android != "" {
		android, err := newGateway(conf.CredentialsFile.Android)
		if err != nil {
			return err
		}
		e.RegisterGateway(domain.PlatformAndroid, android)
	}
	if conf.CredentialsFile.IOS != "" {
		ios, err := newGateway(conf.CredentialsFile.IOS)
		if err != nil {
			return err
		}
		e.RegisterGateway(domain.PlatformIOS, ios)
	}
	return
}

func (f *fcm) Name() (name string) {
	return CName
}

func newGateway(credentialsFile string) (dispatch.Gateway, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	fcmApp, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := fcmApp.Messaging(context.Background())
	if err != nil {
		return nil, err
	}
	return &fcmGateway{client: client}, nil
}

// messagingClient is the slice of *messaging.Client the gateway needs.
type messagingClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type fcmGateway struct {
	client messagingClient
}

func (g *fcmGateway) SendBatch(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
	resp, err := g.client.SendEachForMulticast(ctx, buildMulticastMessage(batch))
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) != len(batch.Tokens) {
		return nil, fmt.Errorf("fcm: %d responses for %d tokens", len(resp.Responses), len(batch.Tokens))
	}
	statuses := make([]domain.SendStatus, 0, len(batch.Tokens))
	for i, r := range resp.Responses {
		tokenId := batch.Tokens[i].Id
		if r.Error == nil {
			statuses = append(statuses, domain.SendStatus{Token: tokenId, Status: domain.StatusDelivered})
			continue
		}
		status, reason := classifyError(r.Error)
		log.Debug("fcm send error", zap.String("token", tokenId), zap.Error(r.Error))
		statuses = append(statuses, domain.SendStatus{Token: tokenId, Status: status, Reason: reason})
	}
	log.Debug("batch sent",
		zap.String("requestId", batch.RequestId),
		zap.Int("success", resp.SuccessCount),
		zap.Int("failure", resp.FailureCount))
	return statuses, nil
}

// classifyError folds the fcm error family into the outcome taxonomy: errors
// marking the token itself unusable invalidate it, everything else is left to
// the retry loop.
func classifyError(err error) (domain.Status, domain.Reason) {
	switch {
	case messaging.IsUnregistered(err),
		messaging.IsInvalidArgument(err),
		messaging.IsSenderIDMismatch(err),
		messaging.IsThirdPartyAuthError(err):
		return domain.StatusFailed, domain.ReasonUnregistered
	case messaging.IsQuotaExceeded(err):
		return domain.StatusRetryable, domain.ReasonRateLimited
	default:
		return domain.StatusRetryable, domain.ReasonUnavailable
	}
}

func buildMulticastMessage(batch domain.Batch) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: batch.TokenIds(),
		Notification: &messaging.Notification{
			Title: batch.Title,
			Body:  batch.Body,
		},
		Data: batch.Data,
	}
	if batch.Priority == domain.PriorityHigh {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		}
	}
	return msg
}
