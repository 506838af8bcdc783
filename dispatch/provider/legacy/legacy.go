package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/dispatch"
	"github.com/anyproto/anytype-push-dispatch/domain"
)

const CName = "push.provider.legacy"

var log = logger.NewNamed(CName)

func New() Legacy {
	return new(legacy)
}

// Legacy adapts the server-key http protocol: one POST per batch, per-token
// results decoded from the reply body.
type Legacy interface {
	app.Component
}

type configSource interface {
	GetLegacy() Config
}

type Config struct {
	Endpoint  string `yaml:"endpoint"`
	ServerKey string `yaml:"serverKey"`
	// Platforms this gateway claims, "android" by default.
	Platforms []string `yaml:"platforms"`
}

type legacy struct {
}

func (l *legacy) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetLegacy()
	if conf.Endpoint == "" {
		return
	}
	e := a.MustComponent(dispatch.CName).(dispatch.Engine)
	gw := &legacyGateway{
		endpoint:  conf.Endpoint,
		serverKey: conf.ServerKey,
		client:    &http.Client{},
	}
	platforms := conf.Platforms
	if len(platforms) == 0 {
		platforms = []string{domain.PlatformAndroid.String()}
	}
	for _, name := range platforms {
		switch name {
		case domain.PlatformAndroid.String():
			e.RegisterGateway(domain.PlatformAndroid, gw)
		case domain.PlatformIOS.String():
			e.RegisterGateway(domain.PlatformIOS, gw)
		default:
			return fmt.Errorf("legacy: unknown platform %q", name)
		}
	}
	return
}

func (l *legacy) Name() (name string) {
	return CName
}

type sendRequest struct {
	To              string            `json:"to,omitempty"`
	RegistrationIds []string          `json:"registration_ids,omitempty"`
	Notification    wireNotification  `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
	Priority        string            `json:"priority"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Success int          `json:"success"`
	Failure int          `json:"failure"`
	Results []sendResult `json:"results"`
}

type sendResult struct {
	MessageId string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	errNotRegistered             = "NotRegistered"
	errInvalidRegistration       = "InvalidRegistration"
	errMissingRegistration       = "MissingRegistration"
	errMismatchSenderId          = "MismatchSenderId"
	errUnavailable               = "Unavailable"
	errInternalServerError       = "InternalServerError"
	errDeviceMessageRateExceeded = "DeviceMessageRateExceeded"
)

type legacyGateway struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

func (g *legacyGateway) SendBatch(ctx context.Context, batch domain.Batch) ([]domain.SendStatus, error) {
	body, err := json.Marshal(buildSendRequest(batch))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+g.serverKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		log.Warn("endpoint rate limited the batch",
			zap.String("requestId", batch.RequestId),
			zap.Int("tokens", len(batch.Tokens)))
		return allWith(batch, domain.StatusRetryable, domain.ReasonRateLimited), nil
	case resp.StatusCode >= 500:
		log.Warn("endpoint unavailable",
			zap.String("requestId", batch.RequestId),
			zap.String("status", resp.Status))
		return allWith(batch, domain.StatusRetryable, domain.ReasonUnavailable), nil
	default:
		return nil, fmt.Errorf("legacy: unexpected status %s", resp.Status)
	}

	var reply sendResponse
	if err = json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("legacy: decode response: %w", err)
	}
	if len(reply.Results) != len(batch.Tokens) {
		return nil, fmt.Errorf("legacy: %d results for %d tokens", len(reply.Results), len(batch.Tokens))
	}
	statuses := make([]domain.SendStatus, 0, len(batch.Tokens))
	for i, r := range reply.Results {
		tokenId := batch.Tokens[i].Id
		if r.Error == "" {
			statuses = append(statuses, domain.SendStatus{Token: tokenId, Status: domain.StatusDelivered})
			continue
		}
		status, reason := classifyResult(r.Error)
		statuses = append(statuses, domain.SendStatus{Token: tokenId, Status: status, Reason: reason})
	}
	log.Debug("batch sent",
		zap.String("requestId", batch.RequestId),
		zap.Int("success", reply.Success),
		zap.Int("failure", reply.Failure))
	return statuses, nil
}

func buildSendRequest(batch domain.Batch) sendRequest {
	r := sendRequest{
		Notification: wireNotification{Title: batch.Title, Body: batch.Body},
		Data:         batch.Data,
		Priority:     "normal",
	}
	if batch.Priority == domain.PriorityHigh {
		r.Priority = "high"
	}
	if len(batch.Tokens) == 1 {
		r.To = batch.Tokens[0].Id
	} else {
		r.RegistrationIds = batch.TokenIds()
	}
	return r
}

func classifyResult(name string) (domain.Status, domain.Reason) {
	switch name {
	case errNotRegistered, errInvalidRegistration, errMissingRegistration, errMismatchSenderId:
		return domain.StatusFailed, domain.ReasonUnregistered
	case errDeviceMessageRateExceeded:
		return domain.StatusRetryable, domain.ReasonRateLimited
	case errUnavailable, errInternalServerError:
		return domain.StatusRetryable, domain.ReasonUnavailable
	default:
		return domain.StatusRetryable, domain.ReasonUnavailable
	}
}

func allWith(batch domain.Batch, status domain.Status, reason domain.Reason) []domain.SendStatus {
	statuses := make([]domain.SendStatus, 0, len(batch.Tokens))
	for _, t := range batch.Tokens {
		statuses = append(statuses, domain.SendStatus{Token: t.Id, Status: status, Reason: reason})
	}
	return statuses
}
