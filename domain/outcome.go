package domain

type Status uint8

const (
	StatusDelivered Status = iota
	StatusRetryable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRetryable:
		return "retryable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoToken
	ReasonUnregistered
	ReasonRateLimited
	ReasonTimeout
	ReasonUnavailable
	ReasonRetriesExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNoToken:
		return "noToken"
	case ReasonUnregistered:
		return "unregistered"
	case ReasonRateLimited:
		return "rateLimited"
	case ReasonTimeout:
		return "timeout"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonRetriesExhausted:
		return "retriesExhausted"
	default:
		return "unknown"
	}
}

// SendStatus is the per-token verdict of a single gateway call.
type SendStatus struct {
	Token  string
	Status Status
	Reason Reason
}

// DeliveryOutcome is produced once per token per attempt.
type DeliveryOutcome struct {
	RequestId   string
	RecipientId string
	TokenId     string
	Status      Status
	Reason      Reason
	Attempt     int
}

func (o DeliveryOutcome) Terminal() bool {
	return o.Status != StatusRetryable
}

type Failure struct {
	RecipientId string
	// TokenId is empty when the recipient had no registered tokens.
	TokenId string
	Reason  Reason
}

type DispatchResult struct {
	RequestId   string
	Delivered   int
	Invalidated []Token
	Failed      []Failure
}
