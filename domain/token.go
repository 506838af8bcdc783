package domain

type Platform uint8

const (
	PlatformAndroid Platform = iota
	PlatformIOS
)

func (p Platform) String() string {
	switch p {
	case PlatformAndroid:
		return "android"
	case PlatformIOS:
		return "ios"
	default:
		return "unknown"
	}
}

type TokenStatus uint8

const (
	TokenStatusValid TokenStatus = iota
	TokenStatusInvalid
)

type Token struct {
	Id          string      `bson:"_id"`
	RecipientId string      `bson:"recipientId"`
	Platform    Platform    `bson:"platform"`
	Status      TokenStatus `bson:"status"`
	Created     int64       `bson:"created"`
	Updated     int64       `bson:"updated"`
}
