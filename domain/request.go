package domain

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

type NotificationRequest struct {
	Id           string            `json:"id"`
	RecipientIds []string          `json:"recipientIds"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
}

func NewRequestId() string {
	b := make([]byte, 12)
	rand.Read(b)
	return base58.Encode(b)
}
