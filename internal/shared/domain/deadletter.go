package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadLetter es un mensaje retirado de su cola tras agotar las entregas
// o fallar de forma permanente.
type DeadLetter struct {
	ID          uuid.UUID         `json:"id"`
	Queue       string            `json:"queue"`
	Type        string            `json:"type"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	Deliveries  int               `json:"deliveries"`
	Error       string            `json:"error"`
	FailedOnUtc time.Time         `json:"failedOnUtc"`
}

// DeadLetterStore guarda los mensajes venenosos para inspección manual.
type DeadLetterStore interface {
	Save(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context, limit, offset int) ([]DeadLetter, error)
}
