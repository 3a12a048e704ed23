package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidMessage  = errors.New("invalid message")
)

// Transport es la llamada bloqueante al proveedor externo (Slack, webhook...).
// Cualquier no-éxito llega como texto de error crudo para clasificar.
type Transport interface {
	Send(ctx context.Context, target, content string) (*SendResult, error)
}

type SendResult struct {
	ProviderTimestamp *time.Time
}

// Renderer entrega el texto final dado un template y su payload; el núcleo
// solo consume el string renderizado.
type Renderer interface {
	Render(ctx context.Context, templateID string, payload map[string]interface{}) (string, error)
}

// ReadModel es la proyección de lectura que mantiene el router a partir del
// snapshot completo (Props) de cada evento.
type ReadModel interface {
	Upsert(ctx context.Context, dto MessageDTO) error
	GetByID(ctx context.Context, id uuid.UUID) (*MessageDTO, error)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func MessageCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("message:id:%s", id.String())
}
