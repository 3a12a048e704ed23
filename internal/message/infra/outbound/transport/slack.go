package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/eventflow/internal/message/domain"
)

// SlackWebhook es el adaptador de transporte: una llamada HTTP bloqueante
// por intento de entrega. Cualquier no-éxito vuelve como texto de error
// crudo; el orquestador lo clasifica, aquí no se decide nada.
type SlackWebhook struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
}

func NewSlackWebhook(webhookURL string, timeout time.Duration, log *zap.Logger) *SlackWebhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackWebhook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

type slackPayload struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func (s *SlackWebhook) Send(ctx context.Context, target, content string) (*domain.SendResult, error) {
	body, err := json.Marshal(slackPayload{Channel: target, Text: content})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, string(raw))
	}

	now := time.Now().UTC()
	s.log.Debug("Mensaje entregado al webhook", zap.String("channel", target))
	return &domain.SendResult{ProviderTimestamp: &now}, nil
}

// Verificación estática
var _ domain.Transport = (*SlackWebhook)(nil)
