package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	transactionDomain "github.com/davicafu/eventflow/internal/transaction/domain"
)

// HTTPSettler delega el asentamiento en un servicio externo: una llamada
// bloqueante por intento, error como texto crudo para clasificar.
type HTTPSettler struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func NewHTTPSettler(endpoint string, timeout time.Duration, log *zap.Logger) *HTTPSettler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSettler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (s *HTTPSettler) Settle(ctx context.Context, dto transactionDomain.TransactionDTO) error {
	body, err := json.Marshal(dto)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("settlement status %d: %s", resp.StatusCode, string(raw))
	}

	s.log.Debug("Transacción asentada", zap.String("transaction_id", dto.ID.String()))
	return nil
}

// Verificación estática
var _ transactionDomain.Settler = (*HTTPSettler)(nil)
