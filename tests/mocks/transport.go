package mocks

import (
	"context"
	"sync"

	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
	txDomain "github.com/davicafu/eventflow/internal/transaction/domain"
)

// ScriptedTransport es un fake de transporte que consume una lista de errores
// por orden de llamada: nil significa entrega conseguida.
type ScriptedTransport struct {
	mu     sync.Mutex
	Script []error
	Sent   []string // contenidos enviados con éxito
	calls  int
}

// Verificación estática
var _ messageDomain.Transport = (*ScriptedTransport)(nil)

func (t *ScriptedTransport) Send(ctx context.Context, target, content string) (*messageDomain.SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.calls < len(t.Script) {
		err = t.Script[t.calls]
	}
	t.calls++
	if err != nil {
		return nil, err
	}
	t.Sent = append(t.Sent, content)
	return &messageDomain.SendResult{}, nil
}

// Calls devuelve el número de intentos de envío observados.
func (t *ScriptedTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// ScriptedSettler hace lo mismo para el asentamiento de transacciones.
type ScriptedSettler struct {
	mu      sync.Mutex
	Script  []error
	Settled []txDomain.TransactionDTO
	calls   int
}

var _ txDomain.Settler = (*ScriptedSettler)(nil)

func (s *ScriptedSettler) Settle(ctx context.Context, dto txDomain.TransactionDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.calls < len(s.Script) {
		err = s.Script[s.calls]
	}
	s.calls++
	if err != nil {
		return err
	}
	s.Settled = append(s.Settled, dto)
	return nil
}

func (s *ScriptedSettler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
