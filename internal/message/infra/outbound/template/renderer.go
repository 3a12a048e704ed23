package template

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"

	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
)

// InMemoryRenderer resuelve plantillas registradas en memoria. El almacén
// real de plantillas es un colaborador externo; el núcleo solo consume el
// string renderizado.
type InMemoryRenderer struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewInMemoryRenderer() *InMemoryRenderer {
	return &InMemoryRenderer{templates: make(map[string]*template.Template)}
}

// RegisterTemplate compila y registra una plantilla.
func (r *InMemoryRenderer) RegisterTemplate(id, body string) error {
	tpl, err := template.New(id).Parse(body)
	if err != nil {
		return fmt.Errorf("invalid template %q: %w", id, err)
	}
	r.mu.Lock()
	r.templates[id] = tpl
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRenderer) Render(ctx context.Context, templateID string, payload map[string]interface{}) (string, error) {
	r.mu.RLock()
	tpl, ok := r.templates[templateID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", templateID)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", templateID, err)
	}
	return buf.String(), nil
}

// Verificación estática
var _ messageDomain.Renderer = (*InMemoryRenderer)(nil)
