package delivery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err       string
		retryable bool
	}{
		{"request timeout", true},
		{"slack webhook status 503: service unavailable", true},
		{"rate limit exceeded", true},
		{"connection refused", true},
		{"unexpected EOF", true},
		{"invalid payload", false},
		{"unknown channel", false},
		{"slack webhook status 404: not found", false},
		{"unauthorized", false},
		{"algo nunca visto", true}, // lo desconocido se reintenta
	}

	for _, c := range cases {
		derr := Classify(errors.New(c.err))
		assert.Equal(t, c.retryable, derr.Retryable, "error %q", c.err)
		assert.Equal(t, c.err, derr.Reason)
	}
}

// TestClassify_PermanenteGana: si el texto marca ambas cosas, permanente gana.
func TestClassify_PermanenteGana(t *testing.T) {
	derr := Classify(errors.New("connection rejected: forbidden"))
	assert.False(t, derr.Retryable)
}
