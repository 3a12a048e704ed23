package delivery

import (
	"strings"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

// Marcadores en el texto de error del transporte. La clasificación es una
// función pura de la señal de error: mismo texto, misma decisión.
var retryableMarkers = []string{
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"connection",
	"network",
	"unavailable",
	"temporarily",
	"eof",
	"status 5",
}

var permanentMarkers = []string{
	"invalid",
	"not found",
	"unknown channel",
	"forbidden",
	"unauthorized",
	"malformed",
	"rejected",
	"status 4",
}

// Classify decide si un error de entrega es reintentable o permanente.
// Lo permanente gana sobre lo reintentable si ambos marcan; lo desconocido
// se trata como reintentable (el ledger garantiza que reintentar es seguro).
func Classify(err error) *sharedDomain.DeliveryError {
	text := strings.ToLower(err.Error())

	for _, marker := range permanentMarkers {
		if strings.Contains(text, marker) {
			return &sharedDomain.DeliveryError{Retryable: false, Reason: err.Error()}
		}
	}
	for _, marker := range retryableMarkers {
		if strings.Contains(text, marker) {
			return &sharedDomain.DeliveryError{Retryable: true, Reason: err.Error()}
		}
	}
	return &sharedDomain.DeliveryError{Retryable: true, Reason: err.Error()}
}
