package domain

// Status es la máquina de estados común a todos los agregados entregables.
//
//	CREATED → {PENDING, SCHEDULED} → PROCESSING → {SUCCESS, FAILED, RETRYING}
//	RETRYING → {PENDING, SCHEDULED, PROCESSING} (bucle de reintento)
//	Terminales: SUCCESS, FAILED, CANCELLED
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPending    Status = "PENDING"
	StatusScheduled  Status = "SCHEDULED"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusRetrying   Status = "RETRYING"
	StatusCancelled  Status = "CANCELLED"
)

var validTransitions = map[Status][]Status{
	StatusCreated:    {StatusPending, StatusScheduled, StatusCancelled},
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusScheduled:  {StatusPending, StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusSuccess, StatusFailed, StatusRetrying},
	StatusRetrying:   {StatusPending, StatusScheduled, StatusProcessing, StatusFailed, StatusCancelled},
}

// IsTerminal indica si el estado no admite más mutaciones de negocio
// (solo ecos idempotentes de estado).
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo valida la transición según la máquina de estados.
// Un eco (mismo estado) siempre es válido: el llamante lo trata como no-op.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusScheduled, StatusProcessing,
		StatusSuccess, StatusFailed, StatusRetrying, StatusCancelled:
		return true
	}
	return false
}
