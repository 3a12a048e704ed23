package domain

// Actor identifica quién ejecuta una mutación sobre un agregado.
// Es obligatorio en todos los métodos de transición: sin actor no hay evento.
type Actor struct {
	SubjectID string `json:"subject_id"`
	Tenant    string `json:"tenant"`
}

func (a Actor) IsZero() bool {
	return a.SubjectID == "" && a.Tenant == ""
}
