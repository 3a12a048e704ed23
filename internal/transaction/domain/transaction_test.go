package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

var testActor = sharedDomain.Actor{SubjectID: "user-1", Tenant: "acme"}

func validParams() NewTransactionParams {
	return NewTransactionParams{
		FromAccount: "acc-1",
		ToAccount:   "acc-2",
		Amount:      decimal.NewFromInt(100),
		Currency:    "EUR",
	}
}

func TestNewTransaction_Pending(t *testing.T) {
	tx, err := NewTransaction(testActor, validParams())

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusPending, tx.Status())
	assert.True(t, tx.Amount().Equal(decimal.NewFromInt(100)))

	events := tx.Uncommitted()
	assert.Len(t, events, 1)
	assert.Equal(t, TransactionCreated, events[0].Type)
}

func TestNewTransaction_Validacion(t *testing.T) {
	// importe no positivo
	params := validParams()
	params.Amount = decimal.Zero
	_, err := NewTransaction(testActor, params)
	var verr *sharedDomain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)

	// misma cuenta en origen y destino
	params = validParams()
	params.ToAccount = params.FromAccount
	_, err = NewTransaction(testActor, params)
	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, err, &ierr)

	// sin divisa
	params = validParams()
	params.Currency = ""
	_, err = NewTransaction(testActor, params)
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "currency", verr.Field)
}

func TestNewTransaction_ActorObligatorio(t *testing.T) {
	_, err := NewTransaction(sharedDomain.Actor{}, validParams())
	assert.ErrorIs(t, err, sharedDomain.ErrActorRequired)
}

// TestTransaction_CaminoFeliz: PENDING → PROCESSING → SUCCESS; un Created y
// un Completed en el stream.
func TestTransaction_CaminoFeliz(t *testing.T) {
	tx, _ := NewTransaction(testActor, validParams())

	assert.NoError(t, tx.UpdateStatus(testActor, sharedDomain.StatusProcessing))
	assert.NoError(t, tx.Complete(testActor))
	assert.Equal(t, sharedDomain.StatusSuccess, tx.Status())

	events := tx.Uncommitted()
	assert.Len(t, events, 3)
	assert.Equal(t, TransactionCompleted, events[2].Type)
}

// TestTransaction_CicloDeVidaRespetaMaquina: asentar directamente desde
// PENDING no es una transición válida.
func TestTransaction_CicloDeVidaRespetaMaquina(t *testing.T) {
	tx, _ := NewTransaction(testActor, validParams())

	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, tx.Complete(testActor), &ierr)
	assert.Equal(t, sharedDomain.StatusPending, tx.Status())
}

func TestTransaction_ReintentoYFallo(t *testing.T) {
	tx, _ := NewTransaction(testActor, validParams())
	_ = tx.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	next := time.Now().UTC().Add(10 * time.Second)

	assert.NoError(t, tx.MarkForRetry(testActor, "settlement timeout", &next))
	assert.Equal(t, sharedDomain.StatusRetrying, tx.Status())
	assert.Equal(t, 1, tx.RetryCount())

	assert.NoError(t, tx.MarkAsFailed(testActor, "rejected by provider"))
	assert.Equal(t, sharedDomain.StatusFailed, tx.Status())
	assert.Equal(t, "rejected by provider", tx.FailureReason())

	// terminal: FAILED no admite más reintentos
	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, tx.MarkForRetry(testActor, "x", nil), &ierr)
}

// TestTransaction_Rehidratacion: el importe decimal sobrevive el round-trip
// por el snapshot de Props.
func TestTransaction_Rehidratacion(t *testing.T) {
	params := validParams()
	params.Amount = decimal.RequireFromString("19.99")
	original, _ := NewTransaction(testActor, params)
	_ = original.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = original.Complete(testActor)

	rebuilt := NewEmptyTransaction(original.AggregateID())
	for _, evt := range original.Uncommitted() {
		assert.NoError(t, rebuilt.Apply(evt))
	}

	assert.True(t, rebuilt.Amount().Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, sharedDomain.StatusSuccess, rebuilt.Status())
	assert.Equal(t, original.CorrelationID(), rebuilt.CorrelationID())
}
