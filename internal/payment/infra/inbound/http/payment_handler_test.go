package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/payment/application"
	"github.com/davicafu/invoiceflow/internal/payment/infra/outbound/db/relational"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(ctx))
	repo := relational.NewPaymentRepo(store)
	require.NoError(t, repo.InitSchema(ctx))

	uow := sqlstore.NewUnitOfWork(store, sqlstore.NewOutboxRepo(store), zap.NewNop())
	service := application.NewPaymentService(uow, repo, nil, sharedDomain.SystemClock{}, zap.NewNop())

	r := gin.New()
	RegisterPaymentRoutes(r, NewPaymentHandler(service))
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type paymentView struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID uuid.UUID `json:"invoiceId"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestPaymentHTTP_Lifecycle(t *testing.T) {
	// ARRANGE
	r := newRouter(t)
	invoiceID := uuid.New()
	body := map[string]interface{}{
		"invoiceId":     invoiceID,
		"vendorId":      uuid.New(),
		"amount":        "100.00",
		"currency":      "USD",
		"scheduledDate": time.Now().UTC().AddDate(0, 0, 7),
		"createdBy":     "bob",
	}

	// ACT
	code, env := do(t, r, http.MethodPost, "/payments", body)

	// ASSERT
	require.Equal(t, http.StatusCreated, code)
	var created paymentView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Scheduled", created.Status)
	assert.Equal(t, "100", created.Amount)

	code, _ = do(t, r, http.MethodPost, "/payments", body)
	assert.Equal(t, http.StatusConflict, code)

	code, env = do(t, r, http.MethodGet, "/payments?invoiceId="+invoiceID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var byInvoice paymentView
	require.NoError(t, json.Unmarshal(env.Data, &byInvoice))
	assert.Equal(t, created.ID, byInvoice.ID)

	code, env = do(t, r, http.MethodPost, "/payments/"+created.ID.String()+"/complete", map[string]string{"transactionReference": "TX-1"})
	require.Equal(t, http.StatusOK, code)
	var done paymentView
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Equal(t, "Completed", done.Status)

	code, env = do(t, r, http.MethodPost, "/payments/"+created.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
}

func TestPaymentHTTP_Errors(t *testing.T) {
	r := newRouter(t)

	code, _ := do(t, r, http.MethodGet, "/payments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodGet, "/payments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodGet, "/payments?invoiceId=nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/payments/"+uuid.NewString()+"/fail", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, r, http.MethodPost, "/payments", map[string]interface{}{
		"invoiceId":     uuid.New(),
		"amount":        "-1",
		"currency":      "USD",
		"scheduledDate": time.Now().UTC().AddDate(0, 0, 1),
		"createdBy":     "bob",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
}
