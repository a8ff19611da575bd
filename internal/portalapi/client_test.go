package portalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/agency-portal/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PortalAPIConfig{
		BaseURL:        srv.URL,
		Token:          "test-token",
		TimeoutSeconds: 5,
		MaxRetries:     1,
	})
}

func TestClientSendsAuthHeader(t *testing.T) {
	var gotAuth, gotContentType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"status":"ok"}`))
	})

	require.NoError(t, client.HealthCheck(context.Background()))
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestListProspectsBuildsQuery(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"projectId": r.URL.Query().Get("projectId"),
			"search":    r.URL.Query().Get("search"),
			"source":    r.URL.Query().Get("source"),
			"stages":    r.URL.Query().Get("stages"),
		}
		w.Write([]byte(`{"prospects":[{"id":"1","name":"Acme"}],"total":1}`))
	})

	list, err := client.ListProspects(context.Background(), ProspectListParams{
		ProjectID: "proj-1",
		Search:    "acme",
		Source:    "webform",
		Stages:    []string{"new_lead", "contacted"},
	})
	require.NoError(t, err)
	require.Len(t, list.Prospects, 1)
	assert.Equal(t, "proj-1", gotQuery["projectId"])
	assert.Equal(t, "acme", gotQuery["search"])
	assert.Equal(t, "webform", gotQuery["source"])
	assert.Equal(t, "new_lead,contacted", gotQuery["stages"])
}

func TestUpdateProspectSendsPatchAndReturnsRecord(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data":{"id":"p-9","name":"Acme","pipeline_stage":"qualified","probability":70}}`))
	})

	stage := "qualified"
	p, err := client.UpdateProspect(context.Background(), "p-9", ProspectPatch{PipelineStage: &stage})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/crm/prospects/p-9", gotPath)
	assert.Equal(t, map[string]any{"pipelineStage": "qualified"}, gotBody)
	assert.Equal(t, "qualified", p.PipelineStage)
	assert.Equal(t, 70, p.Probability)
}

func TestStatusErrorCarriesCodeAndMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"billing is restricted to org admins","code":"forbidden"}`))
	})

	_, err := client.ListInvoices(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "billing is restricted to org admins", statusErr.Message)
}

func TestStatusErrorFallsBackToRawBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("invalid payload\n"))
	})

	err := client.HealthCheck(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Equal(t, "invalid payload", statusErr.Message)
}

func TestSavePipelineStagesPutsProjectScopedBody(t *testing.T) {
	var gotBody struct {
		ProjectID string        `json:"projectId"`
		Stages    []StageRecord `json:"stages"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"status":"ok"}`))
	})

	err := client.SavePipelineStages(context.Background(), "proj-1", []StageRecord{
		{StageKey: "new_lead", StageLabel: "New Leads", SortOrder: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, "proj-1", gotBody.ProjectID)
	require.Len(t, gotBody.Stages, 1)
	assert.Equal(t, "new_lead", gotBody.Stages[0].StageKey)
}

func TestUnassignedLeadCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"count":12}}`))
	})

	count, err := client.UnassignedLeadCount(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestAddNotePostsBody(t *testing.T) {
	var gotBody map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data":{"id":"n1","body":"follow up friday","author":"drew"}}`))
	})

	note, err := client.AddNote(context.Background(), "p-1", "follow up friday")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"body": "follow up friday"}, gotBody)
	assert.Equal(t, "follow up friday", note.Body)
	assert.Equal(t, "drew", note.Author)
}

func TestQuickInvoiceReturnsPaymentURL(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data":{"invoiceId":"inv-7","paymentUrl":"https://pay.example.com/inv-7"}}`))
	})

	result, err := client.QuickInvoice(context.Background(), QuickInvoiceRequest{
		CustomerEmail: "client@example.com",
		Amount:        decimal.NewFromInt(250),
		DueDate:       time.Now().Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "/billing/invoices/quick", gotPath)
	assert.Equal(t, ID("inv-7"), result.InvoiceID)
	assert.Equal(t, "https://pay.example.com/inv-7", result.PaymentURL)
}

func TestDeleteInvoice(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteInvoice(context.Background(), "inv-3"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/billing/invoices/inv-3", gotPath)
}
