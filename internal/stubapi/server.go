package stubapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/ignite/agency-portal/internal/pkg/httputil"
)

// Handlers serves the stub backend routes.
type Handlers struct {
	store *Store
}

// NewHandlers wires a handler set around a store.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// Router builds the chi router for the stub backend.
func Router(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/crm", func(r chi.Router) {
		r.Get("/pipeline-stages", h.GetStages)
		r.Put("/pipeline-stages", h.SaveStages)
		r.Get("/prospects", h.ListProspects)
		r.Get("/unassigned-lead-count", h.UnassignedLeadCount)
		r.Get("/custom-fields", h.CustomFieldDefs)
		r.Route("/prospects/{id}", func(r chi.Router) {
			r.Patch("/", h.PatchProspect)
			r.Post("/convert", h.ConvertProspect)
			r.Get("/timeline", h.Timeline)
			r.Get("/emails", h.Emails)
			r.Get("/calls", h.Calls)
			r.Get("/notes", h.Notes)
			r.Post("/notes", h.AddNote)
			r.Get("/proposals", h.Proposals)
			r.Get("/audits", h.Audits)
		})
	})

	r.Route("/billing", func(r chi.Router) {
		r.Get("/invoices", h.ListInvoices)
		r.Post("/invoices", h.CreateInvoice)
		r.Post("/invoices/quick", h.QuickInvoice)
		r.Route("/invoices/{id}", func(r chi.Router) {
			r.Patch("/", h.PatchInvoice)
			r.Delete("/", h.DeleteInvoice)
			r.Post("/send", h.SendInvoice)
			r.Post("/remind", h.RemindInvoice)
			r.Post("/pay", h.PayInvoice)
		})
	})

	return r
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy", "service": "portal-stub-api"})
}

// ========== CRM ==========

// GetStages returns the project's stage configuration inside the standard
// data envelope; an empty list means the project has never configured one.
func (h *Handlers) GetStages(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	stages := h.store.StagesFor(projectID)
	if stages == nil {
		stages = []portalapi.StageRecord{}
	}
	httputil.OK(w, map[string]any{"data": stages})
}

// SaveStages replaces the project's stage configuration.
func (h *Handlers) SaveStages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID string                  `json:"projectId"`
		Stages    []portalapi.StageRecord `json:"stages"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.ProjectID == "" {
		httputil.BadRequest(w, "projectId is required")
		return
	}
	h.store.SaveStages(body.ProjectID, body.Stages)
	httputil.NoContent(w)
}

// ListProspects returns the filtered prospect list with its summary.
func (h *Handlers) ListProspects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var stages []string
	if raw := q.Get("stages"); raw != "" {
		stages = strings.Split(raw, ",")
	}
	prospects := h.store.ListProspects(q.Get("projectId"), q.Get("search"), q.Get("source"), stages)

	httputil.OK(w, map[string]any{
		"prospects": prospects,
		"total":     len(prospects),
		"pagination": map[string]int{
			"page": 1, "per_page": 100, "pages": 1,
		},
	})
}

// PatchProspect applies a partial update.
func (h *Handlers) PatchProspect(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	var patch portalapi.ProspectPatch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	updated, ok := h.store.PatchProspect(id, patch)
	if !ok {
		httputil.NotFound(w, "prospect not found")
		return
	}
	httputil.OK(w, map[string]any{"data": updated})
}

// ConvertProspect converts a prospect to a contact/customer (idempotent).
func (h *Handlers) ConvertProspect(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	result, ok := h.store.ConvertProspect(id)
	if !ok {
		httputil.NotFound(w, "prospect not found")
		return
	}
	httputil.OK(w, map[string]any{"data": result})
}

// UnassignedLeadCount returns the count of unassigned leads.
func (h *Handlers) UnassignedLeadCount(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]int{"count": h.store.UnassignedLeadCount()})
}

// CustomFieldDefs returns the org's custom field definitions.
func (h *Handlers) CustomFieldDefs(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"fields": h.store.CustomFieldDefs()})
}

func (h *Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"events": h.store.Timeline(id)})
}

func (h *Handlers) Emails(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"threads": h.store.Emails(id)})
}

func (h *Handlers) Calls(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"calls": h.store.Calls(id)})
}

func (h *Handlers) Notes(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"notes": h.store.Notes(id)})
}

func (h *Handlers) Proposals(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"proposals": h.store.Proposals(id)})
}

func (h *Handlers) Audits(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	httputil.OK(w, map[string]any{"audits": h.store.Audits(id)})
}

// AddNote appends a note to a prospect.
func (h *Handlers) AddNote(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	var body struct {
		Body string `json:"body"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Body) == "" {
		httputil.BadRequest(w, "note body is required")
		return
	}
	note, ok := h.store.AddNote(id, body.Body, "demo@agency.example")
	if !ok {
		httputil.NotFound(w, "prospect not found")
		return
	}
	httputil.Created(w, map[string]any{"data": note})
}

// ========== Billing ==========

// ListInvoices returns all invoices.
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"invoices": h.store.ListInvoices()})
}

// CreateInvoice creates a draft invoice.
func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req portalapi.CreateInvoiceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CustomerEmail == "" {
		httputil.BadRequest(w, "customerEmail is required")
		return
	}
	httputil.Created(w, map[string]any{"data": h.store.CreateInvoice(req)})
}

// SendInvoice sends a draft invoice.
func (h *Handlers) SendInvoice(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	inv, ok := h.store.SendInvoice(id)
	if !ok {
		httputil.NotFound(w, "invoice not found")
		return
	}
	httputil.OK(w, map[string]any{"data": inv})
}

// RemindInvoice sends a payment reminder, enforcing the reminder cap.
func (h *Handlers) RemindInvoice(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	inv, found, err := h.store.RemindInvoice(id)
	if !found {
		httputil.NotFound(w, "invoice not found")
		return
	}
	if err != nil {
		httputil.Error(w, http.StatusConflict, err.Error())
		return
	}
	httputil.OK(w, map[string]any{"data": inv})
}

// PayInvoice charges the tokenized card.
func (h *Handlers) PayInvoice(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	var card portalapi.PaymentCard
	if !httputil.Decode(w, r, &card) {
		return
	}
	inv, found, err := h.store.PayInvoice(id, card)
	if !found {
		httputil.NotFound(w, "invoice not found")
		return
	}
	if err != nil {
		httputil.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	httputil.OK(w, map[string]any{"data": inv})
}

// PatchInvoice applies a partial invoice update.
func (h *Handlers) PatchInvoice(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	var patch portalapi.InvoicePatch
	if !httputil.Decode(w, r, &patch) {
		return
	}
	inv, ok := h.store.PatchInvoice(id, patch)
	if !ok {
		httputil.NotFound(w, "invoice not found")
		return
	}
	httputil.OK(w, map[string]any{"data": inv})
}

// DeleteInvoice removes an invoice.
func (h *Handlers) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := portalapi.ID(chi.URLParam(r, "id"))
	if !h.store.DeleteInvoice(id) {
		httputil.NotFound(w, "invoice not found")
		return
	}
	httputil.NoContent(w)
}

// QuickInvoice runs the create-and-send flow in one call.
func (h *Handlers) QuickInvoice(w http.ResponseWriter, r *http.Request) {
	var req portalapi.QuickInvoiceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CustomerEmail == "" || !req.Amount.IsPositive() {
		httputil.BadRequest(w, "customerEmail and a positive amount are required")
		return
	}
	httputil.Created(w, map[string]any{"data": h.store.QuickInvoice(req)})
}
