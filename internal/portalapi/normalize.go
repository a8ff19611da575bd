package portalapi

import (
	"encoding/json"
	"fmt"
)

// The backend is inconsistent about envelopes: some endpoints nest the
// payload under `data`, some wrap lists in a named field, and some return
// bare arrays. Every response passes through exactly one normalization
// function here so the rest of the codebase never shape-sniffs.

// unwrapData strips an optional {"data": ...} envelope.
func unwrapData(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return body
}

// normalizeStageList parses the stage-configuration response.
// Accepted shapes: {"stages": [...]}, {"data": {"stages": [...]}}, [...].
func normalizeStageList(body []byte) ([]StageRecord, error) {
	body = unwrapData(body)

	var wrapped struct {
		Stages []StageRecord `json:"stages"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Stages != nil {
		return wrapped.Stages, nil
	}

	var bare []StageRecord
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("unexpected stage list shape: %w", err)
	}
	return bare, nil
}

// normalizeProspectList parses the prospect list response.
// Accepted shapes: {"prospects": [...], "total": n, "summary": {...}},
// {"data": {...}}, or a bare array of prospects.
func normalizeProspectList(body []byte) (*ProspectList, error) {
	body = unwrapData(body)

	var wrapped struct {
		Prospects  []Prospect `json:"prospects"`
		Total      int        `json:"total"`
		Summary    *Summary   `json:"summary"`
		Pagination Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Prospects != nil {
		list := &ProspectList{
			Prospects:  wrapped.Prospects,
			Total:      wrapped.Total,
			Summary:    wrapped.Summary,
			Pagination: wrapped.Pagination,
		}
		if list.Total == 0 {
			list.Total = len(list.Prospects)
		}
		return list, nil
	}

	var bare []Prospect
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("unexpected prospect list shape: %w", err)
	}
	return &ProspectList{Prospects: bare, Total: len(bare)}, nil
}

// normalizeProspect parses a single-prospect response, unwrapping an
// optional {"prospect": ...} or {"data": ...} envelope.
func normalizeProspect(body []byte) (*Prospect, error) {
	body = unwrapData(body)

	var wrapped struct {
		Prospect *Prospect `json:"prospect"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Prospect != nil {
		return wrapped.Prospect, nil
	}

	var p Prospect
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unexpected prospect shape: %w", err)
	}
	return &p, nil
}

// normalizeInvoiceList parses the invoice list response.
// Accepted shapes: {"invoices": [...]}, {"data": {...}}, [...].
func normalizeInvoiceList(body []byte) ([]Invoice, error) {
	body = unwrapData(body)

	var wrapped struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Invoices != nil {
		return wrapped.Invoices, nil
	}

	var bare []Invoice
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("unexpected invoice list shape: %w", err)
	}
	return bare, nil
}

// normalizeInvoice parses a single-invoice response.
func normalizeInvoice(body []byte) (*Invoice, error) {
	body = unwrapData(body)

	var wrapped struct {
		Invoice *Invoice `json:"invoice"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Invoice != nil {
		return wrapped.Invoice, nil
	}

	var inv Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, fmt.Errorf("unexpected invoice shape: %w", err)
	}
	return &inv, nil
}

// listOf parses {"<field>": [...]} with optional data envelope, falling back
// to a bare array. Used for the detail sub-resources.
func listOf[T any](body []byte, field string) ([]T, error) {
	body = unwrapData(body)

	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err == nil {
		if raw, ok := m[field]; ok {
			var out []T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("unexpected %s shape: %w", field, err)
			}
			return out, nil
		}
	}

	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unexpected %s shape: %w", field, err)
	}
	return out, nil
}
