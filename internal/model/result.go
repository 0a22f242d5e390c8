package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ArtifactKind identifies a document created in the accounting backend
// during a posting workflow. Deletion endpoints are keyed by kind.
type ArtifactKind string

const (
	ArtifactPurchaseOrder ArtifactKind = "purchaseorder"
	ArtifactBill          ArtifactKind = "bill"
	ArtifactSalesOrder    ArtifactKind = "salesorder"
	ArtifactInvoice       ArtifactKind = "invoice"
	ArtifactShipment      ArtifactKind = "shipmentorder"
)

// Artifact is one backend document created by a workflow, recorded in
// creation order so compensation can undo in reverse.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	ID   string       `json:"id"`
}

// ProcessedItem records one successfully resolved and posted line.
type ProcessedItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// FailedItem records one line that could not be resolved or posted.
type FailedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// WorkflowResult is the full outcome of a posting workflow run. It is
// built incrementally: each step appends to Steps and registers any
// backend artifacts it created, so a failure partway through still
// yields an accurate picture of what happened.
type WorkflowResult struct {
	Success        bool            `json:"success"`
	OrderID        string          `json:"order_id,omitempty"`
	BillID         string          `json:"bill_id,omitempty"`
	ReceiptID      string          `json:"receipt_id,omitempty"`
	InvoiceID      string          `json:"invoice_id,omitempty"`
	ShipmentID     string          `json:"shipment_id,omitempty"`
	ItemsProcessed []ProcessedItem `json:"items_processed,omitempty"`
	ItemsFailed    []FailedItem    `json:"items_failed,omitempty"`
	Revenue        decimal.Decimal `json:"revenue"`
	COGS           decimal.Decimal `json:"cogs"`
	Errors         []string        `json:"errors,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	Steps          []string        `json:"steps,omitempty"`

	artifacts []Artifact
}

// AppendStep records a human-readable progress line.
func (r *WorkflowResult) AppendStep(format string, args ...any) {
	r.Steps = append(r.Steps, fmt.Sprintf(format, args...))
}

// AddArtifact registers a backend document for possible compensation.
func (r *WorkflowResult) AddArtifact(kind ArtifactKind, id string) {
	r.artifacts = append(r.artifacts, Artifact{Kind: kind, ID: id})
}

// Artifacts returns the backend documents created so far, in creation
// order.
func (r *WorkflowResult) Artifacts() []Artifact {
	return r.artifacts
}

// Failf marks the result failed and records the error.
func (r *WorkflowResult) Failf(format string, args ...any) {
	r.Success = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Warnf records a non-fatal warning.
func (r *WorkflowResult) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
