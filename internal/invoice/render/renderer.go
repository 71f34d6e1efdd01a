package render

import "time"

// RenderInput is the deterministic input used for bill rendering. It is
// assembled from finalized ledger data only; rendering never reads the
// database itself.
type RenderInput struct {
	Company  string
	Customer CustomerView
	Bill     BillView
	Lines    []LineView
}

type CustomerView struct {
	Name  string
	Email string
}

type BillView struct {
	ID             string
	Month          string
	Status         string
	GeneratedAt    time.Time
	DueDate        time.Time
	SubtotalCents  int64
	TaxCents       int64
	SurchargeCents int64
	PenaltyCents   int64
	TotalCents     int64
}

type LineView struct {
	Msisdn     string
	PlanCode   string
	TotalCents int64
}

// Renderer turns a finalized bill into a document.
type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}
