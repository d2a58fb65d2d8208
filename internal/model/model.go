// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Token carries an issued access token (for diagnostics the expiry is returned too).
type Token struct {
	AccessToken string
	ID          string
	ExpiresAt   time.Time
}

// Principal is an authenticatable identity. Lookups always build a fresh value.
type Principal struct {
	Username    string
	Credential  []byte   // opaque; plaintext or argon2id hash depending on the credential policy
	Salt        []byte   // per-principal salt, only meaningful for hashed credentials
	Authorities []string // permission labels, may be empty
}

// PayableAccount is a single bill tracked by the service.
type PayableAccount struct {
	ID          uuid.UUID       `json:"id"`
	DueDate     Date            `json:"dueDate"`
	PaymentDate *Date           `json:"paymentDate"` // nil while unpaid
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      string          `json:"status"` // free-text label, no closed set
}

// Paid reports whether the account has a payment date.
func (a PayableAccount) Paid() bool { return a.PaymentDate != nil }

// SortField is a whitelisted column for page ordering.
type SortField string

// Sortable fields.
const (
	SortDueDate     SortField = "dueDate"
	SortPaymentDate SortField = "paymentDate"
	SortAmount      SortField = "amount"
	SortDescription SortField = "description"
	SortStatus      SortField = "status"
)

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page int
	Size int
	Sort SortField
	Desc bool
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// ListFilter narrows a listing; zero values mean "no constraint".
type ListFilter struct {
	DueFrom             *Date
	DueTo               *Date
	DescriptionContains string
}

// Page is one slice of a listing plus totals.
type Page struct {
	Content       []PayableAccount `json:"content"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int64            `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
}

// NewPage fills the derived totals for a page.
func NewPage(content []PayableAccount, req PageRequest, total int64) Page {
	if content == nil {
		content = []PayableAccount{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

// SkippedRow describes an import row that was not persisted.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int          `json:"imported"`
	Skipped  []SkippedRow `json:"skipped"`
}
