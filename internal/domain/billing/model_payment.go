package billing

import "time"

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

// Payment is an append-only ledger row derived from processor invoice events.
// InvoiceID is unique so redelivered events cannot double-book.
type Payment struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	InvoiceID        string    `gorm:"not null;uniqueIndex:idx_payments_invoice_id" json:"invoice_id"`
	SubscriptionID   string    `gorm:"not null;index" json:"subscription_id"`
	ReferenceID      string    `gorm:"not null;index" json:"reference_id"`
	Status           string    `gorm:"not null" json:"status"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	HostedInvoiceURL *string   `gorm:"column:hosted_invoice_url" json:"hosted_invoice_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
