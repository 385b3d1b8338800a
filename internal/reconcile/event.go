package reconcile

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"
)

// SubscriptionEvent is the normalized form of a processor subscription object
// as delivered by webhook.
type SubscriptionEvent struct {
	SubscriptionID string
	CustomerID     string
	Status         string
	PriceID        string
	Seats          int

	PeriodStart time.Time
	PeriodEnd   time.Time
	TrialStart  *time.Time
	TrialEnd    *time.Time

	CancelAtPeriodEnd bool

	// Attribution metadata set by the checkout session.
	UserID         string
	OrganizationID string
}

// ReferenceID resolves the billable entity: an organization subscription
// takes precedence over a personal one.
func (e SubscriptionEvent) ReferenceID() (id, refType string) {
	if e.OrganizationID != "" {
		return e.OrganizationID, "organization"
	}
	return e.UserID, "user"
}

// NewSubscriptionEvent normalizes a Stripe subscription payload.
func NewSubscriptionEvent(sub *stripe.Subscription) (SubscriptionEvent, error) {
	if sub.ID == "" {
		return SubscriptionEvent{}, fmt.Errorf("subscription payload missing id")
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return SubscriptionEvent{}, fmt.Errorf("subscription %s missing items/price", sub.ID)
	}

	ev := SubscriptionEvent{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		PriceID:           sub.Items.Data[0].Price.ID,
		Seats:             int(sub.Items.Data[0].Quantity),
		PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0),
		PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0),
		TrialStart:        optionalUnix(sub.TrialStart),
		TrialEnd:          optionalUnix(sub.TrialEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if ev.Seats < 1 {
		ev.Seats = 1
	}
	if sub.Metadata != nil {
		ev.UserID = sub.Metadata["userId"]
		ev.OrganizationID = sub.Metadata["organizationId"]
	}
	return ev, nil
}

// PaymentOutcome of an invoice event.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentFailed    PaymentOutcome = "failed"
)

// PaymentEvent is the normalized form of a processor invoice event.
type PaymentEvent struct {
	SubscriptionID   string
	Outcome          PaymentOutcome
	InvoiceID        string
	AmountCents      int64
	Currency         string
	HostedInvoiceURL string
}

// NewPaymentEvent normalizes a Stripe invoice payload. The subscription id
// may be empty: invoices can exist outside any subscription.
func NewPaymentEvent(inv *stripe.Invoice, outcome PaymentOutcome) PaymentEvent {
	ev := PaymentEvent{
		Outcome:          outcome,
		InvoiceID:        inv.ID,
		Currency:         string(inv.Currency),
		HostedInvoiceURL: inv.HostedInvoiceURL,
	}
	if inv.Subscription != nil {
		ev.SubscriptionID = inv.Subscription.ID
	}
	if outcome == PaymentSucceeded {
		ev.AmountCents = inv.AmountPaid
	} else {
		ev.AmountCents = inv.AmountDue
	}
	return ev
}

func optionalUnix(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}
