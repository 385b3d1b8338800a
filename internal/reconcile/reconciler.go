package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/plans"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRemote is the slice of the payment processor the engine needs
// for user-initiated cancel/reactivate.
type SubscriptionRemote interface {
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error
}

// Reconciler is the single writer of subscription state. Every mutation of
// billing.Subscription rows goes through it, whether triggered by a verified
// webhook event or a user action.
type Reconciler struct {
	db     *gorm.DB
	remote SubscriptionRemote
	log    *logrus.Logger
}

func New(db *gorm.DB, remote SubscriptionRemote, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{db: db, remote: remote, log: log}
}

// ApplySubscriptionUpsert makes the local record for ev.SubscriptionID match
// the event. It is idempotent, and it refuses to regress state: events whose
// period predates the stored record, or events for a record already in the
// terminal canceled status, are acknowledged and skipped.
func (r *Reconciler) ApplySubscriptionUpsert(ctx context.Context, ev SubscriptionEvent) error {
	refID, refType := ev.ReferenceID()
	if refID == "" {
		return fmt.Errorf("subscription %s: %w", ev.SubscriptionID, ErrMissingReference)
	}

	plan, err := r.planForPrice(ctx, ev.PriceID)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing billing.Subscription
		err := tx.Where("id = ?", ev.SubscriptionID).First(&existing).Error
		switch {
		case err == nil:
			if existing.Status == billing.StatusCanceled {
				r.log.WithFields(logrus.Fields{
					"subscription_id": ev.SubscriptionID,
				}).Warn("ignoring upsert for canceled subscription")
				return nil
			}
			if ev.PeriodStart.Before(existing.PeriodStart) {
				r.log.WithFields(logrus.Fields{
					"subscription_id":    ev.SubscriptionID,
					"event_period_start": ev.PeriodStart,
					"local_period_start": existing.PeriodStart,
				}).Warn("ignoring stale subscription event")
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first sight of this subscription, insert below
		default:
			return err
		}

		record := billing.Subscription{
			ID:                   ev.SubscriptionID,
			PlanID:               plan.ID,
			ReferenceID:          refID,
			ReferenceType:        refType,
			StripeCustomerID:     ev.CustomerID,
			StripeSubscriptionID: ev.SubscriptionID,
			Status:               ev.Status,
			PeriodStart:          ev.PeriodStart,
			PeriodEnd:            ev.PeriodEnd,
			TrialStart:           ev.TrialStart,
			TrialEnd:             ev.TrialEnd,
			CancelAtPeriodEnd:    ev.CancelAtPeriodEnd,
			Seats:                ev.Seats,
			Limits:               plan.Limits,
			Metadata: map[string]interface{}{
				"userId":         ev.UserID,
				"organizationId": ev.OrganizationID,
			},
		}

		return upsertRecord(tx, &record)
	})
}

// upsertRecord inserts or conflict-updates a subscription row.
// id, stripe_customer_id, reference_id, reference_type and metadata are
// immutable once set; only the mutable columns conflict-update. The stale and
// terminal checks repeat in the update's WHERE clause so they hold even when
// two deliveries for the same id interleave past the pre-read above.
func upsertRecord(tx *gorm.DB, record *billing.Subscription) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id", "status", "period_start", "period_end",
			"trial_start", "trial_end", "cancel_at_period_end",
			"seats", "limits", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "subscriptions.period_start <= excluded.period_start"},
			clause.Expr{SQL: "subscriptions.status <> ?", Vars: []interface{}{billing.StatusCanceled}},
		}},
	}).Create(record).Error
}

// ApplySubscriptionCancellation marks the record canceled. Cancellation is
// terminal for a subscription id; a renewed subscription arrives under a new
// id. Unknown ids are logged as anomalous but are not a pipeline fault.
func (r *Reconciler) ApplySubscriptionCancellation(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return nil
	}
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&billing.Subscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"status":      billing.StatusCanceled,
			"canceled_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.WithField("subscription_id", subscriptionID).
			Warn("cancellation for unknown subscription, ignoring")
	}
	return nil
}

// ApplyPaymentOutcome reacts to invoice events: success recovers a past_due
// record to active, failure demotes to past_due. A canceled record stays
// canceled. Unknown subscription ids are a benign no-op (the invoice may
// belong to legacy or out-of-scope data), but known ones also get a ledger
// row, idempotent on invoice id.
func (r *Reconciler) ApplyPaymentOutcome(ctx context.Context, ev PaymentEvent) error {
	if ev.SubscriptionID == "" {
		r.log.WithField("invoice_id", ev.InvoiceID).
			Info("invoice event without subscription, ignoring")
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub billing.Subscription
		err := tx.Where("id = ?", ev.SubscriptionID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.WithFields(logrus.Fields{
				"subscription_id": ev.SubscriptionID,
				"invoice_id":      ev.InvoiceID,
			}).Warn("payment outcome for unknown subscription, ignoring")
			return nil
		}
		if err != nil {
			return err
		}

		if sub.Status != billing.StatusCanceled {
			status := billing.StatusActive
			if ev.Outcome == PaymentFailed {
				status = billing.StatusPastDue
			}
			if err := tx.Model(&billing.Subscription{}).
				Where("id = ?", sub.ID).
				Update("status", status).Error; err != nil {
				return err
			}
		}

		paymentStatus := billing.PaymentStatusPaid
		if ev.Outcome == PaymentFailed {
			paymentStatus = billing.PaymentStatusFailed
		}
		payment := billing.Payment{
			ID:             uuid.NewString(),
			InvoiceID:      ev.InvoiceID,
			SubscriptionID: sub.ID,
			ReferenceID:    sub.ReferenceID,
			Status:         paymentStatus,
			AmountCents:    ev.AmountCents,
			Currency:       ev.Currency,
		}
		if ev.HostedInvoiceURL != "" {
			payment.HostedInvoiceURL = &ev.HostedInvoiceURL
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			DoNothing: true,
		}).Create(&payment).Error
	})
}

// CancelAtPeriodEnd flags the subscription to lapse at the end of the current
// period. The remote call must succeed before the local flag changes, so the
// local store never claims a remote effect that didn't happen.
func (r *Reconciler) CancelAtPeriodEnd(ctx context.Context, subscriptionID, actingRef string) error {
	return r.setCancelFlag(ctx, subscriptionID, actingRef, true)
}

// ResumeAtPeriodEnd clears the cancel-at-period-end flag. Same ordering
// contract as CancelAtPeriodEnd.
func (r *Reconciler) ResumeAtPeriodEnd(ctx context.Context, subscriptionID, actingRef string) error {
	return r.setCancelFlag(ctx, subscriptionID, actingRef, false)
}

func (r *Reconciler) setCancelFlag(ctx context.Context, subscriptionID, actingRef string, cancel bool) error {
	var sub billing.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", subscriptionID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotAuthorized
	}
	if err != nil {
		return err
	}
	if sub.ReferenceID != actingRef {
		return ErrNotAuthorized
	}

	if err := r.remote.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel); err != nil {
		return fmt.Errorf("update subscription %s at processor: %w", subscriptionID, err)
	}

	return r.db.WithContext(ctx).Model(&billing.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("cancel_at_period_end", cancel).Error
}

func (r *Reconciler) planForPrice(ctx context.Context, priceID string) (*plans.Plan, error) {
	if priceID == "" {
		return nil, fmt.Errorf("%w: empty price id", ErrUnknownPlan)
	}
	var plan plans.Plan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("stripe_price_id = ? OR stripe_annual_price_id = ?", priceID, priceID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, priceID)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
