package stripewebhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"teamspace-backend/config"
	"teamspace-backend/database"
	"teamspace-backend/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const maxBodyBytes = 65536

// StripeWebhook authenticates and routes inbound processor events. Signature
// verification runs against the raw body bytes before anything else touches
// the database; processing failures answer 500 so the processor redelivers.
func StripeWebhook(c *gin.Context) {
	endpointSecret := config.STRIPE_WEBHOOK_SECRET
	if endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readRawBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		logrus.WithError(err).Warn("stripe signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	rec := reconcile.New(database.DB, nil, logrus.StandardLogger())

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		ev, err := reconcile.NewSubscriptionEvent(&sub)
		if err == nil {
			err = rec.ApplySubscriptionUpsert(c.Request.Context(), ev)
		}
		respond(c, event, err)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse subscription"})
			return
		}
		respond(c, event, rec.ApplySubscriptionCancellation(c.Request.Context(), sub.ID))

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse invoice"})
			return
		}
		outcome := reconcile.PaymentSucceeded
		if event.Type == "invoice.payment_failed" {
			outcome = reconcile.PaymentFailed
		}
		respond(c, event, rec.ApplyPaymentOutcome(c.Request.Context(), reconcile.NewPaymentEvent(&inv, outcome)))

	default:
		// Acknowledge unknown events to avoid retries.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func respond(c *gin.Context, event stripe.Event, err error) {
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).WithError(err).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Webhook processing failed",
			"event_id":   event.ID,
			"event_type": event.Type,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func readRawBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
