package stripe

import (
	"context"
	"time"

	"teamspace-backend/config"

	stripesdk "github.com/stripe/stripe-go/v75"
	portalsession "github.com/stripe/stripe-go/v75/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/customer"
	"github.com/stripe/stripe-go/v75/subscription"
)

// requestTimeout bounds every outbound processor call. Webhook delivery and
// interactive requests both expect answers within single-digit seconds.
const requestTimeout = 10 * time.Second

// Client wraps the processor SDK behind the handful of calls this system
// makes. All methods honor the caller's context, capped at requestTimeout.
type Client struct{}

func NewClient() *Client {
	stripesdk.Key = config.STRIPE_SECRET_KEY
	return &Client{}
}

// CreateCustomer registers a processor customer for a user. The userId in
// metadata lets the customer round-trip through webhook events.
func (c *Client) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	params := &stripesdk.CustomerParams{
		Email: stripesdk.String(email),
		Metadata: map[string]string{
			"userId": userID,
		},
	}
	if name != "" {
		params.Name = stripesdk.String(name)
	}
	params.Context = ctx

	cus, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

// CheckoutParams describes a subscription checkout session request.
type CheckoutParams struct {
	CustomerID     string
	PriceID        string
	Quantity       int64
	SuccessURL     string
	CancelURL      string
	UserID         string
	OrganizationID string
	TrialDays      int
}

// CreateCheckoutSession starts a hosted checkout and returns its redirect
// URL. The attribution metadata on subscription_data is what makes the
// resulting webhook events attributable to a billable entity.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if p.Quantity < 1 {
		p.Quantity = 1
	}

	subData := &stripesdk.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{
			"userId":         p.UserID,
			"organizationId": p.OrganizationID,
		},
	}
	if p.TrialDays > 0 {
		subData.TrialPeriodDays = stripesdk.Int64(int64(p.TrialDays))
	}

	params := &stripesdk.CheckoutSessionParams{
		Customer:   stripesdk.String(p.CustomerID),
		Mode:       stripesdk.String(string(stripesdk.CheckoutSessionModeSubscription)),
		SuccessURL: stripesdk.String(p.SuccessURL),
		CancelURL:  stripesdk.String(p.CancelURL),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{
			{Price: stripesdk.String(p.PriceID), Quantity: stripesdk.Int64(p.Quantity)},
		},
		SubscriptionData: subData,
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// CreatePortalSession opens the processor's self-serve billing portal.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	params := &stripesdk.BillingPortalSessionParams{
		Customer:  stripesdk.String(customerID),
		ReturnURL: stripesdk.String(returnURL),
	}
	params.Context = ctx

	s, err := portalsession.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// SetCancelAtPeriodEnd flips the processor's native cancel-at-period-end
// flag. Implements reconcile.SubscriptionRemote.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	ctx, cancelFn := context.WithTimeout(ctx, requestTimeout)
	defer cancelFn()

	params := &stripesdk.SubscriptionParams{
		CancelAtPeriodEnd: stripesdk.Bool(cancel),
	}
	params.Context = ctx

	_, err := subscription.Update(subscriptionID, params)
	return err
}
