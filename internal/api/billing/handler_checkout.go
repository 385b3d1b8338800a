package billing

import (
	"net/http"

	"teamspace-backend/config"
	"teamspace-backend/database"
	"teamspace-backend/internal/domain/orgs"
	"teamspace-backend/internal/domain/plans"
	"teamspace-backend/internal/domain/users"
	stripeclient "teamspace-backend/internal/infra/stripe"

	"github.com/gin-gonic/gin"
)

// CreateCheckoutSession starts a hosted checkout for the caller. No billing
// record is written here — that only happens once the processor confirms the
// subscription via webhook.
func CreateCheckoutSession(c *gin.Context) {
	var body struct {
		PriceID        string `json:"price_id"`
		OrganizationID string `json:"organization_id"`
		SuccessURL     string `json:"success_url"`
		CancelURL      string `json:"cancel_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PriceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid price_id"})
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	// Allow-list the price id against the catalog.
	var plan plans.Plan
	err := database.DB.
		Where("is_active = ?", true).
		Where("stripe_price_id = ? OR stripe_annual_price_id = ?", body.PriceID, body.PriceID).
		First(&plan).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan/price_id"})
		return
	}

	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if !user.EmailVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email first"})
		return
	}

	if body.OrganizationID != "" {
		member, err := orgs.IsMember(database.DB, body.OrganizationID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this organization"})
			return
		}
	}

	client := stripeclient.NewClient()

	customerID, err := ensureCustomer(c, client, &user)
	if err != nil {
		return // ensureCustomer already answered
	}

	successURL := body.SuccessURL
	if successURL == "" {
		successURL = config.APP_URL + "/dashboard?success=true"
	}
	cancelURL := body.CancelURL
	if cancelURL == "" {
		cancelURL = config.APP_URL + "/dashboard?canceled=true"
	}

	trialDays := 0
	if plan.TrialPeriodDays != nil {
		trialDays = *plan.TrialPeriodDays
	}

	url, err := client.CreateCheckoutSession(c.Request.Context(), stripeclient.CheckoutParams{
		CustomerID:     customerID,
		PriceID:        body.PriceID,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		UserID:         userID,
		OrganizationID: body.OrganizationID,
		TrialDays:      trialDays,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreateBillingPortal opens the processor's self-serve portal. Same customer
// resolution as checkout; no local state change.
func CreateBillingPortal(c *gin.Context) {
	var body struct {
		ReturnURL string `json:"return_url"`
	}
	_ = c.ShouldBindJSON(&body)

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	client := stripeclient.NewClient()

	customerID, err := ensureCustomer(c, client, &user)
	if err != nil {
		return
	}

	returnURL := body.ReturnURL
	if returnURL == "" {
		returnURL = config.APP_URL + "/dashboard"
	}

	url, err := client.CreatePortalSession(c.Request.Context(), customerID, returnURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not create billing portal session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ensureCustomer returns the user's processor customer id, creating and
// caching one on first use. The cached id is checked before any create call
// so a retried request cannot mint a second remote customer.
func ensureCustomer(c *gin.Context, client *stripeclient.Client, user *users.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := client.CreateCustomer(c.Request.Context(), user.Email, user.Name, user.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create customer account"})
		return "", err
	}

	if err := database.DB.Model(&users.User{}).
		Where("id = ?", user.ID).
		Update("stripe_customer_id", customerID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store customer id"})
		return "", err
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}
