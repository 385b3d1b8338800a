package plans

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"teamspace-backend/config"
	"teamspace-backend/database"
	"teamspace-backend/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/price"
	"gorm.io/datatypes"
)

// SyncPlansFromStripe pulls the processor's active recurring prices into the
// plan catalog. Product/price metadata drives the catalog fields:
//
//	plan_id     catalog id ("starter"); falls back to a slug of the product name
//	trial_days  trial length
//	limits      JSON map of quotas, -1 meaning unlimited
//	sort_order  display order
//	visible     "false" hides the price from the catalog
//
// Annual prices (interval=year) attach to the monthly plan of the same
// plan_id rather than creating a second catalog entry.
func SyncPlansFromStripe(c *gin.Context) {
	stripe.Key = config.STRIPE_SECRET_KEY
	if stripe.Key == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}

	params := &stripe.PriceListParams{}
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.AddExpand("data.product")
	params.Context = c.Request.Context()

	it := price.List(params)

	created := 0
	updated := 0
	skipped := 0

	for it.Next() {
		p := it.Price()

		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			skipped++
			continue
		}
		if p.Metadata["visible"] == "false" {
			skipped++
			continue
		}

		planID := p.Metadata["plan_id"]
		if planID == "" {
			planID = p.Product.Metadata["plan_id"]
		}
		if planID == "" {
			planID = slugFromName(p.Product.Name)
		}

		annual := p.Recurring.Interval == stripe.PriceRecurringIntervalYear

		var existing plans.Plan
		err := database.DB.Where("id = ?", planID).First(&existing).Error

		if annual {
			// Annual price only makes sense attached to an existing plan.
			if err != nil {
				skipped++
				continue
			}
			existing.StripeAnnualPriceID = stripe.String(p.ID)
			if err := database.DB.Save(&existing).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
				return
			}
			updated++
			continue
		}

		interval := string(p.Recurring.Interval)
		plan := plans.Plan{
			ID:            planID,
			Name:          p.Product.Name,
			Type:          plans.TypeSubscription,
			StripePriceID: p.ID,
			Amount:        p.UnitAmount,
			Currency:      string(p.Currency),
			Interval:      &interval,
			IntervalCount: int(p.Recurring.IntervalCount),
			Limits:        limitsFromMetadata(p),
			IsActive:      true,
			SortOrder:     sortOrderFromMetadata(p),
		}
		if days, ok := trialDaysFromMetadata(p); ok {
			plan.TrialPeriodDays = &days
		}

		if err != nil {
			if err := database.DB.Create(&plan).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan", "details": err.Error()})
				return
			}
			created++
		} else {
			plan.StripeAnnualPriceID = existing.StripeAnnualPriceID
			if err := database.DB.Model(&existing).Updates(map[string]interface{}{
				"name":              plan.Name,
				"stripe_price_id":   plan.StripePriceID,
				"amount":            plan.Amount,
				"currency":          plan.Currency,
				"interval":          interval,
				"interval_count":    plan.IntervalCount,
				"limits":            plan.Limits,
				"trial_period_days": plan.TrialPeriodDays,
				"sort_order":        plan.SortOrder,
			}).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
				return
			}
			updated++
		}
	}

	if err := it.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch Stripe prices", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"created": created, "updated": updated, "skipped": skipped})
}

func limitsFromMetadata(p *stripe.Price) datatypes.JSONMap {
	raw := p.Metadata["limits"]
	if raw == "" && p.Product != nil {
		raw = p.Product.Metadata["limits"]
	}
	limits := datatypes.JSONMap{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &limits)
	}
	return limits
}

func trialDaysFromMetadata(p *stripe.Price) (int, bool) {
	raw := p.Metadata["trial_days"]
	if raw == "" && p.Product != nil {
		raw = p.Product.Metadata["trial_days"]
	}
	if raw == "" {
		return 0, false
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}

func sortOrderFromMetadata(p *stripe.Price) int {
	raw := p.Metadata["sort_order"]
	if raw == "" && p.Product != nil {
		raw = p.Product.Metadata["sort_order"]
	}
	n, _ := strconv.Atoi(raw)
	return n
}

func slugFromName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(name)), "-"))
}
