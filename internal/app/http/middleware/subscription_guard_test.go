package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func guardedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.Next()
	})
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/feature", RequireActiveSubscription(), ok)
	r.GET("/organizations/:id/feature", RequireActiveSubscription(), ok)
	return r
}

func seedGuardSubscription(t *testing.T, referenceID, refType string, periodEnd time.Time) {
	t.Helper()
	require.NoError(t, database.DB.Create(&billing.Subscription{
		ID:                   "sub_" + referenceID,
		PlanID:               "professional",
		ReferenceID:          referenceID,
		ReferenceType:        refType,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_" + referenceID,
		Status:               billing.StatusActive,
		PeriodStart:          periodEnd.AddDate(0, -1, 0),
		PeriodEnd:            periodEnd,
		Seats:                1,
	}).Error)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGuardRefusesWithoutSubscription(t *testing.T) {
	r := guardedRouter(t)

	assert.Equal(t, http.StatusForbidden, get(r, "/feature").Code)
}

func TestGuardPassesActiveSubscription(t *testing.T) {
	r := guardedRouter(t)
	seedGuardSubscription(t, "u1", billing.ReferenceTypeUser, time.Now().AddDate(0, 1, 0))

	assert.Equal(t, http.StatusOK, get(r, "/feature").Code)
}

func TestGuardRefusesElapsedPeriod(t *testing.T) {
	r := guardedRouter(t)
	seedGuardSubscription(t, "u1", billing.ReferenceTypeUser, time.Now().AddDate(0, -1, 0))

	assert.Equal(t, http.StatusPaymentRequired, get(r, "/feature").Code)
}

func TestGuardResolvesOrganizationFromRoute(t *testing.T) {
	r := guardedRouter(t)
	seedGuardSubscription(t, "org1", billing.ReferenceTypeOrganization, time.Now().AddDate(0, 1, 0))
	seedGuardSubscription(t, "u1", billing.ReferenceTypeUser, time.Now().AddDate(0, 1, 0))

	assert.Equal(t, http.StatusOK, get(r, "/organizations/org1/feature").Code)
	// The caller's own subscription does not stand in for the organization's.
	assert.Equal(t, http.StatusForbidden, get(r, "/organizations/org2/feature").Code)
}
