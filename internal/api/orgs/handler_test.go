package orgs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/orgs"
	"teamspace-backend/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func memberRouter(t *testing.T, userID string) *gin.Engine {
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
		c.Set("user_id", userID)
		c.Next()
	})
	r.POST("/organizations/:id/members", AddOrganizationMember)
	return r
}

func seedTeam(t *testing.T, memberLimit int64) {
	t.Helper()
	require.NoError(t, database.DB.Create(&users.User{
		ID: "u1", Name: "Owner", Email: "owner@example.com",
	}).Error)
	require.NoError(t, database.DB.Create(&users.User{
		ID: "u2", Name: "Invitee", Email: "invitee@example.com",
	}).Error)
	require.NoError(t, database.DB.Create(&orgs.Organization{ID: "org1", Name: "Acme"}).Error)
	require.NoError(t, database.DB.Create(&orgs.Member{
		ID: "m1", OrganizationID: "org1", UserID: "u1", Role: orgs.RoleOwner,
	}).Error)
	require.NoError(t, database.DB.Create(&billing.Subscription{
		ID:                   "sub_org1",
		PlanID:               "professional",
		ReferenceID:          "org1",
		ReferenceType:        billing.ReferenceTypeOrganization,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_org1",
		Status:               billing.StatusActive,
		PeriodStart:          time.Now().AddDate(0, -1, 0),
		PeriodEnd:            time.Now().AddDate(0, 1, 0),
		Seats:                1,
		Limits:               datatypes.JSONMap{"members": memberLimit},
	}).Error)
}

func addMember(r *gin.Engine, email string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/organizations/org1/members",
		strings.NewReader(`{"email": "`+email+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAddOrganizationMember(t *testing.T) {
	r := memberRouter(t, "u1")
	seedTeam(t, 10)

	w := addMember(r, "invitee@example.com")
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, database.DB.Model(&orgs.Member{}).
		Where("organization_id = ?", "org1").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAddOrganizationMemberEnforcesQuota(t *testing.T) {
	r := memberRouter(t, "u1")
	seedTeam(t, 1)

	w := addMember(r, "invitee@example.com")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var count int64
	require.NoError(t, database.DB.Model(&orgs.Member{}).
		Where("organization_id = ?", "org1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddOrganizationMemberOwnersOnly(t *testing.T) {
	r := memberRouter(t, "u2")
	seedTeam(t, 10)
	require.NoError(t, database.DB.Create(&orgs.Member{
		ID: "m2", OrganizationID: "org1", UserID: "u2", Role: orgs.RoleMember,
	}).Error)

	w := addMember(r, "owner@example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAddOrganizationMemberUnknownEmail(t *testing.T) {
	r := memberRouter(t, "u1")
	seedTeam(t, 10)

	w := addMember(r, "nobody@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
