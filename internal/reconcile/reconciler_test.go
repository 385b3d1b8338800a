package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/plans"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.AddDate(0, 1, 0)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedProPlan(t *testing.T, db *gorm.DB) plans.Plan {
	t.Helper()
	interval := "month"
	plan := plans.Plan{
		ID:            "professional",
		Name:          "Professional",
		Type:          plans.TypeSubscription,
		StripePriceID: "price_pro",
		Amount:        4900,
		Currency:      "usd",
		Interval:      &interval,
		IsActive:      true,
		SortOrder:     2,
		Limits: datatypes.JSONMap{
			"projects": 25,
			"storage":  100,
			"members":  10,
			"apiCalls": 100000,
		},
	}
	require.NoError(t, db.Create(&plan).Error)
	return plan
}

func proEvent() SubscriptionEvent {
	return SubscriptionEvent{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		Status:         billing.StatusActive,
		PriceID:        "price_pro",
		Seats:          1,
		PeriodStart:    t0,
		PeriodEnd:      t1,
		UserID:         "u1",
	}
}

type fakeRemote struct {
	err   error
	calls int
	last  bool
}

func (f *fakeRemote) SetCancelAtPeriodEnd(_ context.Context, _ string, cancel bool) error {
	f.calls++
	f.last = cancel
	return f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestApplySubscriptionUpsertCreatesRecord(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, "professional", sub.PlanID)
	assert.Equal(t, "u1", sub.ReferenceID)
	assert.Equal(t, billing.ReferenceTypeUser, sub.ReferenceType)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	assert.Equal(t, 1, sub.Seats)
	assert.True(t, sub.PeriodStart.Equal(t0))
	assert.True(t, sub.PeriodEnd.Equal(t1))

	projects, ok := plans.LimitValue(sub.Limits, "projects")
	require.True(t, ok)
	assert.Equal(t, int64(25), projects)
}

func TestApplySubscriptionUpsertIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	ev := proEvent()
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), ev))
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), ev))

	var count int64
	require.NoError(t, db.Model(&billing.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.Equal(t, "u1", sub.ReferenceID)
}

func TestApplySubscriptionUpsertRequiresReference(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	ev := proEvent()
	ev.UserID = ""
	ev.OrganizationID = ""

	err := rec.ApplySubscriptionUpsert(context.Background(), ev)
	require.ErrorIs(t, err, ErrMissingReference)

	var count int64
	require.NoError(t, db.Model(&billing.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplySubscriptionUpsertRejectsUnknownPlan(t *testing.T) {
	db := newTestDB(t)
	rec := New(db, nil, quietLogger())

	err := rec.ApplySubscriptionUpsert(context.Background(), proEvent())
	require.ErrorIs(t, err, ErrUnknownPlan)

	var count int64
	require.NoError(t, db.Model(&billing.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplySubscriptionUpsertOrganizationTakesPrecedence(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	ev := proEvent()
	ev.OrganizationID = "org1"

	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), ev))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, "org1", sub.ReferenceID)
	assert.Equal(t, billing.ReferenceTypeOrganization, sub.ReferenceType)
}

func TestApplySubscriptionUpsertIgnoresStaleEvent(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	newer := proEvent()
	newer.PeriodStart = t0.AddDate(0, 1, 0)
	newer.PeriodEnd = t0.AddDate(0, 2, 0)
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), newer))

	stale := proEvent()
	stale.Status = billing.StatusUnpaid
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), stale))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.True(t, sub.PeriodStart.Equal(newer.PeriodStart))
}

func TestApplySubscriptionUpsertCanceledIsTerminal(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))
	require.NoError(t, rec.ApplySubscriptionCancellation(context.Background(), "sub_1"))

	// A redelivered copy of the original event must not resurrect the record.
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusCanceled, sub.Status)
}

func TestConflictUpdateRefusesStaleWrite(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	newer := proEvent()
	newer.PeriodStart = t0.AddDate(0, 1, 0)
	newer.PeriodEnd = t0.AddDate(0, 2, 0)
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), newer))

	// Write directly, as a delivery that raced past the pre-read would.
	stale := billing.Subscription{
		ID:                   "sub_1",
		PlanID:               "professional",
		ReferenceID:          "u1",
		ReferenceType:        billing.ReferenceTypeUser,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               billing.StatusUnpaid,
		PeriodStart:          t0,
		PeriodEnd:            t1,
		Seats:                1,
	}
	require.NoError(t, upsertRecord(db, &stale))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.True(t, sub.PeriodStart.Equal(newer.PeriodStart))
}

func TestConflictUpdateRefusesCanceledWrite(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))
	require.NoError(t, rec.ApplySubscriptionCancellation(context.Background(), "sub_1"))

	replay := billing.Subscription{
		ID:                   "sub_1",
		PlanID:               "professional",
		ReferenceID:          "u1",
		ReferenceType:        billing.ReferenceTypeUser,
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
		Status:               billing.StatusActive,
		PeriodStart:          t0.AddDate(0, 1, 0),
		PeriodEnd:            t0.AddDate(0, 2, 0),
		Seats:                1,
	}
	require.NoError(t, upsertRecord(db, &replay))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusCanceled, sub.Status)
}

func TestApplySubscriptionCancellation(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())

	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))
	require.NoError(t, rec.ApplySubscriptionCancellation(context.Background(), "sub_1"))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
}

func TestApplySubscriptionCancellationUnknownIDIsNoOp(t *testing.T) {
	db := newTestDB(t)
	rec := New(db, nil, quietLogger())

	require.NoError(t, rec.ApplySubscriptionCancellation(context.Background(), "sub_missing"))
}

func TestApplyPaymentOutcomeFailureThenRecovery(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	failed := PaymentEvent{SubscriptionID: "sub_1", Outcome: PaymentFailed, InvoiceID: "in_1", AmountCents: 4900, Currency: "usd"}
	require.NoError(t, rec.ApplyPaymentOutcome(context.Background(), failed))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusPastDue, sub.Status)

	succeeded := PaymentEvent{SubscriptionID: "sub_1", Outcome: PaymentSucceeded, InvoiceID: "in_2", AmountCents: 4900, Currency: "usd"}
	require.NoError(t, rec.ApplyPaymentOutcome(context.Background(), succeeded))

	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.Equal(t, billing.StatusActive, sub.Status)

	var payments int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(2), payments)
}

func TestApplyPaymentOutcomeUnknownSubscriptionIsNoOp(t *testing.T) {
	db := newTestDB(t)
	rec := New(db, nil, quietLogger())

	ev := PaymentEvent{SubscriptionID: "sub_missing", Outcome: PaymentSucceeded, InvoiceID: "in_1"}
	require.NoError(t, rec.ApplyPaymentOutcome(context.Background(), ev))

	var payments int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestApplyPaymentOutcomeLedgerIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	rec := New(db, nil, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	ev := PaymentEvent{SubscriptionID: "sub_1", Outcome: PaymentSucceeded, InvoiceID: "in_1", AmountCents: 4900, Currency: "usd"}
	require.NoError(t, rec.ApplyPaymentOutcome(context.Background(), ev))
	require.NoError(t, rec.ApplyPaymentOutcome(context.Background(), ev))

	var payments int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)
}

func TestCancelAtPeriodEndRequiresOwnership(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	remote := &fakeRemote{}
	rec := New(db, remote, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	err := rec.CancelAtPeriodEnd(context.Background(), "sub_1", "someone-else")
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Zero(t, remote.calls)

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.False(t, sub.CancelAtPeriodEnd)
}

func TestCancelAtPeriodEndUnknownSubscription(t *testing.T) {
	db := newTestDB(t)
	remote := &fakeRemote{}
	rec := New(db, remote, quietLogger())

	err := rec.CancelAtPeriodEnd(context.Background(), "sub_missing", "u1")
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Zero(t, remote.calls)
}

func TestCancelAtPeriodEndRemoteFailureLeavesLocalState(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	remote := &fakeRemote{err: errors.New("stripe is down")}
	rec := New(db, remote, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	err := rec.CancelAtPeriodEnd(context.Background(), "sub_1", "u1")
	require.Error(t, err)
	assert.Equal(t, 1, remote.calls)

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.False(t, sub.CancelAtPeriodEnd)
}

func TestCancelThenResumeAtPeriodEnd(t *testing.T) {
	db := newTestDB(t)
	seedProPlan(t, db)
	remote := &fakeRemote{}
	rec := New(db, remote, quietLogger())
	require.NoError(t, rec.ApplySubscriptionUpsert(context.Background(), proEvent()))

	require.NoError(t, rec.CancelAtPeriodEnd(context.Background(), "sub_1", "u1"))

	var sub billing.Subscription
	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.True(t, remote.last)

	require.NoError(t, rec.ResumeAtPeriodEnd(context.Background(), "sub_1", "u1"))

	require.NoError(t, db.First(&sub, "id = ?", "sub_1").Error)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.False(t, remote.last)
	assert.Equal(t, 2, remote.calls)
}
