package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaxsched/reservation-engine/engine"
	"github.com/vaxsched/reservation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP - shared by the engine package tests
// =============================================================================

func newTestGateway(t *testing.T) *sqlite.Store {
	t.Helper()
	gw, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func seedCaregiver(t *testing.T, gw *sqlite.Store, username string) {
	t.Helper()
	require.NoError(t, gw.CreateCaregiver(context.Background(), username))
}

func seedPatient(t *testing.T, gw *sqlite.Store, username string) {
	t.Helper()
	require.NoError(t, gw.CreatePatient(context.Background(), username))
}

func day(month time.Month, dayOfMonth int) engine.Date {
	return engine.NewDate(2024, month, dayOfMonth)
}

// =============================================================================
// INVENTORY LEDGER
// =============================================================================

func TestInventoryLedger_AddDoses_CreatesThenIncrements(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)
	ctx := context.Background()

	require.NoError(t, ledger.AddDoses(ctx, "moderna", 5))
	remaining, err := ledger.Remaining(ctx, "moderna")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	// Known vaccine: the total increases, it is not replaced.
	require.NoError(t, ledger.AddDoses(ctx, "moderna", 3))
	remaining, err = ledger.Remaining(ctx, "moderna")
	require.NoError(t, err)
	assert.Equal(t, 8, remaining)
}

func TestInventoryLedger_AddDoses_NegativeRejected(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)

	err := ledger.AddDoses(context.Background(), "moderna", -1)
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)

	// Nothing was written.
	remaining, err := ledger.Remaining(context.Background(), "moderna")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestInventoryLedger_AddDoses_BlankNameRejected(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)

	err := ledger.AddDoses(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

func TestInventoryLedger_Remaining_UnknownVaccineIsZero(t *testing.T) {
	// Defensive queries report 0 for an unknown name, not an error.
	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)

	remaining, err := ledger.Remaining(context.Background(), "never-added")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestInventoryLedger_Lookup_UnknownVaccineNotFound(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)

	_, err := ledger.Lookup(context.Background(), "never-added")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestInventoryLedger_Remaining_DerivedFromActiveAppointments(t *testing.T) {
	// GIVEN: 2 doses of moderna and one active appointment consuming one
	// WHEN: Querying remaining doses
	// THEN: remaining == total added - active appointments

	gw := newTestGateway(t)
	ledger := engine.NewInventoryLedger(gw)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")
	seedPatient(t, gw, "bob")
	require.NoError(t, ledger.AddDoses(ctx, "moderna", 2))

	_, err := gw.InsertAppointment(ctx, engine.Appointment{
		Day: day(time.March, 1), Caregiver: "alice", Patient: "bob", Vaccine: "moderna",
	})
	require.NoError(t, err)

	remaining, err := ledger.Remaining(ctx, "moderna")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Cancelling the appointment restores the dose.
	require.NoError(t, gw.DeleteAppointment(ctx, 1))
	remaining, err = ledger.Remaining(ctx, "moderna")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}
