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

func seedBookingFixtures(t *testing.T, gw *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	seedCaregiver(t, gw, "alice")
	seedCaregiver(t, gw, "bob")
	seedPatient(t, gw, "pat")
	seedPatient(t, gw, "quinn")
	require.NoError(t, gw.AddDoses(ctx, "moderna", 10))
}

// =============================================================================
// ID ALLOCATION
// =============================================================================

func TestAppointmentLedger_NextID_EmptyLedgerIsOne(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)

	next, err := ledger.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.AppointmentID(1), next)
}

func TestAppointmentLedger_IDs_MonotonicallyAssigned(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	id1, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	require.NoError(t, err)
	assert.Equal(t, engine.AppointmentID(1), id1)

	id2, err := ledger.Create(ctx, day(time.March, 2), "alice", "pat", "moderna")
	require.NoError(t, err)
	assert.Equal(t, engine.AppointmentID(2), id2)

	next, err := ledger.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.AppointmentID(3), next)
}

// =============================================================================
// DOUBLE-BOOKING - last line of defense
// =============================================================================

func TestAppointmentLedger_Create_DoubleBookingRejected(t *testing.T) {
	// The ledger itself enforces the (caregiver, date) uniqueness even when
	// a caller skips the coordinator's preconditions.

	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	_, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	require.NoError(t, err)

	_, err = ledger.Create(ctx, day(time.March, 1), "alice", "quinn", "moderna")
	assert.ErrorIs(t, err, engine.ErrConflict)
	var dbl *engine.DoubleBookingError
	assert.ErrorAs(t, err, &dbl)
	assert.Equal(t, "alice", dbl.Caregiver)
}

func TestAppointmentLedger_Create_SameCaregiverDifferentDates(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	_, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	assert.NoError(t, err)
	_, err = ledger.Create(ctx, day(time.March, 2), "alice", "quinn", "moderna")
	assert.NoError(t, err)
}

// =============================================================================
// FIND / CANCEL
// =============================================================================

func TestAppointmentLedger_Find_MissingIsNil(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)

	appt, err := ledger.Find(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, appt)
}

func TestAppointmentLedger_Cancel_ByPatientAndCaregiver(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	id1, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	require.NoError(t, err)
	id2, err := ledger.Create(ctx, day(time.March, 2), "alice", "pat", "moderna")
	require.NoError(t, err)

	// The patient may cancel their own appointment.
	err = ledger.Cancel(ctx, id1, engine.Identity{Role: engine.RolePatient, Username: "pat"})
	assert.NoError(t, err)

	// The serving caregiver may cancel too.
	err = ledger.Cancel(ctx, id2, engine.Identity{Role: engine.RoleCaregiver, Username: "alice"})
	assert.NoError(t, err)

	appt, err := ledger.Find(ctx, id1)
	require.NoError(t, err)
	assert.Nil(t, appt, "cancellation hard-deletes the row")
}

func TestAppointmentLedger_Cancel_NonPartyForbidden(t *testing.T) {
	// GIVEN: alice serves pat's appointment
	// WHEN: quinn (another patient) or bob (another caregiver) cancels
	// THEN: Forbidden, and the appointment still exists

	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	id, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	require.NoError(t, err)

	err = ledger.Cancel(ctx, id, engine.Identity{Role: engine.RolePatient, Username: "quinn"})
	assert.ErrorIs(t, err, engine.ErrForbidden)

	err = ledger.Cancel(ctx, id, engine.Identity{Role: engine.RoleCaregiver, Username: "bob"})
	assert.ErrorIs(t, err, engine.ErrForbidden)

	appt, err := ledger.Find(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, appt, "failed cancel must not mutate state")
}

func TestAppointmentLedger_Cancel_MissingIDNotFound(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)

	err := ledger.Cancel(context.Background(), 99,
		engine.Identity{Role: engine.RolePatient, Username: "pat"})
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

// =============================================================================
// LISTINGS
// =============================================================================

func TestAppointmentLedger_Listings_OrderedByID(t *testing.T) {
	gw := newTestGateway(t)
	ledger := engine.NewAppointmentLedger(gw)
	ctx := context.Background()
	seedBookingFixtures(t, gw)

	_, err := ledger.Create(ctx, day(time.March, 1), "alice", "pat", "moderna")
	require.NoError(t, err)
	_, err = ledger.Create(ctx, day(time.March, 1), "bob", "quinn", "moderna")
	require.NoError(t, err)
	_, err = ledger.Create(ctx, day(time.March, 2), "alice", "quinn", "moderna")
	require.NoError(t, err)

	forAlice, err := ledger.ForCaregiver(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 2)
	assert.Equal(t, engine.AppointmentID(1), forAlice[0].ID)
	assert.Equal(t, engine.AppointmentID(3), forAlice[1].ID)

	forQuinn, err := ledger.ForPatient(ctx, "quinn")
	require.NoError(t, err)
	require.Len(t, forQuinn, 2)
	assert.Equal(t, engine.AppointmentID(2), forQuinn[0].ID)
	assert.Equal(t, engine.AppointmentID(3), forQuinn[1].ID)

	// For() routes by role.
	byIdentity, err := ledger.For(ctx, engine.Identity{Role: engine.RoleCaregiver, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, forAlice, byIdentity)
}

func TestAppointmentLedger_Counterpart(t *testing.T) {
	appt := engine.Appointment{Caregiver: "alice", Patient: "pat"}

	assert.Equal(t, "alice", appt.Counterpart(engine.Identity{Role: engine.RolePatient, Username: "pat"}))
	assert.Equal(t, "pat", appt.Counterpart(engine.Identity{Role: engine.RoleCaregiver, Username: "alice"}))
}

// =============================================================================
// DIRECTORY - open-question policy: forbid deleting referenced caregivers
// =============================================================================

func TestDirectory_DuplicateUsernameRejected(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.CreateCaregiver(ctx, "alice"))
	assert.ErrorIs(t, gw.CreateCaregiver(ctx, "alice"), engine.ErrConflict)

	require.NoError(t, gw.CreatePatient(ctx, "pat"))
	assert.ErrorIs(t, gw.CreatePatient(ctx, "pat"), engine.ErrConflict)
}

func TestDirectory_DeleteCaregiverWithDependentsForbidden(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")
	require.NoError(t, gw.InsertAvailability(ctx, "alice", day(time.March, 1)))

	assert.ErrorIs(t, gw.DeleteCaregiver(ctx, "alice"), engine.ErrConflict)

	assert.ErrorIs(t, gw.DeleteCaregiver(ctx, "ghost"), engine.ErrNotFound)
}
