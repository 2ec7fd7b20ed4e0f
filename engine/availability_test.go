package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaxsched/reservation-engine/engine"
)

// =============================================================================
// UPLOAD
// =============================================================================

func TestAvailabilityIndex_Upload_DuplicateRejected(t *testing.T) {
	// GIVEN: alice uploaded availability for March 1
	// WHEN: alice uploads the exact same date again
	// THEN: the second upload fails with Conflict; it is not an upsert

	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")

	require.NoError(t, ix.Upload(ctx, "alice", day(time.March, 1)))

	err := ix.Upload(ctx, "alice", day(time.March, 1))
	assert.ErrorIs(t, err, engine.ErrConflict)
	var dup *engine.DuplicateAvailabilityError
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, "alice", dup.Caregiver)
}

func TestAvailabilityIndex_Upload_SameDateDifferentCaregivers(t *testing.T) {
	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")
	seedCaregiver(t, gw, "bob")

	assert.NoError(t, ix.Upload(ctx, "alice", day(time.March, 1)))
	assert.NoError(t, ix.Upload(ctx, "bob", day(time.March, 1)))
}

func TestAvailabilityIndex_Upload_UnknownCaregiver(t *testing.T) {
	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)

	err := ix.Upload(context.Background(), "ghost", day(time.March, 1))
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestAvailabilityIndex_Upload_BlankCaregiverRejected(t *testing.T) {
	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)

	err := ix.Upload(context.Background(), "", day(time.March, 1))
	assert.ErrorIs(t, err, engine.ErrInvalidArgument)
}

// =============================================================================
// FREE CAREGIVERS - ordering and derived freeness
// =============================================================================

func TestAvailabilityIndex_FreeCaregivers_SortedAscending(t *testing.T) {
	// The order determines deterministic caregiver selection in booking.
	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		seedCaregiver(t, gw, name)
		require.NoError(t, ix.Upload(ctx, name, day(time.March, 1)))
	}

	free, err := ix.FreeCaregivers(ctx, day(time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, free)
}

func TestAvailabilityIndex_FreeCaregivers_ExcludesBooked(t *testing.T) {
	// GIVEN: alice and bob free on March 1, alice has an active appointment
	// WHEN: Querying free caregivers for March 1
	// THEN: Only bob is listed; alice stays free on other dates

	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")
	seedCaregiver(t, gw, "bob")
	seedPatient(t, gw, "pat")
	require.NoError(t, gw.AddDoses(ctx, "moderna", 5))

	require.NoError(t, ix.Upload(ctx, "alice", day(time.March, 1)))
	require.NoError(t, ix.Upload(ctx, "bob", day(time.March, 1)))
	require.NoError(t, ix.Upload(ctx, "alice", day(time.March, 2)))

	_, err := gw.InsertAppointment(ctx, engine.Appointment{
		Day: day(time.March, 1), Caregiver: "alice", Patient: "pat", Vaccine: "moderna",
	})
	require.NoError(t, err)

	free, err := ix.FreeCaregivers(ctx, day(time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, free)

	free, err = ix.FreeCaregivers(ctx, day(time.March, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, free)
}

func TestAvailabilityIndex_FreenessRecomputedAfterCancellation(t *testing.T) {
	// Release writes nothing; deleting the appointment is what frees the
	// caregiver on the next read.

	gw := newTestGateway(t)
	ix := engine.NewAvailabilityIndex(gw)
	ctx := context.Background()

	seedCaregiver(t, gw, "alice")
	seedPatient(t, gw, "pat")
	require.NoError(t, gw.AddDoses(ctx, "moderna", 5))
	require.NoError(t, ix.Upload(ctx, "alice", day(time.March, 1)))

	id, err := gw.InsertAppointment(ctx, engine.Appointment{
		Day: day(time.March, 1), Caregiver: "alice", Patient: "pat", Vaccine: "moderna",
	})
	require.NoError(t, err)

	free, err := ix.FreeCaregivers(ctx, day(time.March, 1))
	require.NoError(t, err)
	assert.Empty(t, free)

	require.NoError(t, gw.DeleteAppointment(ctx, id))
	ix.Release("alice", day(time.March, 1)) // no-op, freeness derives from storage

	free, err = ix.FreeCaregivers(ctx, day(time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, free)
}
