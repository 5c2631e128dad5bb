package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

func testAppointment(id, userID, date, start, slotID string) Appointment {
	return Appointment{
		ID:     id,
		UserID: userID,
		UserDetails: UserDetails{
			Name:        "Dana Reyes",
			Email:       "dana@example.com",
			Phone:       "555-0100",
			Address:     "12 Main St",
			DateOfBirth: "1990-04-02",
		},
		Service:   "Hydrafacial",
		Date:      date,
		Time:      start,
		SlotID:    slotID,
		Status:    StatusPending,
		CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestStorePutGetDelete(t *testing.T) {
	client := newFakeDynamo()
	store := NewStore(client, "schedule-test", logging.Default())
	ctx := context.Background()

	appt := testAppointment("appt-1", "user-1", "2026-08-31", "10:00", "monday_1000")
	require.NoError(t, store.Put(ctx, appt))

	got, err := store.Get(ctx, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, appt.UserDetails, got.UserDetails)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "monday_1000", got.SlotID)

	require.NoError(t, store.Delete(ctx, "appt-1"))
	_, err = store.Get(ctx, "appt-1")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStoreListFilters(t *testing.T) {
	client := newFakeDynamo()
	store := NewStore(client, "schedule-test", logging.Default())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testAppointment("appt-1", "user-1", "2026-08-31", "10:00", "monday_1000")))
	require.NoError(t, store.Put(ctx, testAppointment("appt-2", "user-2", "2026-08-31", "09:00", "monday_0900")))
	require.NoError(t, store.Put(ctx, testAppointment("appt-3", "user-1", "2026-09-01", "11:00", "tuesday_1100")))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "appt-2", all[0].ID, "sorted by date then time")
	assert.Equal(t, "appt-1", all[1].ID)

	mine, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "appt-1", mine[0].ID)

	monday, err := store.ListByDate(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, monday, 2)

	slot, err := store.ListBySlot(ctx, "tuesday_1100")
	require.NoError(t, err)
	require.Len(t, slot, 1)
	assert.Equal(t, "appt-3", slot[0].ID)
}

func TestStoreUpdateStatus(t *testing.T) {
	client := newFakeDynamo()
	store := NewStore(client, "schedule-test", logging.Default())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testAppointment("appt-1", "user-1", "2026-08-31", "10:00", "monday_1000")))
	require.NoError(t, store.UpdateStatus(ctx, "appt-1", StatusApproved))

	got, err := store.Get(ctx, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	err = store.UpdateStatus(ctx, "missing", StatusApproved)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStoreDeleteTransactItems(t *testing.T) {
	client := newFakeDynamo()
	store := NewStore(client, "schedule-test", logging.Default())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testAppointment("appt-1", "user-1", "2026-08-31", "10:00", "monday_1000")))
	require.NoError(t, store.Put(ctx, testAppointment("appt-2", "user-2", "2026-08-31", "09:00", "monday_0900")))

	bySlot, err := store.DeleteTransactItemsBySlot(ctx, "monday_1000")
	require.NoError(t, err)
	assert.Len(t, bySlot, 1)

	byDate, slotIDs, err := store.DeleteTransactItemsByDate(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, byDate, 2)
	assert.ElementsMatch(t, []string{"monday_0900", "monday_1000"}, slotIDs)
}
