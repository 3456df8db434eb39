package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateStampsTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	id, err := store.Create(ctx, Patients, &Patient{
		Cedula:    "V-123",
		Nombre:    "Ana",
		Apellido:  "Gomez",
		Edad:      30,
		TeamID:    "t1",
		CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got Patient
	require.NoError(t, store.Get(ctx, Patients, id, &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Ana", got.Nombre)
	assert.Equal(t, 30, got.Edad)
	assert.True(t, got.CreatedAt.Equal(fixed), "created_at is set by the store")
	assert.True(t, got.UpdatedAt.Equal(fixed))
}

func TestMemoryStore_CreateKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, Users, &User{ID: "uid-1", Email: "a@b.c", Role: "doctor"})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", id)

	_, err = store.Create(ctx, Users, &User{ID: "uid-1"})
	require.Error(t, err)
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, Patients, &Patient{Cedula: "1", TeamID: "t1"})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, Patients, id, map[string]any{"historia": "edema grado II"}))
	var got Patient
	require.NoError(t, store.Get(ctx, Patients, id, &got))
	assert.Equal(t, "edema grado II", got.Historia)

	require.NoError(t, store.Delete(ctx, Patients, id))
	assert.ErrorIs(t, store.Get(ctx, Patients, id, &got), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, Patients, id), ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, Patients, id, map[string]any{"historia": "x"}), ErrNotFound)
}

func TestMemoryStore_FindFiltersOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, c := range []Capture{
		{PatientID: "p1", TeamID: "t1", Timestamp: "2024-03-01_10-00-00"},
		{PatientID: "p1", TeamID: "t1", Timestamp: "2024-03-01_12-00-00"},
		{PatientID: "p1", TeamID: "t1", Timestamp: "2024-03-01_11-00-00"},
		{PatientID: "p2", TeamID: "t1", Timestamp: "2024-03-01_13-00-00"},
		{PatientID: "p1", TeamID: "t2", Timestamp: "2024-03-01_14-00-00"},
	} {
		_, err := store.Create(ctx, Captures, &c)
		require.NoError(t, err)
	}

	var got []Capture
	q := Where("patient_id", "p1", Filter{Field: "team_id", Value: "t1"})
	q.OrderBy, q.Desc = "timestamp", true
	require.NoError(t, store.Find(ctx, Captures, q, &got))
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-01_12-00-00", got[0].Timestamp)
	assert.Equal(t, "2024-03-01_11-00-00", got[1].Timestamp)
	assert.Equal(t, "2024-03-01_10-00-00", got[2].Timestamp)

	q.Limit = 1
	require.NoError(t, store.Find(ctx, Captures, q, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-01_12-00-00", got[0].Timestamp)
}

func TestMemoryStore_FindMatchesIntegers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Create(ctx, Patients, &Patient{Cedula: "1", Edad: 30})
	require.NoError(t, err)
	_, err = store.Create(ctx, Patients, &Patient{Cedula: "2", Edad: 41})
	require.NoError(t, err)

	var got []Patient
	require.NoError(t, store.Find(ctx, Patients, Where("edad", 41), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Cedula)
}

func TestMemoryStore_FindRejectsNonSlice(t *testing.T) {
	var p Patient
	err := NewMemoryStore().Find(context.Background(), Patients, Query{}, &p)
	require.Error(t, err)
}

func TestMemoryStore_FindEmptyCollection(t *testing.T) {
	got := []Report{{ID: "stale"}}
	require.NoError(t, NewMemoryStore().Find(context.Background(), Reports, Query{}, &got))
	assert.Empty(t, got)
}
