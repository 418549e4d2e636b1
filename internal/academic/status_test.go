package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromCode(t *testing.T) {
	assert.Equal(t, StatusPending, StatusFromCode(100))
	assert.Equal(t, StatusActive, StatusFromCode(300))
	assert.Equal(t, StatusClosed, StatusFromCode(600))
	assert.Equal(t, StatusDeleted, StatusFromCode(700))
	assert.Equal(t, StatusInvalid, StatusFromCode(0))
	assert.Equal(t, StatusInvalid, StatusFromCode(42))
	assert.Equal(t, StatusInvalid, StatusFromCode(-1))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusActive.IsActive())
	assert.False(t, StatusPending.IsActive())
	assert.True(t, StatusClosed.IsClosed())
	assert.True(t, StatusDeleted.IsDeleted())
	assert.False(t, StatusInvalid.IsDeleted())
}

func TestStatusOption(t *testing.T) {
	assert.Equal(t, StatusOption{ID: 100, Code: "academicYearStatusType.pending", Value: "Pending for activation"}, StatusPending.Option())
	assert.Equal(t, StatusOption{ID: 300, Code: "academicYearStatusType.active", Value: "Active"}, StatusActive.Option())
	assert.Equal(t, StatusOption{ID: 0, Code: "academicYearStatusType.invalid", Value: "Invalid"}, Status(55).Option())
}

func TestStatusScan(t *testing.T) {
	var s Status
	require.NoError(t, s.Scan(int64(600)))
	assert.Equal(t, StatusClosed, s)

	require.NoError(t, s.Scan(int64(999)))
	assert.Equal(t, StatusInvalid, s)

	assert.Error(t, s.Scan("ACTIVE"))

	v, err := StatusDeleted.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(700), v)
}
