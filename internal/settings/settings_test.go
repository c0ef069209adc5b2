package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppSettings_ApplyPartialUpdateLeavesOtherFieldsUntouched(t *testing.T) {
	s := New(5*time.Second, 10*time.Second, 1.0, 0.25)

	newWeight := 2.0
	require.NoError(t, s.Apply(Update{RouteCostWeight: &newWeight}))

	snap := s.Snapshot()
	require.Equal(t, 2.0, snap.RouteCostWeight)
	require.Equal(t, 0.25, snap.RouteHopsWeight)
	require.Equal(t, 5*time.Second, snap.GetSettingsTimeout)
	require.Equal(t, 10*time.Second, snap.SignalDataTimeout)
}

func TestAppSettings_ApplyRejectsInvalidUpdateAndLeavesStateUnchanged(t *testing.T) {
	s := New(5*time.Second, 10*time.Second, 1.0, 0.25)

	bad := -1.0
	err := s.Apply(Update{RouteCostWeight: &bad})
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, 1.0, snap.RouteCostWeight)
}

func TestAppSettings_ApplyRejectsNonPositiveTimeout(t *testing.T) {
	s := New(5*time.Second, 10*time.Second, 1.0, 0.25)

	zero := time.Duration(0)
	err := s.Apply(Update{SignalDataTimeout: &zero})
	require.Error(t, err)
}
