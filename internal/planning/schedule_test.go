package planning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClusterDatesToleranceBoundary(t *testing.T) {
	within := clusterDates([]time.Time{day("2024-03-15"), day("2024-03-16")}, 1)
	require.Len(t, within, 1)

	apart := clusterDates([]time.Time{day("2024-03-15"), day("2024-03-17")}, 1)
	require.Len(t, apart, 2)

	wide := clusterDates([]time.Time{day("2024-03-15"), day("2024-03-18")}, 3)
	require.Len(t, wide, 1)
	wider := clusterDates([]time.Time{day("2024-03-15"), day("2024-03-19")}, 3)
	require.Len(t, wider, 2)
}

func TestClusterDatesSortsAndChains(t *testing.T) {
	clusters := clusterDates([]time.Time{
		day("2024-03-20"), day("2024-03-15"), day("2024-03-16"), day("2024-03-17"), day("2024-03-15"),
	}, 1)
	require.Len(t, clusters, 2)
	require.Len(t, clusters[0], 4)
	require.Equal(t, day("2024-03-20"), clusters[1][0])
}

func TestClusterDatesIgnoresTimeOfDay(t *testing.T) {
	clusters := clusterDates([]time.Time{
		time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC),
	}, 0)
	require.Len(t, clusters, 2)
}

func TestPriorityClusterIsEarliest(t *testing.T) {
	clusters := [][]time.Time{
		{day("2024-03-20"), day("2024-03-21")},
		{day("2024-03-10")},
	}
	require.Equal(t, []time.Time{day("2024-03-10")}, priorityCluster(clusters))
}

func TestScheduleTwoOrderCluster(t *testing.T) {
	s := scheduler{DaysPerOrder: 2, ToleranceDays: 1}

	orderDate, arrival := s.Schedule([]time.Time{day("2024-03-16"), day("2024-03-15")}, 3)
	require.Equal(t, day("2024-03-11"), arrival)
	require.Equal(t, day("2024-03-08"), orderDate)
}

func TestScheduleDoesNotClampToToday(t *testing.T) {
	s := scheduler{DaysPerOrder: 2, ToleranceDays: 1}

	orderDate, arrival := s.Schedule([]time.Time{day("2020-01-02")}, 10)
	require.Equal(t, day("2019-12-31"), arrival)
	require.Equal(t, day("2019-12-21"), orderDate)
}
