package planning

import (
	"sort"
	"time"
)

const (
	defaultDaysPerOrder  = 2
	defaultToleranceDays = 1
)

// scheduler back-schedules purchases from clustered delivery dates.
type scheduler struct {
	DaysPerOrder  int
	ToleranceDays int
}

// clusterDates groups ascending dates greedily. A date joins the first
// cluster whose last date is at most toleranceDays before it.
func clusterDates(dates []time.Time, toleranceDays int) [][]time.Time {
	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = truncateDay(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var clusters [][]time.Time
	for _, d := range sorted {
		placed := false
		for i, c := range clusters {
			if daysBetween(c[len(c)-1], d) <= toleranceDays {
				clusters[i] = append(c, d)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []time.Time{d})
		}
	}
	return clusters
}

// priorityCluster returns the cluster holding the earliest date.
func priorityCluster(clusters [][]time.Time) []time.Time {
	var best []time.Time
	for _, c := range clusters {
		if best == nil || c[0].Before(best[0]) {
			best = c
		}
	}
	return best
}

// Schedule returns the suggested order date and the estimated arrival date.
// Dates are not clamped to today.
func (s scheduler) Schedule(dates []time.Time, supplierLeadDays int) (orderDate, arrival time.Time) {
	if len(dates) == 0 {
		return time.Time{}, time.Time{}
	}
	cluster := priorityCluster(clusterDates(dates, s.ToleranceDays))
	productionLead := s.DaysPerOrder * len(cluster)
	arrival = cluster[0].AddDate(0, 0, -productionLead)
	orderDate = arrival.AddDate(0, 0, -supplierLeadDays)
	return orderDate, arrival
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
