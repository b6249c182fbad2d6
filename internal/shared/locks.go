package shared

import "fmt"

// PlanningWindowKey builds the redis key that lets a planning window run once
// per scope. Scheduled runs use the current day as scope.
func PlanningWindowKey(scope, start, end string) string {
	return fmt.Sprintf("planning:window:%s:%s:%s:lock", scope, start, end)
}
