package jobs

import (
	"github.com/hibiken/asynq"

	jobmetrics "github.com/vic4or/sistemaMype-sub000/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScheduledPlanning registers the nightly planning run over the configured
// horizon. An empty spec disables it.
func ScheduledPlanning(spec string) ([]CronRegistration, error) {
	if spec == "" {
		return nil, nil
	}
	task, err := NewPlanningRunTask(PlanningRunPayload{})
	if err != nil {
		return nil, err
	}
	return []CronRegistration{{Spec: spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}}}, nil
}
