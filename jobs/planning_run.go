package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/vic4or/sistemaMype-sub000/internal/jobs"
	"github.com/vic4or/sistemaMype-sub000/internal/planning"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

const (
	// TaskPlanningExecute runs the planning engine over a delivery window.
	TaskPlanningExecute = "planning:execute"

	dateLayout          = "2006-01-02"
	defaultHorizonDays  = 30
	defaultClaimTTL     = 24 * time.Hour
	planningTaskTimeout = 10 * time.Minute
)

// PlanningRunPayload selects the window of a planning run. Empty dates mean
// [today, today+horizon].
type PlanningRunPayload struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewPlanningRunTask builds a planning task for the queue.
func NewPlanningRunTask(payload PlanningRunPayload, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault), asynq.Timeout(planningTaskTimeout)}, opts...)
	return asynq.NewTask(TaskPlanningExecute, body, opts...), nil
}

// PlanExecutor runs the planning engine.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, in planning.ExecuteInput) (planning.ExecuteResult, error)
}

// WindowClaimer guards a window against being planned twice.
type WindowClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// PlanningRunJob executes queued planning runs.
type PlanningRunJob struct {
	Planner     PlanExecutor
	Claims      WindowClaimer
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	HorizonDays int
	ClaimTTL    time.Duration
	clock       func() time.Time
}

// NewPlanningRunJob wires dependencies for the planning handler.
func NewPlanningRunJob(planner PlanExecutor, claims WindowClaimer, logger *slog.Logger, metrics *jobmetrics.Metrics, horizonDays int) *PlanningRunJob {
	return &PlanningRunJob{
		Planner:     planner,
		Claims:      claims,
		Logger:      logger,
		Metrics:     metrics,
		HorizonDays: horizonDays,
		ClaimTTL:    defaultClaimTTL,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes planning tasks. A window already planned today is dropped;
// a failed run releases its claim so the retry can proceed.
func (j *PlanningRunJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Planner == nil {
		return errors.New("planning run: handler not configured")
	}
	var payload PlanningRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("planning run: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	now := j.now()
	start, end, err := j.window(payload, now)
	if err != nil {
		return fmt.Errorf("planning run: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskPlanningExecute)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("window_start", start.Format(dateLayout)),
		slog.String("window_end", end.Format(dateLayout)))

	scope, source := now.Format(dateLayout), planning.SourceScheduled
	if payload.RequestID != "" {
		scope, source = payload.RequestID, planning.SourceManual
	}
	key := shared.PlanningWindowKey(scope, start.Format(dateLayout), end.Format(dateLayout))
	if j.Claims != nil {
		ok, err := j.Claims.Claim(ctx, key, j.claimTTL())
		if err != nil {
			logger.Error("claim planning window", slog.Any("error", err))
			return err
		}
		if !ok {
			j.metrics().Duplicate(TaskPlanningExecute)
			logger.Info("planning window already processed", slog.String("key", key))
			return nil
		}
	}

	result, err := j.Planner.ExecutePlan(ctx, planning.ExecuteInput{Start: start, End: end, Source: source})
	if err != nil {
		if j.Claims != nil {
			if rerr := j.Claims.Release(ctx, key); rerr != nil {
				logger.Warn("release planning window", slog.Any("error", rerr))
			}
		}
		logger.Error("queued planning run", slog.String("source", string(source)), slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("queued planning run completed",
		slog.Int64("run_id", result.RunID),
		slog.String("source", string(source)),
		slog.Int("suggestions", result.Suggestions))
	return nil
}

func (j *PlanningRunJob) window(payload PlanningRunPayload, now time.Time) (time.Time, time.Time, error) {
	if payload.StartDate == "" && payload.EndDate == "" {
		horizon := j.HorizonDays
		if horizon <= 0 {
			horizon = defaultHorizonDays
		}
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, horizon), nil
	}
	start, err := time.Parse(dateLayout, payload.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", payload.StartDate)
	}
	end, err := time.Parse(dateLayout, payload.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", payload.EndDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date before start_date")
	}
	return start, end, nil
}

func (j *PlanningRunJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *PlanningRunJob) claimTTL() time.Duration {
	if j.ClaimTTL > 0 {
		return j.ClaimTTL
	}
	return defaultClaimTTL
}

func (j *PlanningRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPlanningExecute))
	}
	return slog.Default().With(slog.String("job", TaskPlanningExecute))
}

func (j *PlanningRunJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// EnqueuePlanningRun queues a manual planning run and returns its task id.
// The task id is derived from the window so a second request for a window
// still waiting in the queue is rejected; each request claims its own scope
// so operators can replan a window once the previous run finished. An
// archived task for the same window is removed and the enqueue retried once.
func (c *Client) EnqueuePlanningRun(ctx context.Context, start, end time.Time) (string, error) {
	window := start.Format(dateLayout) + ":" + end.Format(dateLayout)
	taskID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(TaskPlanningExecute+":"+window)).String()
	task, err := NewPlanningRunTask(PlanningRunPayload{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		RequestID: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{asynq.TaskID(taskID), asynq.MaxRetry(3)}
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) && c.clearFinished(taskID) {
		info, err = c.client.EnqueueContext(ctx, task, opts...)
	}
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return "", fmt.Errorf("planning run for %s already queued: %w", window, shared.ErrConflict)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue planning run: %w", err)
	}
	return info.ID, nil
}

// clearFinished deletes the task holding id when it can no longer run.
func (c *Client) clearFinished(id string) bool {
	if c.inspector == nil {
		return false
	}
	info, err := c.inspector.GetTaskInfo(QueueDefault, id)
	if err != nil || info == nil {
		return false
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false
	}
	return c.inspector.DeleteTask(QueueDefault, id) == nil
}
