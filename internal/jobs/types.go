package jobs

import (
	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeTemplatePoll = "template:poll"
)

// Queue names
const (
	QueueDefault = "default"
)

// TemplatePollInterval is the cron-style schedule for the template status
// poll. Gateway review typically takes hours, so 30 minutes is plenty.
const TemplatePollInterval = "@every 30m"

// NewTemplatePollTask creates the periodic template status poll task.
func NewTemplatePollTask() *asynq.Task {
	return asynq.NewTask(TypeTemplatePoll, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
