package queue

type TaskType string

const (
	TaskTypeFeedbackReport TaskType = "feedback_report"
	TaskTypeSessionSweep   TaskType = "session_sweep"
)

// Task is a unit of background work put on the stream.
type Task struct {
	TaskType TaskType
	ReportID int64
	AppID    int64
	Kind     string
	TraceID  *string
	Attempt  int
}
