package queue

import (
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Stream entry fields.
const (
	fieldTaskType  = "task_type"
	fieldReportID  = "report_id"
	fieldAppID     = "app_id"
	fieldKind      = "kind"
	fieldTraceID   = "trace_id"
	fieldAttempt   = "attempt"
	fieldLastError = "last_error"
	fieldError     = "error"
	fieldFailedAt  = "failed_at"
	fieldConsumer  = "consumer"
)

// Message is a stream entry decoded back into a task, plus its delivery
// metadata.
type Message struct {
	ID       string
	TaskType TaskType
	ReportID *int64
	AppID    *int64
	Kind     string
	Attempt  int
	TraceID  string
	Raw      redis.XMessage
}

// Task converts the message back into the task that produced it.
func (m Message) Task() Task {
	task := Task{TaskType: m.TaskType, Kind: m.Kind, Attempt: m.Attempt}
	if m.ReportID != nil {
		task.ReportID = *m.ReportID
	}
	if m.AppID != nil {
		task.AppID = *m.AppID
	}
	if m.TraceID != "" {
		task.TraceID = &m.TraceID
	}
	return task
}

// fieldReader decodes stream values and keeps the first error.
type fieldReader struct {
	values map[string]any
	err    error
}

func (r *fieldReader) str(key string) string {
	raw, ok := r.values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func (r *fieldReader) id(key string) *int64 {
	s := r.str(key)
	if s == "" || r.err != nil {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("parsing %s: %w", key, err)
		return nil
	}
	return &n
}

func (r *fieldReader) count(key string) int {
	s := r.str(key)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("parsing %s: %w", key, err)
		return 0
	}
	return n
}

// ParseMessage decodes a stream entry. Entries written before task types
// existed carry only a report id and are read as feedback reports.
func ParseMessage(msg redis.XMessage) (Message, error) {
	r := &fieldReader{values: msg.Values}
	parsed := Message{
		ID:       msg.ID,
		TaskType: TaskType(r.str(fieldTaskType)),
		ReportID: r.id(fieldReportID),
		AppID:    r.id(fieldAppID),
		Kind:     r.str(fieldKind),
		TraceID:  r.str(fieldTraceID),
		Attempt:  r.count(fieldAttempt),
		Raw:      msg,
	}
	if r.err != nil {
		return Message{}, r.err
	}
	if parsed.Attempt <= 0 {
		parsed.Attempt = 1
	}

	if parsed.TaskType == "" && parsed.ReportID != nil {
		parsed.TaskType = TaskTypeFeedbackReport
	}

	switch parsed.TaskType {
	case TaskTypeFeedbackReport:
		if parsed.ReportID == nil {
			return Message{}, fmt.Errorf("missing %s", fieldReportID)
		}
	case TaskTypeSessionSweep:
	case "":
		return Message{}, fmt.Errorf("missing %s", fieldTaskType)
	default:
		return Message{}, fmt.Errorf("unknown %s %q", fieldTaskType, parsed.TaskType)
	}

	return parsed, nil
}

func taskValues(task Task) map[string]any {
	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	if task.TaskType == "" {
		task.TaskType = TaskTypeFeedbackReport
	}

	values := map[string]any{
		fieldTaskType: string(task.TaskType),
		fieldAttempt:  task.Attempt,
	}
	if task.ReportID != 0 {
		values[fieldReportID] = task.ReportID
	}
	if task.AppID != 0 {
		values[fieldAppID] = task.AppID
	}
	if task.Kind != "" {
		values[fieldKind] = task.Kind
	}
	if task.TraceID != nil && *task.TraceID != "" {
		values[fieldTraceID] = *task.TraceID
	}
	return values
}

func messageValues(msg Message, attempt int) map[string]any {
	task := msg.Task()
	task.Attempt = attempt
	return taskValues(task)
}
