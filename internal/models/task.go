package models

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the storage format for task dates.
const DateLayout = "2006-01-02"

// displayDateLayout is the day-first format some task entry forms produce.
const displayDateLayout = "02.01.2006"

// TaskID identifies a task for the lifetime of the store.
type TaskID int64

func (id TaskID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTaskID parses a decimal task identifier.
func ParseTaskID(s string) (TaskID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return TaskID(n), nil
}

// Task represents a single user-entered item.
type Task struct {
	ID        TaskID `json:"id"`
	Text      string `json:"text"`
	Date      string `json:"date"`
	Tag       string `json:"tag"`
	Completed bool   `json:"completed"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return &ValidationError{Field: "text", Reason: "is required"}
	}

	if t.Date != "" {
		if _, err := time.Parse(DateLayout, t.Date); err != nil {
			return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
	}

	return nil
}

// IsOverdue returns true if the task has a due date before today and is not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Completed || t.Date == "" {
		return false
	}
	return t.Date < now.Format(DateLayout)
}

// NormalizeDate converts user input into the storage date format.
// Empty input means "no due date". Both YYYY-MM-DD and dd.MM.yyyy are accepted.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	for _, layout := range []string{DateLayout, displayDateLayout} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(DateLayout), nil
		}
	}

	return "", &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD or DD.MM.YYYY"}
}
