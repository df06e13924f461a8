package view

import (
	"strings"
	"time"

	"taskbook/internal/models"
)

// Label composes the list-row text for a task, e.g. "Buy milk  ⏰ 01.05.2024  🏷 Shopping".
func Label(t models.Task) string {
	var b strings.Builder
	b.WriteString(t.Text)
	if t.Date != "" {
		b.WriteString("  ⏰ ")
		b.WriteString(DisplayDate(t.Date))
	}
	if t.Tag != "" {
		b.WriteString("  🏷 ")
		b.WriteString(t.Tag)
	}
	return b.String()
}

// CalendarLine composes the entry shown for a task in a day's agenda.
func CalendarLine(t models.Task) string {
	return "📌 " + t.Text + " [" + t.Tag + "]"
}

// DisplayDate formats an ISO date as dd.MM.yyyy. Other input is returned as is.
func DisplayDate(date string) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("02.01.2006")
}
