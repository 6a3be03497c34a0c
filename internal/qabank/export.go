package qabank

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportCSV writes up to limit entries to w, most used first.
func (s *Store) ExportCSV(w io.Writer, limit int) error {
	entries, err := s.All(limit)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"id", "question", "answer", "job_title", "company", "created_at", "last_used", "times_used", "success_count"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.Question,
			e.Answer,
			e.JobTitle,
			e.Company,
			formatTime(e.CreatedAt),
			formatTime(e.LastUsed),
			strconv.Itoa(e.TimesUsed),
			strconv.Itoa(e.SuccessCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
