package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"eventsphere/models"
)

var attendeeHeader = []string{"Event ID", "Username", "Email", "Registered At"}

func WriteAttendeesCSV(w io.Writer, attendees []models.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(attendeeHeader); err != nil {
		return err
	}
	for _, a := range attendees {
		row := []string{a.EventID, a.Username, a.Email, a.RegisteredAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AttendeesFilename is the download name of an event's attendee export.
func AttendeesFilename(eventID string) string {
	return fmt.Sprintf("attendees_%s.csv", eventID)
}

// WriteAttendeesFile writes the report to dir/attendees_<eventID>_<unix>.csv and returns its path.
func WriteAttendeesFile(dir, eventID string, attendees []models.Attendee, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("attendees_%s_%d.csv", filepath.Base(eventID), now.Unix()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteAttendeesCSV(f, attendees); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
