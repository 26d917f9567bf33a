/*
Package randx provides identifiers used to correlate log records and transcript entries.
*/
package randx

import (
	"github.com/google/uuid"
)

// ConnectionID generates a UUID v4 string identifying a single connection attempt.
// Every dial gets a fresh ID so events from a replaced socket can be told apart.
func ConnectionID() string {
	return uuid.New().String()
}

// EntryID generates a UUID v7 string for a transcript entry. Version 7 IDs sort by
// creation time, which keeps entries orderable by ID alone.
func EntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// IsValidID reports whether s parses as a UUID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
