// Package models holds the citizen directory record used by link resolution.
package models

import (
	"time"

	id "civicdesk/pkg/domain"
)

// Citizen is a directory record. The link resolver looks citizens up by
// document number (exact) or by name plus birth date (fuzzy name, exact
// date); the engine itself never reads citizen fields.
type Citizen struct {
	ID             id.CitizenID
	Name           string
	DocumentNumber string // national document, digits only
	BirthDate      *time.Time
	Email          string
	Phone          string
	CreatedAt      time.Time
}

// NormalizeDocument strips everything but digits so lookups match however
// the form was filled in.
func NormalizeDocument(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			out = append(out, raw[i])
		}
	}
	return string(out)
}
