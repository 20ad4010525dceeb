// Package ownership provides the client for the reading-list ownership
// service: the system of record for which books a user has added to their
// list and the user-specific facts about that relationship.
package ownership

// Status is the user's reading status for a book.
type Status string

const (
	// StatusWantToRead marks a book the user plans to read.
	StatusWantToRead Status = "WANT_TO_READ"

	// StatusReading marks a book the user is currently reading.
	StatusReading Status = "READING"

	// StatusRead marks a book the user has finished.
	StatusRead Status = "READ"

	// StatusUnknown is reported when the service has no status for the entry.
	StatusUnknown Status = "UNKNOWN"
)

// Relationship holds the user-specific facts about a book on their list.
type Relationship struct {
	Status Status `json:"status"`

	// Rating is nil when the user has not rated the book.
	Rating *float64 `json:"rating"`

	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	// Progress is nil when the service reports no reading progress.
	Progress *float64 `json:"progress"`

	// SelectedEditionID is a weak reference to an edition of the book.
	// The referenced edition may disappear from a newer catalog snapshot
	// without invalidating the entry.
	SelectedEditionID string `json:"selectedEditionId"`
}

// Entry is one row from the ownership service's listing endpoint.
// Entries are immutable; identity is ID.
type Entry struct {
	ID           string       `json:"id"`
	Relationship Relationship `json:"userRelationship"`
}
