package aggregate

import (
	"strconv"
	"strings"

	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// Accumulator holds the aggregate statistics over a stream of merged
// books. It is built incrementally by Fold and returned once; callers must
// not mutate it outside the fold.
type Accumulator struct {
	TotalBooks int `json:"totalBooks"`

	// TotalPages counts pages of READ books only.
	TotalPages int `json:"totalPages"`

	// AuthorCounts counts READ books per author name. Only the first
	// author of a book is credited; co-author attribution is unresolved
	// upstream behavior, deliberately left as-is.
	AuthorCounts map[string]int `json:"authorCounts"`

	// StatusCounts counts books per normalized status ("unknown" when the
	// ownership service reports none).
	StatusCounts map[string]int `json:"statusCounts"`

	// RatingDistribution counts rated books per formatted rating value.
	// Ratings are independent of READ status: a rated want-to-read book
	// still counts here.
	RatingDistribution map[string]int `json:"ratingDistribution"`

	TotalRatedBooks int     `json:"totalRatedBooks"`
	AverageRating   float64 `json:"averageRating"`

	ratingSum float64
}

// NewAccumulator returns an empty accumulator with initialized maps.
func NewAccumulator() Accumulator {
	return Accumulator{
		AuthorCounts:       make(map[string]int),
		StatusCounts:       make(map[string]int),
		RatingDistribution: make(map[string]int),
	}
}

// Fold applies one merged book to the accumulator and returns the updated
// value. The update is associative per book, so the fold order does not
// affect the final statistics.
func (a Accumulator) Fold(book MergedBook) Accumulator {
	a.TotalBooks++
	a.StatusCounts[statusKey(book.Relationship.Status)]++

	// Pages and author credit only accrue for finished books.
	if book.Relationship.Status == ownership.StatusRead {
		a.TotalPages += book.PageCount
		if book.Author.Name != "" {
			a.AuthorCounts[book.Author.Name]++
		}
	}

	// Rating facts are independent of status.
	if book.Relationship.Rating != nil {
		rating := *book.Relationship.Rating
		a.RatingDistribution[formatRating(rating)]++
		a.TotalRatedBooks++
		a.ratingSum += rating
		a.AverageRating = a.ratingSum / float64(a.TotalRatedBooks)
	}

	return a
}

// statusKey normalizes a status for counting: lower-cased, "unknown" when
// the service reported none.
func statusKey(status ownership.Status) string {
	if status == "" {
		return "unknown"
	}
	return strings.ToLower(string(status))
}

// formatRating renders a rating as a distribution key, e.g. 4.5 -> "4.5".
func formatRating(rating float64) string {
	return strconv.FormatFloat(rating, 'f', -1, 64)
}
