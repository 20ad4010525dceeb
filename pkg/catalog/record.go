// Package catalog provides the client for the third-party bibliographic
// catalog service, including batch resolution, response envelope
// normalization, retry with backoff, and throttle handling.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// flexID decodes an identifier that the catalog service serializes either
// as a JSON number (batch and by-pk queries) or as a string (search hit
// documents). All identifiers are normalized to strings.
type flexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// String returns the normalized identifier.
func (id flexID) String() string {
	return string(id)
}

// Cover is a cover image reference.
type Cover struct {
	URL string `json:"url"`
}

// Author is the bibliographic author record. The catalog may omit any
// field; missing fields default to empty strings.
type Author struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Biography string `json:"biography"`
}

// Series identifies a series a book belongs to.
type Series struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

// Edition is an alternate published version of a book. It belongs to
// exactly one Record and may override the record's display fields when a
// user has selected it.
type Edition struct {
	ID     flexID `json:"id"`
	BookID flexID `json:"bookId"`
	Title  string `json:"title"`

	// Pages is nil when the catalog does not know the edition's length.
	// A nil Pages never overrides the record's own page count.
	Pages *int `json:"pages"`

	CoverOverride *Cover `json:"coverOverride"`
	Language      string `json:"language"`
}

// Record is the bibliographic snapshot for one book, keyed by the same
// identifier the ownership service uses. Records are read-only and may be
// stale or incomplete.
type Record struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ReleaseDate string `json:"releaseDate"`

	// Pages is nil when the catalog reports no default page count.
	Pages *int `json:"pages"`

	Cover  Cover  `json:"cover"`
	Author Author `json:"author"`

	// BookSeries is the explicit series association. FeaturedSeries is a
	// weaker hint present on some query shapes; it is only consulted when
	// BookSeries is absent.
	BookSeries     []Series `json:"book_series"`
	FeaturedSeries []Series `json:"featured_series"`

	Editions []Edition `json:"editions"`
}

// PageCount returns the record's own page count, or 0 when unknown.
func (r Record) PageCount() int {
	if r.Pages == nil {
		return 0
	}
	return *r.Pages
}

// SeriesList resolves the record's series memberships: the explicit
// book-series association wins; the featured-series hint is the fallback.
// Both shapes occur in the wild depending on which query produced the
// snapshot.
func (r Record) SeriesList() []Series {
	if len(r.BookSeries) > 0 {
		return r.BookSeries
	}
	return r.FeaturedSeries
}

// FindEdition returns the edition with the given identifier, or nil when
// the identifier is empty or no longer present in this snapshot.
func (r Record) FindEdition(editionID string) *Edition {
	if editionID == "" {
		return nil
	}
	for i := range r.Editions {
		if r.Editions[i].ID.String() == editionID {
			return &r.Editions[i]
		}
	}
	return nil
}
