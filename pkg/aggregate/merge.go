package aggregate

import (
	"github.com/readshelf/shelf-aggregator/pkg/catalog"
	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// MergedBook is the unified view combining one ownership entry with its
// resolved catalog record. Display fields are a deterministic function of
// the catalog record and the entry's selected edition.
type MergedBook struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ReleaseDate string            `json:"releaseDate"`
	Cover       catalog.Cover     `json:"cover"`
	Author      catalog.Author    `json:"author"`
	Series      []catalog.Series  `json:"series"`
	Editions    []catalog.Edition `json:"editions"`

	// PageCount is the selected edition's page count when one applies,
	// otherwise the record's own; 0 when neither is known.
	PageCount int `json:"pageCount"`

	Relationship ownership.Relationship `json:"userRelationship"`
}

// Merge combines an ownership entry with its catalog record. It returns nil
// when record is nil: an entry whose catalog data could not be resolved
// contributes to neither the book list nor the statistics, rather than
// appearing with blank fields.
//
// When the entry's selected edition is still present in the catalog
// snapshot, the edition overrides title, cover, and page count. An edition
// with a nil page count never overrides the record's own. A selected
// edition that has disappeared from the snapshot falls back to the record's
// own display fields; the weak reference stays valid.
func Merge(entry ownership.Entry, record *catalog.Record) *MergedBook {
	if record == nil {
		return nil
	}

	book := &MergedBook{
		ID:           entry.ID,
		Title:        record.Title,
		Description:  record.Description,
		ReleaseDate:  record.ReleaseDate,
		Cover:        record.Cover,
		Author:       record.Author,
		Series:       record.SeriesList(),
		Editions:     record.Editions,
		PageCount:    record.PageCount(),
		Relationship: entry.Relationship,
	}

	if edition := record.FindEdition(entry.Relationship.SelectedEditionID); edition != nil {
		book.Title = edition.Title
		if edition.CoverOverride != nil {
			book.Cover = *edition.CoverOverride
		}
		if edition.Pages != nil {
			book.PageCount = *edition.Pages
		}
	}

	return book
}
