package catalog

import (
	"encoding/json"
	"fmt"
)

// The catalog service wraps results in one of three envelopes depending on
// which query produced them:
//
//	{"data":{"books":[...]}}                                  batch by ids
//	{"data":{"books_by_pk":{...}}}                            single by pk
//	{"data":{"search":{"results":{"hits":[{"document":...}]}}}}  search
//
// normalizeEnvelope folds all three into a flat []Record. An envelope that
// matches none of the known shapes normalizes to an empty slice rather than
// an error: the caller treats it as "no records resolved".
type envelope struct {
	Data struct {
		Books     []Record `json:"books"`
		BooksByPK *Record  `json:"books_by_pk"`
		Search    *struct {
			Results struct {
				Hits []struct {
					Document Record `json:"document"`
				} `json:"hits"`
			} `json:"results"`
		} `json:"search"`
	} `json:"data"`
}

// normalizeEnvelope decodes a catalog response body and flattens whichever
// envelope shape it carries into records.
func normalizeEnvelope(body []byte) ([]Record, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode catalog envelope: %w", err)
	}

	switch {
	case len(env.Data.Books) > 0:
		return env.Data.Books, nil

	case env.Data.BooksByPK != nil:
		return []Record{*env.Data.BooksByPK}, nil

	case env.Data.Search != nil:
		hits := env.Data.Search.Results.Hits
		records := make([]Record, 0, len(hits))
		for _, hit := range hits {
			records = append(records, hit.Document)
		}
		return records, nil

	default:
		// Unknown or empty envelope: no records, not an error.
		return nil, nil
	}
}
