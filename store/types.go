package store

import "context"

/*
Record is one entry fetched from a vector store.

Values is nil when the store returned no vector values, Metadata is nil when the record has none.
*/
type Record struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

/*
HasValues reports whether the record carries a non-empty vector.
*/
func (r Record) HasValues() bool {
	return len(r.Values) > 0
}

/*
Page is one page of record identifiers from a paginated listing.

Next is the continuation cursor; empty when there are no further pages.
*/
type Page struct {
	IDs  []string
	Next string
}

/*
Source is the narrow contract the ingestion pipeline needs from a vector store.
*/
type Source interface {
	// ListPage returns the page of identifiers that starts at cursor ("" for the first page).
	ListPage(ctx context.Context, namespace, cursor string, limit int) (Page, error)
	// Fetch returns the records for ids. Unknown ids are omitted.
	Fetch(ctx context.Context, namespace string, ids []string) ([]Record, error)
}
