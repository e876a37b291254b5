package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// The store has changed its response envelopes across API versions. Everything below turns
// the shapes seen so far into Page and Record so that nothing downstream branches on versions.

type listEnvelope struct {
	Vectors    json.RawMessage `json:"vectors"`
	IDs        []string        `json:"ids"`
	Pagination *struct {
		Next string `json:"next"`
	} `json:"pagination"`
	Next            string `json:"next"`
	PaginationToken string `json:"paginationToken"`
}

type fetchEnvelope struct {
	Vectors json.RawMessage `json:"vectors"`
	Records json.RawMessage `json:"records"`
}

type rawRecord struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

/*
DecodeListPage normalizes a listing response into a Page.

Accepted shapes: "vectors" as an array of {"id": ...} objects or of plain strings, or a legacy
"ids" array; the cursor is read from "pagination.next", "next" or "paginationToken".
*/
func DecodeListPage(data []byte) (Page, error) {
	var env listEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var page Page
	switch {
	case isPresent(env.Vectors):
		ids, err := decodeIDList(env.Vectors)
		if err != nil {
			return Page{}, err
		}
		page.IDs = ids
	case env.IDs != nil:
		page.IDs = env.IDs
	}

	switch {
	case env.Pagination != nil && env.Pagination.Next != "":
		page.Next = env.Pagination.Next
	case env.Next != "":
		page.Next = env.Next
	case env.PaginationToken != "":
		page.Next = env.PaginationToken
	}
	return page, nil
}

func decodeIDList(raw json.RawMessage) ([]string, error) {
	var objects []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		ids := make([]string, 0, len(objects))
		for _, o := range objects {
			if o.ID != "" {
				ids = append(ids, o.ID)
			}
		}
		return ids, nil
	}

	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}
	return nil, fmt.Errorf("%w: unrecognised id list", ErrMalformedResponse)
}

/*
DecodeFetch normalizes a batch-fetch response into records.

Accepted shapes: "vectors" (or "records") as an object keyed by id, or as an array of records.
Keyed entries without an "id" take the key. Missing or empty "values" yield a record with nil
Values. Keyed results are returned sorted by id.
*/
func DecodeFetch(data []byte) ([]Record, error) {
	var env fetchEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw := env.Vectors
	if !isPresent(raw) {
		raw = env.Records
	}
	if !isPresent(raw) {
		return []Record{}, nil
	}

	var keyed map[string]rawRecord
	if err := json.Unmarshal(raw, &keyed); err == nil {
		records := make([]Record, 0, len(keyed))
		for key, r := range keyed {
			if r.ID == "" {
				r.ID = key
			}
			records = append(records, r.toRecord())
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].ID < records[j].ID
		})
		return records, nil
	}

	var list []rawRecord
	if err := json.Unmarshal(raw, &list); err == nil {
		records := make([]Record, 0, len(list))
		for _, r := range list {
			records = append(records, r.toRecord())
		}
		return records, nil
	}
	return nil, fmt.Errorf("%w: unrecognised record set", ErrMalformedResponse)
}

func (r rawRecord) toRecord() Record {
	rec := Record{ID: r.ID, Metadata: r.Metadata}
	if len(r.Values) > 0 {
		rec.Values = r.Values
	}
	return rec
}

/*
orderByIDs puts records in the order of ids; records for ids not requested go last
*/
func orderByIDs(records []Record, ids []string) []Record {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := pos[id]; !seen {
			pos[id] = i
		}
	}
	rank := func(id string) int {
		if p, ok := pos[id]; ok {
			return p
		}
		return len(ids)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return rank(records[i].ID) < rank(records[j].ID)
	})
	return records
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
