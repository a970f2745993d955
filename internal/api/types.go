package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned for items the API does not know.
var ErrNotFound = errors.New("item not found")

// StatusError is a non-200 API response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.Code, e.URL, e.Body)
}

// Item represents an HN item (story, comment, job, poll).
type Item struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Parent      int    `json:"parent"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`

	// RawKids holds HN's ranked child IDs as received.
	RawKids json.RawMessage `json:"kids"`
}

// Kids decodes the child item IDs in HN's ranked order. It does not modify
// the item, so a shared *Item may be read from several goroutines.
func (it *Item) Kids() []int {
	if len(it.RawKids) == 0 {
		return nil
	}
	var kids []int
	_ = json.Unmarshal(it.RawKids, &kids)
	return kids
}

// KidsJSON returns the raw JSON for kids (for cache storage).
func (it *Item) KidsJSON() string {
	if len(it.RawKids) == 0 {
		return "[]"
	}
	return string(it.RawKids)
}

// Gone reports whether the item was deleted or killed.
func (it *Item) Gone() bool { return it.Deleted || it.Dead }
