package api

import (
	"context"
	"fmt"
)

// AlgoliaItem is one node of the Algolia item tree: the item plus its whole
// reply subtree.
type AlgoliaItem struct {
	ID         int           `json:"id"`
	CreatedAtI int64         `json:"created_at_i"`
	Type       string        `json:"type"`
	Author     string        `json:"author"`
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	Text       string        `json:"text"`
	Points     int           `json:"points"`
	ParentID   int           `json:"parent_id"`
	StoryID    int           `json:"story_id"`
	Children   []AlgoliaItem `json:"children"`
}

// Gone reports whether the node is a deleted comment, which Algolia keeps
// in the tree with neither author nor text.
func (a AlgoliaItem) Gone() bool { return a.Author == "" && a.Text == "" }

// ToItem converts a tree node to an api.Item, dropping its subtree.
func (a AlgoliaItem) ToItem() *Item {
	return &Item{
		ID:      a.ID,
		Type:    a.Type,
		By:      a.Author,
		Time:    a.CreatedAtI,
		Text:    a.Text,
		Parent:  a.ParentID,
		URL:     a.URL,
		Title:   a.Title,
		Score:   a.Points,
		Deleted: a.Gone(),
	}
}

// GetItemTree fetches an item with its full reply tree via Algolia.
func (c *Client) GetItemTree(ctx context.Context, id int) (*AlgoliaItem, error) {
	url := fmt.Sprintf("%s/items/%d", c.algoliaURL, id)
	var tree AlgoliaItem
	if err := c.get(ctx, url, &tree); err != nil {
		return nil, fmt.Errorf("fetching item tree %d: %w", id, err)
	}
	return &tree, nil
}
