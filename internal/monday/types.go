package monday

import "encoding/json"

// Board is a remote Monday.com board.
type Board struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Workspace *struct {
		ID string `json:"id"`
	} `json:"workspace"`
}

// ColumnValue is one cell on a remote item. Value carries the structured
// JSON payload when the column has one; Text is the display text.
type ColumnValue struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Value json.RawMessage `json:"value"`
}

// Item is a remote board item (a project) or subitem (a task).
type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Board *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"board"`
	ColumnValues []ColumnValue `json:"column_values"`
	Subitems     []Item        `json:"subitems"`
}

// Column returns the column value with the given ID, or nil.
func (it *Item) Column(id string) *ColumnValue {
	for i := range it.ColumnValues {
		if it.ColumnValues[i].ID == id {
			return &it.ColumnValues[i]
		}
	}
	return nil
}

// itemsPage is one page of a cursor-paginated item fetch.
type itemsPage struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"items"`
}
