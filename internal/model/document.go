package model

const DefaultTitle = "Untitled Document.md"

type Document struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	UpdatedOn int64  `json:"updatedOn,omitempty"`
}

// DocumentProps overrides the defaults of a newly created document. Nil
// fields keep the default.
type DocumentProps struct {
	ID    *int64
	Title *string
	Body  *string
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// SameContent compares id, title and body.
func (d *Document) SameContent(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.ID == other.ID && d.Title == other.Title && d.Body == other.Body
}
