package models

// Category is a catalog section parsed from the catalog document index.
// DeclaredCount is the workflow count the index claims for the section;
// nil when the index entry omitted it.
type Category struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	DeclaredCount *int   `json:"declared_count,omitempty"`
}
