package resource

const (
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColDeletedAt = "deleted_at"
)

// Relation is a searchable column on a related table reached through a foreign key of the listed table.
type Relation struct {
	Table      string // related table
	ForeignKey string // column of the listed table holding the related id
	Column     string // column of the related table matched against the search term
}

// Table describes how a resource is stored and searched.
type Table struct {
	Name string
	// Columns are the writable columns; id and timestamps are managed by the store.
	Columns []string
	// Search columns are matched case-insensitively as substrings; Via extends the search to related rows.
	Search      []string
	Via         []Relation
	ScopeColumn string
	SoftDelete  bool
	OldestFirst bool
	// Unique lists the column sets backed by a unique index (soft-deleted rows included).
	Unique [][]string
}

// AllColumns lists every column selected when reading a row.
func (t Table) AllColumns() []string {
	cols := make([]string, 0, len(t.Columns)+4)
	cols = append(cols, ColID)
	cols = append(cols, t.Columns...)
	cols = append(cols, ColCreatedAt, ColUpdatedAt)
	if t.SoftDelete {
		cols = append(cols, ColDeletedAt)
	}
	return cols
}

// HasColumn reports whether col is a column of the table.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.AllColumns() {
		if c == col {
			return true
		}
	}
	return false
}
