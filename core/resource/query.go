package resource

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/trezcool/sdoims/core"
)

// DefaultPageSize is the fixed number of records per list page.
const DefaultPageSize = 10

// Query holds the list parameters accepted by every resource list endpoint.
type Query struct {
	Search      string
	Page        int // 1-based; anything below 1 yields an empty page
	PageSize    int
	WithTrashed bool
	Scope       *int64 // parent id for nested resources
}

// ParseQuery reads `search`, `page` and `with_trashed` from v. Unknown parameters are ignored.
// A malformed page number is kept as an invalid page instead of failing the request.
func ParseQuery(v url.Values) Query {
	q := Query{Page: 1}
	q.Search = v.Get("search")
	if p := strings.TrimSpace(v.Get("page")); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		q.Page = n
	}
	q.WithTrashed, _ = strconv.ParseBool(v.Get("with_trashed"))
	q.Normalize()
	return q
}

// Normalize cleans the search term and pins the page size.
func (q *Query) Normalize() {
	q.Search = core.CleanString(q.Search)
	q.PageSize = DefaultPageSize
	if q.Page < 0 {
		q.Page = 0
	}
}

// Valid reports whether the query addresses an existing page number.
func (q Query) Valid() bool { return q.Page >= 1 }

// Offset of the first record on the page.
func (q Query) Offset() int {
	if !q.Valid() {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// Scoped returns a copy of q limited to the children of parentID.
func (q Query) Scoped(parentID int64) Query {
	q.Scope = &parentID
	return q
}
