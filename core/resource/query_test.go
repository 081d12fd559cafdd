package resource

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  Query
		valid bool
	}{
		{
			name:  "defaults",
			query: url.Values{},
			want:  Query{Page: 1, PageSize: DefaultPageSize},
			valid: true,
		},
		{
			name:  "search is trimmed",
			query: url.Values{"search": {"  North  "}, "page": {"2"}},
			want:  Query{Search: "North", Page: 2, PageSize: DefaultPageSize},
			valid: true,
		},
		{
			name:  "malformed page",
			query: url.Values{"page": {"abc"}},
			want:  Query{Page: 0, PageSize: DefaultPageSize},
		},
		{
			name:  "negative page",
			query: url.Values{"page": {"-4"}},
			want:  Query{Page: 0, PageSize: DefaultPageSize},
		},
		{
			name:  "with trashed and unknown params",
			query: url.Values{"with_trashed": {"true"}, "per_page": {"100"}, "sort": {"name"}},
			want:  Query{Page: 1, PageSize: DefaultPageSize, WithTrashed: true},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.query)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, got.Valid())
		})
	}
}

func TestQuery_Offset(t *testing.T) {
	q := Query{Page: 3, PageSize: DefaultPageSize}
	assert.Equal(t, 20, q.Offset())

	q.Page = 0
	assert.Equal(t, 0, q.Offset())
}

func TestQuery_Scoped(t *testing.T) {
	q := Query{Page: 1, PageSize: DefaultPageSize}
	scoped := q.Scoped(7)

	assert.Nil(t, q.Scope)
	if assert.NotNil(t, scoped.Scope) {
		assert.Equal(t, int64(7), *scoped.Scope)
	}
}
