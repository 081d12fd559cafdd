package resource

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func pageNumbers(links []Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Label)
	}
	return out
}

func TestPaginate(t *testing.T) {
	records := func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	tests := []struct {
		name      string
		records   []int
		total     int
		page      int
		wantFrom  int
		wantTo    int
		wantLast  int
		wantLinks []string
	}{
		{
			name:      "first page",
			records:   records(10),
			total:     25,
			page:      1,
			wantFrom:  1,
			wantTo:    10,
			wantLast:  3,
			wantLinks: []string{prevLabel, "1", "2", "3", nextLabel},
		},
		{
			name:      "last partial page",
			records:   records(5),
			total:     25,
			page:      3,
			wantFrom:  21,
			wantTo:    25,
			wantLast:  3,
			wantLinks: []string{prevLabel, "1", "2", "3", nextLabel},
		},
		{
			name:      "empty result",
			records:   nil,
			total:     0,
			page:      1,
			wantLast:  1,
			wantLinks: []string{prevLabel, "1", nextLabel},
		},
		{
			name:      "page past the end",
			records:   []int{},
			total:     25,
			page:      9,
			wantLast:  3,
			wantLinks: []string{prevLabel, "1", "2", "3", nextLabel},
		},
		{
			name:      "invalid page",
			records:   []int{},
			total:     25,
			page:      0,
			wantLast:  3,
			wantLinks: []string{prevLabel, "1", "2", "3", nextLabel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(tt.records, tt.total, tt.page, DefaultPageSize)

			assert.NotNil(t, p.Data)
			assert.Equal(t, tt.wantFrom, p.From)
			assert.Equal(t, tt.wantTo, p.To)
			assert.Equal(t, tt.total, p.Total)
			assert.Equal(t, tt.wantLast, p.LastPage)
			assert.Equal(t, DefaultPageSize, p.PerPage)
			assert.Equal(t, tt.page, p.CurrentPage)
			if diff := cmp.Diff(tt.wantLinks, pageNumbers(p.Links)); diff != "" {
				t.Errorf("links mismatch (-want +got):\n%s", diff)
			}

			// from <= to <= total and to - from + 1 == len(data)
			if len(p.Data) > 0 {
				assert.LessOrEqual(t, p.From, p.To)
				assert.LessOrEqual(t, p.To, p.Total)
				assert.Equal(t, len(p.Data), p.To-p.From+1)
			} else {
				assert.Zero(t, p.From)
				assert.Zero(t, p.To)
			}
		})
	}
}

func TestPaginate_links(t *testing.T) {
	p := Paginate([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 25, 2, DefaultPageSize)

	prev, next := p.Links[0], p.Links[len(p.Links)-1]
	if assert.NotNil(t, prev.Page) {
		assert.Equal(t, 1, *prev.Page)
	}
	if assert.NotNil(t, next.Page) {
		assert.Equal(t, 3, *next.Page)
	}
	for _, l := range p.Links[1 : len(p.Links)-1] {
		assert.Equal(t, l.Label == "2", l.Active, "link %s", l.Label)
	}

	first := Paginate([]int{1}, 1, 1, DefaultPageSize)
	assert.Nil(t, first.Links[0].Page, "no previous page")
	assert.Nil(t, first.Links[len(first.Links)-1].Page, "no next page")
}

func TestWindow(t *testing.T) {
	tests := []struct {
		current, last int
		want          []int
	}{
		{1, 5, []int{1, 2, 3, 4, 5}},
		{1, 20, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 0, 19, 20}},
		{10, 20, []int{1, 2, 0, 7, 8, 9, 10, 11, 12, 13, 0, 19, 20}},
		{20, 20, []int{1, 2, 0, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, window(tt.current, tt.last)); diff != "" {
			t.Errorf("window(%d, %d) mismatch (-want +got):\n%s", tt.current, tt.last, diff)
		}
	}
}

func TestPaginate_isPure(t *testing.T) {
	a := Paginate([]string{"a"}, 31, 4, DefaultPageSize)
	b := Paginate([]string{"a"}, 31, 4, DefaultPageSize)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Paginate() is not deterministic:\n%s", diff)
	}
}
