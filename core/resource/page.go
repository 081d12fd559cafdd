package resource

import (
	"strconv"
)

const (
	prevLabel = "« Previous"
	nextLabel = "Next »"
	dotsLabel = "..."

	onEachSide = 3
)

// Link is one entry of a page's navigation; Page is nil when the link is disabled.
type Link struct {
	Label  string `json:"label"`
	Page   *int   `json:"page"`
	Active bool   `json:"active"`
}

// Page is the wire shape of a list response.
type Page[T any] struct {
	Data        []T    `json:"data"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Total       int    `json:"total"`
	PerPage     int    `json:"per_page"`
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page"`
	Links       []Link `json:"links"`
}

// Paginate wraps one page of records. It is pure: the same input always renders the same links.
// from and to are 1-based positions in the full result; both are 0 for an empty page.
func Paginate[T any](records []T, total, page, pageSize int) Page[T] {
	if records == nil {
		records = []T{}
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}

	p := Page[T]{
		Data:        records,
		Total:       total,
		PerPage:     pageSize,
		CurrentPage: page,
		LastPage:    lastPage,
	}
	if len(records) > 0 && page >= 1 {
		p.From = (page-1)*pageSize + 1
		p.To = p.From + len(records) - 1
	}
	p.Links = buildLinks(page, lastPage)
	return p
}

func buildLinks(current, last int) []Link {
	links := make([]Link, 0, 16)

	prev := Link{Label: prevLabel}
	if current > 1 && current <= last+1 {
		prev.Page = intPtr(current - 1)
	}
	links = append(links, prev)

	for _, n := range window(current, last) {
		if n == 0 {
			links = append(links, Link{Label: dotsLabel})
			continue
		}
		links = append(links, Link{Label: strconv.Itoa(n), Page: intPtr(n), Active: n == current})
	}

	next := Link{Label: nextLabel}
	if current >= 1 && current < last {
		next.Page = intPtr(current + 1)
	}
	return append(links, next)
}

// window lists the page numbers to render, 0 marking a gap.
// Small paginators show every page; larger ones keep the first and last two pages
// and onEachSide pages around the current one.
func window(current, last int) []int {
	if last < onEachSide*2+8 {
		return pageRange(1, last)
	}

	w := onEachSide + 4
	var out []int
	switch {
	case current <= w:
		out = append(out, pageRange(1, w+onEachSide)...)
		out = append(out, 0)
		out = append(out, pageRange(last-1, last)...)
	case current > last-w:
		out = append(out, pageRange(1, 2)...)
		out = append(out, 0)
		out = append(out, pageRange(last-(w+onEachSide-1), last)...)
	default:
		out = append(out, pageRange(1, 2)...)
		out = append(out, 0)
		out = append(out, pageRange(current-onEachSide, current+onEachSide)...)
		out = append(out, 0)
		out = append(out, pageRange(last-1, last)...)
	}
	return out
}

func pageRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func intPtr(i int) *int { return &i }
