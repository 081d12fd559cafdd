package resource

import (
	"context"

	"github.com/pkg/errors"
)

// MaxOptions caps the choices returned for one form select.
const MaxOptions = 1000

// Option is a select choice offered by create and edit forms.
type Option struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// OptionsOf lists up to MaxOptions live records of repo as select choices, optionally scoped to a parent.
func OptionsOf[T Record](ctx context.Context, repo Repository[T], label func(T) string, scope ...int64) ([]Option, error) {
	q := Query{Page: 1, PageSize: MaxOptions}
	if len(scope) > 0 {
		q = q.Scoped(scope[0])
	}
	records, _, err := repo.List(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "listing options")
	}

	opts := make([]Option, 0, len(records))
	for _, rec := range records {
		opts = append(opts, Option{Value: rec.GetID(), Label: label(rec)})
	}
	return opts, nil
}

// Form is the payload of create-form and edit-form endpoints.
type Form[T any] struct {
	Data    *T                  `json:"data,omitempty"`
	Options map[string][]Option `json:"options"`
}
