package resource

import (
	"context"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

// MaxBulkEntries caps the number of entries accepted in one bulk submission.
const MaxBulkEntries = 500

// Submission is a bulk form: a parent record and one entry per child row to upsert.
type Submission[E validation.Validatable] struct {
	ParentID int64 `json:"parent_id"`
	Entries  []E   `json:"entries"`
}

// Validate checks the whole submission structurally before any entry is processed.
// Errors are flattened to field keys such as "entries.2.condition".
func (s Submission[E]) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.ParentID, validation.Required),
		validation.Field(&s.Entries, validation.Required, validation.Length(1, MaxBulkEntries)),
	)
	return FlattenErrors(err)
}

// FlattenErrors converts ozzo validation errors to a *core.ValidationError. Other errors pass through.
func FlattenErrors(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return err
	}

	var flds []core.FieldError
	flatten("", errs, &flds)
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return core.NewValidationError(nil, flds...)
}

func flatten(prefix string, errs validation.Errors, out *[]core.FieldError) {
	for key, err := range errs {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}
		if nested, ok := err.(validation.Errors); ok {
			flatten(field, nested, out)
			continue
		}
		*out = append(*out, core.FieldError{Field: field, Error: strings.TrimSuffix(err.Error(), ".")})
	}
}

// SubmitAll runs persist for every entry inside one transaction: either all entries are stored or none.
func SubmitAll[E any](ctx context.Context, tx core.TxManager, entries []E, persist func(ctx context.Context, i int, e E) error) error {
	return tx.InTx(ctx, func(ctx context.Context) error {
		for i, e := range entries {
			if err := persist(ctx, i, e); err != nil {
				return errors.Wrapf(err, "storing entry %d", i)
			}
		}
		return nil
	})
}
