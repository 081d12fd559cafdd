package resource

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

const (
	emptySlug = "untitled"

	// maxSlugRetries bounds how often a create is retried after losing a slug race to a concurrent insert.
	maxSlugRetries = 3
)

// SlugTaken reports whether slug is already used, soft-deleted rows included.
type SlugTaken func(ctx context.Context, slug string) (bool, error)

// UniqueSlug slugifies base and appends -1, -2... until the candidate is free.
func UniqueSlug(ctx context.Context, base string, taken SlugTaken) (string, error) {
	slug := core.Slugify(base)
	if slug == "" {
		slug = emptySlug
	}

	candidate := slug
	for i := 1; ; i++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "probing slug")
		}
		if !used {
			return candidate, nil
		}
		candidate = slug + "-" + strconv.Itoa(i)
	}
}

// SlugTakenIn checks column of repo for a slug, trashed rows included.
func SlugTakenIn[T Record](repo Repository[T], column string) SlugTaken {
	return func(ctx context.Context, slug string) (bool, error) {
		return repo.Exists(ctx, column, slug, true)
	}
}
