package resource

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

type (
	// Cleaner inputs normalise themselves (trim, lower...) before validation.
	Cleaner interface {
		Clean()
	}

	// UploadCarrier inputs may carry a file replacing the record's attachment.
	UploadCarrier interface {
		Upload() *core.Upload
	}

	// Options plugs a resource's specifics into the generic Service.
	Options[T Record, N any, U any] struct {
		Resource string // capability prefix, e.g. "district"
		Label    string // human name used in messages, e.g. "District"
		Channel  string // broadcast channel for updates; empty disables broadcasting

		// Build makes a new record from validated input.
		Build func(ctx context.Context, actor core.Actor, in N) (T, error)
		// Apply copies the fields present in validated input onto rec.
		Apply func(ctx context.Context, actor core.Actor, rec *T, in U) error
		// Guard rejects updates and deletes of records in a locked state.
		Guard func(rec T) error
		// Reslug recomputes rec's slug after a unique violation on insert.
		Reslug func(ctx context.Context, rec *T) error
		// UploadDir is the blob directory attachments are stored under.
		UploadDir string
	}

	// Result is the outcome of a mutation: the record, a flash message
	// and the events to publish once the caller has committed.
	Result[T any] struct {
		Record  T
		Message string
		Events  []Event
	}

	// Service implements list, show, create, update and delete for one resource.
	Service[T Record, N any, U any] struct {
		opts     Options[T, N, U]
		repo     Repository[T]
		validate *validator.Validate
		blobs    core.BlobStorage
		logger   core.Logger
	}
)

func NewService[T Record, N any, U any](
	opts Options[T, N, U],
	repo Repository[T],
	validate *validator.Validate,
	blobs core.BlobStorage,
	logger core.Logger,
) *Service[T, N, U] {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(opts.Resource, "opts.Resource"),
		vala.IsNotNil(opts.Build, "opts.Build"),
		vala.IsNotNil(opts.Apply, "opts.Apply"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if opts.Label == "" {
		opts.Label = opts.Resource
	}
	return &Service[T, N, U]{
		opts:     opts,
		repo:     repo,
		validate: validate,
		blobs:    blobs,
		logger:   logger,
	}
}

func (s *Service[T, N, U]) Resource() string { return s.opts.Resource }

func (s *Service[T, N, U]) Repo() Repository[T] { return s.repo }

func (s *Service[T, N, U]) Label() string { return s.opts.Label }

func (s *Service[T, N, U]) Channel() string { return s.opts.Channel }

// Can reports whether actor may perform action on this resource.
func (s *Service[T, N, U]) Can(actor core.Actor, action string) bool {
	return actor.Can(core.Capability(s.opts.Resource, action))
}

// Authorize returns a *core.ForbiddenError unless actor may perform action on this resource.
func (s *Service[T, N, U]) Authorize(actor core.Actor, action string) error {
	return actor.Authorize(core.Capability(s.opts.Resource, action))
}

// List returns one page of records matching q.
func (s *Service[T, N, U]) List(ctx context.Context, actor core.Actor, q Query) (Page[T], error) {
	if err := s.Authorize(actor, core.ActionAccess); err != nil {
		return Page[T]{}, err
	}
	q.Normalize()

	records, total, err := s.repo.List(ctx, q)
	if err != nil {
		return Page[T]{}, errors.Wrapf(err, "listing %s", s.opts.Resource)
	}
	return Paginate(records, total, q.Page, q.PageSize), nil
}

func (s *Service[T, N, U]) Show(ctx context.Context, actor core.Actor, id int64, withTrashed bool) (T, error) {
	if err := s.Authorize(actor, core.ActionShow); err != nil {
		var zero T
		return zero, err
	}
	return s.repo.Get(ctx, id, withTrashed)
}

func (s *Service[T, N, U]) Create(ctx context.Context, actor core.Actor, in N) (Result[T], error) {
	if err := s.Authorize(actor, core.ActionCreate); err != nil {
		return Result[T]{}, err
	}
	if err := s.clean(ctx, &in); err != nil {
		return Result[T]{}, err
	}

	rec, err := s.opts.Build(ctx, actor, in)
	if err != nil {
		return Result[T]{}, err
	}

	stored, err := s.storeUpload(ctx, &rec, &in)
	if err != nil {
		return Result[T]{}, err
	}

	for attempt := 0; ; attempt++ {
		err = s.repo.Create(ctx, &rec)
		if err == nil || s.opts.Reslug == nil || !core.IsConflict(err) || attempt >= maxSlugRetries {
			break
		}
		if err = s.opts.Reslug(ctx, &rec); err != nil {
			break
		}
	}
	if err != nil {
		s.removeBlob(ctx, stored)
		return Result[T]{}, errors.Wrapf(err, "creating %s", s.opts.Resource)
	}

	return Result[T]{Record: rec, Message: s.opts.Label + " created successfully."}, nil
}

// Update applies a partial update to a live record. Trashed records are not found.
func (s *Service[T, N, U]) Update(ctx context.Context, actor core.Actor, id int64, in U) (Result[T], error) {
	if err := s.Authorize(actor, core.ActionEdit); err != nil {
		return Result[T]{}, err
	}

	rec, err := s.repo.Get(ctx, id, false)
	if err != nil {
		return Result[T]{}, err
	}
	if s.opts.Guard != nil {
		if err = s.opts.Guard(rec); err != nil {
			return Result[T]{}, err
		}
	}
	if err = s.clean(ctx, &in); err != nil {
		return Result[T]{}, err
	}
	if err = s.opts.Apply(ctx, actor, &rec, in); err != nil {
		return Result[T]{}, err
	}

	var oldPath string
	if att, ok := any(&rec).(Attachable); ok {
		oldPath = att.AttachmentPath()
	}
	stored, err := s.storeUpload(ctx, &rec, &in)
	if err != nil {
		return Result[T]{}, err
	}

	if err = s.repo.Update(ctx, &rec); err != nil {
		s.removeBlob(ctx, stored)
		return Result[T]{}, errors.Wrapf(err, "updating %s", s.opts.Resource)
	}
	if stored != "" {
		s.removeBlob(ctx, oldPath) // the new file is committed; the old one is now orphaned
	}

	return s.Updated(rec), nil
}

// Updated wraps rec in a Result carrying the update broadcast.
func (s *Service[T, N, U]) Updated(rec T) Result[T] {
	return s.Changed(rec, "updated", s.opts.Label+" updated successfully.")
}

// Changed wraps rec in a Result carrying a "<resource>.<action>" broadcast when the resource has a channel.
func (s *Service[T, N, U]) Changed(rec T, action, message string) Result[T] {
	res := Result[T]{Record: rec, Message: message}
	if s.opts.Channel != "" {
		res.Events = append(res.Events, s.event(action, rec))
	}
	return res
}

// Delete is idempotent: a missing or already trashed record is a successful no-op.
func (s *Service[T, N, U]) Delete(ctx context.Context, actor core.Actor, id int64) (Result[T], error) {
	if err := s.Authorize(actor, core.ActionDelete); err != nil {
		return Result[T]{}, err
	}
	res := Result[T]{Message: s.opts.Label + " deleted successfully."}

	rec, err := s.repo.Get(ctx, id, true)
	if err != nil {
		if core.IsNotFound(err) {
			return res, nil
		}
		return Result[T]{}, err
	}
	sd, softDeletes := any(rec).(SoftDeletable)
	if softDeletes && sd.Trashed() {
		res.Record = rec
		return res, nil
	}
	if s.opts.Guard != nil {
		if err = s.opts.Guard(rec); err != nil {
			return Result[T]{}, err
		}
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		return Result[T]{}, errors.Wrapf(err, "deleting %s", s.opts.Resource)
	}
	if att, ok := any(&rec).(Attachable); ok && !softDeletes {
		s.removeBlob(ctx, att.AttachmentPath())
	}

	res.Record = rec
	return res, nil
}

func (s *Service[T, N, U]) event(action string, rec T) Event {
	return NewEvent(s.opts.Channel, s.opts.Resource+"."+action, rec)
}

// clean normalises in, runs the struct tag rules, then the input's own rules if it has any.
func (s *Service[T, N, U]) clean(ctx context.Context, in interface{}) error {
	if c, ok := in.(Cleaner); ok {
		c.Clean()
	}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return err
	}
	if v, ok := in.(validation.Validatable); ok {
		return FlattenErrors(v.Validate())
	}
	return nil
}

// storeUpload stores the input's file, if any, and points rec at it.
// A storage failure here aborts the mutation.
func (s *Service[T, N, U]) storeUpload(ctx context.Context, rec *T, in interface{}) (string, error) {
	uc, ok := in.(UploadCarrier)
	if !ok {
		return "", nil
	}
	up := uc.Upload()
	if up == nil {
		return "", nil
	}
	att, ok := any(rec).(Attachable)
	if !ok || s.blobs == nil {
		return "", nil
	}

	path, err := storeFile(ctx, s.blobs, s.opts.UploadDir, up)
	if err != nil {
		return "", err
	}
	att.SetAttachmentPath(path)
	return path, nil
}

// removeBlob deletes a file that is no longer referenced. Failures only leave an orphan behind and are logged.
func (s *Service[T, N, U]) removeBlob(ctx context.Context, path string) {
	if path == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, path); err != nil {
		s.logger.Warn(fmt.Sprintf("removing %s file %q: %v", s.opts.Resource, path, err), err)
	}
}

func storeFile(ctx context.Context, blobs core.BlobStorage, dir string, up *core.Upload) (string, error) {
	r, err := up.Open()
	if err != nil {
		return "", core.NewStorageError("open", up.Filename, err)
	}
	defer func() { _ = r.Close() }()

	path, err := blobs.Store(ctx, dir, up.Filename, r)
	if err != nil {
		return "", core.NewStorageError("store", up.Filename, err)
	}
	return path, nil
}
