package opcr

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	Resource = "opcr"
	Channel  = "opcrs"

	uploadDir        = "opcr"
	reviewedTemplate = "opcr_reviewed"
)

var Table = resource.Table{
	Name:        "opcrs",
	Columns:     []string{"title", "rating_period", "school_id", "document", "status", "remarks", "submitted_by", "reviewed_by", "reviewed_at"},
	Search:      []string{"title", "rating_period"},
	ScopeColumn: "school_id",
	SoftDelete:  true,
}

type (
	Directory interface {
		Contact(ctx context.Context, id int64) (mail.Address, error)
	}

	SchoolOptions interface {
		Options(ctx context.Context) ([]resource.Option, error)
	}

	Service struct {
		*resource.Service[OPCR, NewOPCR, UpdateOPCR]
		validate *validator.Validate
		users    Directory
		schools  SchoolOptions
		mailer   core.EmailService
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

// guard keeps approved OPCRs read-only.
func guard(o OPCR) error {
	if o.Locked() {
		return core.NewConflictError("OPCR %d is approved and can no longer be changed", o.ID)
	}
	return nil
}

func NewService(
	repo resource.Repository[OPCR],
	blobs core.BlobStorage,
	users Directory,
	schools SchoolOptions,
	mailer core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	opts := resource.Options[OPCR, NewOPCR, UpdateOPCR]{
		Resource:  Resource,
		Label:     "OPCR",
		Channel:   Channel,
		UploadDir: uploadDir,
		Guard:     guard,
		Build: func(_ context.Context, actor core.Actor, in NewOPCR) (OPCR, error) {
			o := OPCR{
				Title:        in.Title,
				RatingPeriod: in.RatingPeriod,
				Status:       StatusPending,
				SubmittedBy:  actor.ID,
			}
			switch {
			case in.SchoolID != 0:
				o.SchoolID = null.Int64From(in.SchoolID)
			case actor.SchoolID != nil:
				o.SchoolID = null.Int64From(*actor.SchoolID)
			}
			return o, nil
		},
		Apply: func(_ context.Context, _ core.Actor, o *OPCR, in UpdateOPCR) error {
			if in.Title != "" {
				o.Title = in.Title
			}
			if in.RatingPeriod != "" {
				o.RatingPeriod = in.RatingPeriod
			}
			if in.SchoolID != 0 {
				o.SchoolID = null.Int64From(in.SchoolID)
			}
			return nil
		},
	}
	return &Service{
		Service:  resource.NewService(opts, repo, validate, blobs, logger),
		validate: validate,
		users:    users,
		schools:  schools,
		mailer:   mailer,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Review applies an approve/disapprove decision to a pending OPCR and broadcasts the change.
func (svc *Service) Review(ctx context.Context, actor core.Actor, id int64, rv Review) (resource.Result[OPCR], error) {
	if err := actor.Authorize(core.Capability(Resource, core.ActionReview)); err != nil {
		return resource.Result[OPCR]{}, err
	}
	rv.Clean()
	if err := svc.validate.StructCtx(ctx, &rv); err != nil {
		return resource.Result[OPCR]{}, err
	}

	o, err := svc.Repo().Get(ctx, id, false)
	if err != nil {
		return resource.Result[OPCR]{}, err
	}
	if o.Status != StatusPending {
		return resource.Result[OPCR]{}, core.NewConflictError("OPCR %d has already been %s", o.ID, o.Status)
	}

	o.Status = rv.Status
	o.Remarks = rv.Remarks
	o.ReviewedBy = null.Int64From(actor.ID)
	o.ReviewedAt = null.TimeFrom(svc.nowFunc().UTC())
	if err = svc.Repo().UpdateWhen(ctx, &o, "status", StatusPending); err != nil {
		if core.IsConflict(err) {
			return resource.Result[OPCR]{}, core.NewConflictError("OPCR %d has already been reviewed", o.ID)
		}
		return resource.Result[OPCR]{}, errors.Wrap(err, "reviewing opcr")
	}

	svc.notifySubmitter(ctx, o)
	return svc.Changed(o, "reviewed", "OPCR "+o.Status+" successfully."), nil
}

func (svc *Service) notifySubmitter(ctx context.Context, o OPCR) {
	if svc.mailer == nil {
		return
	}
	to, err := svc.users.Contact(ctx, o.SubmittedBy)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("opcr %d: looking up submitter: %v", o.ID, err), err)
		return
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Your OPCR has been %s", o.Status),
		TemplateName: reviewedTemplate,
		TemplateData: map[string]interface{}{
			"Name":         to.Name,
			"ID":           o.ID,
			"Title":        o.Title,
			"RatingPeriod": o.RatingPeriod,
			"Status":       o.Status,
			"Remarks":      o.Remarks,
		},
	})
}

func (svc *Service) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	schools, err := svc.schools.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"schools": schools}, nil
}
