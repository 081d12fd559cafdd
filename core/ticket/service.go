package ticket

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	CategoryResource = "ticket_category"
	Resource         = "ticket"
	Channel          = "tickets"

	assignedTemplate = "ticket_assigned"
)

var (
	CategoryTable = resource.Table{
		Name:    "ticket_categories",
		Columns: []string{"name"},
		Search:  []string{"name"},
	}

	Table = resource.Table{
		Name:        "tickets",
		Columns:     []string{"title", "description", "category_id", "priority", "status", "created_by", "assigned_to"},
		Search:      []string{"title"},
		Via:         []resource.Relation{{Table: "ticket_categories", ForeignKey: "category_id", Column: "name"}},
		ScopeColumn: "category_id",
		SoftDelete:  true,
	}
)

type CategoryService struct {
	*resource.Service[Category, NewCategory, UpdateCategory]
}

func NewCategoryService(repo resource.Repository[Category], validate *validator.Validate, logger core.Logger) *CategoryService {
	opts := resource.Options[Category, NewCategory, UpdateCategory]{
		Resource: CategoryResource,
		Label:    "Ticket category",
		Build: func(_ context.Context, _ core.Actor, in NewCategory) (Category, error) {
			return Category{Name: in.Name}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, c *Category, in UpdateCategory) error {
			if in.Name != "" {
				c.Name = in.Name
			}
			return nil
		},
	}
	return &CategoryService{resource.NewService(opts, repo, validate, nil, logger)}
}

func (svc *CategoryService) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(c Category) string { return c.Name })
}

type (
	// Directory resolves users to mailing addresses and lists assignable users.
	Directory interface {
		Contact(ctx context.Context, id int64) (mail.Address, error)
		Options(ctx context.Context) ([]resource.Option, error)
	}

	Service struct {
		*resource.Service[Ticket, NewTicket, UpdateTicket]
		categories *CategoryService
		users      Directory
		mailer     core.EmailService
		logger     core.Logger
	}
)

func NewService(
	repo resource.Repository[Ticket],
	categories *CategoryService,
	users Directory,
	mailer core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	opts := resource.Options[Ticket, NewTicket, UpdateTicket]{
		Resource: Resource,
		Label:    "Ticket",
		Channel:  Channel,
		Build: func(_ context.Context, actor core.Actor, in NewTicket) (Ticket, error) {
			t := Ticket{
				Title:       in.Title,
				Description: in.Description,
				CategoryID:  in.CategoryID,
				Priority:    in.Priority,
				Status:      StatusOpen,
				CreatedBy:   actor.ID,
			}
			if in.AssignedTo != nil {
				t.AssignedTo = null.Int64From(*in.AssignedTo)
			}
			return t, nil
		},
		Apply: func(_ context.Context, _ core.Actor, t *Ticket, in UpdateTicket) error {
			if in.Title != "" {
				t.Title = in.Title
			}
			if in.Description != nil {
				t.Description = *in.Description
			}
			if in.CategoryID != 0 {
				t.CategoryID = in.CategoryID
			}
			if in.Priority != "" {
				t.Priority = in.Priority
			}
			if in.Status != "" {
				t.Status = in.Status
			}
			if in.AssignedTo != nil {
				t.AssignedTo = null.Int64From(*in.AssignedTo)
			}
			return nil
		},
	}
	return &Service{
		Service:    resource.NewService(opts, repo, validate, nil, logger),
		categories: categories,
		users:      users,
		mailer:     mailer,
		logger:     logger,
	}
}

func (svc *Service) Create(ctx context.Context, actor core.Actor, in NewTicket) (resource.Result[Ticket], error) {
	res, err := svc.Service.Create(ctx, actor, in)
	if err != nil {
		return res, err
	}
	if res.Record.AssignedTo.Valid {
		svc.notifyAssignee(ctx, res.Record)
	}
	return res, nil
}

// Update e-mails the new assignee when the ticket changes hands.
func (svc *Service) Update(ctx context.Context, actor core.Actor, id int64, in UpdateTicket) (resource.Result[Ticket], error) {
	if err := svc.Authorize(actor, core.ActionEdit); err != nil {
		return resource.Result[Ticket]{}, err
	}
	before, err := svc.Repo().Get(ctx, id, false)
	if err != nil && !core.IsNotFound(err) {
		return resource.Result[Ticket]{}, err
	}
	res, err := svc.Service.Update(ctx, actor, id, in)
	if err != nil {
		return res, err
	}
	if res.Record.AssignedTo.Valid && res.Record.AssignedTo != before.AssignedTo {
		svc.notifyAssignee(ctx, res.Record)
	}
	return res, nil
}

func (svc *Service) notifyAssignee(ctx context.Context, t Ticket) {
	if svc.mailer == nil {
		return
	}
	to, err := svc.users.Contact(ctx, t.AssignedTo.Int64)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("ticket %d: looking up assignee: %v", t.ID, err), err)
		return
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Ticket #%d assigned to you", t.ID),
		TemplateName: assignedTemplate,
		TemplateData: map[string]interface{}{
			"Name":     to.Name,
			"ID":       t.ID,
			"Title":    t.Title,
			"Priority": t.Priority,
		},
	})
}

func (svc *Service) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	categories, err := svc.categories.Options(ctx)
	if err != nil {
		return nil, err
	}
	assignees, err := svc.users.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"categories": categories, "assignees": assignees}, nil
}
