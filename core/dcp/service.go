package dcp

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	BatchResource     = "dcp_batch"
	ItemResource      = "dcp_item"
	RecipientResource = "dcp_recipient"
	StatusResource    = "dcp_item_status"

	batchUploadDir = "dcp/batches"
)

var (
	BatchTable = resource.Table{
		Name:       "dcp_batches",
		Columns:    []string{"name", "description", "budget_year", "delivery_date", "slug", "document"},
		Search:     []string{"name", "slug"},
		SoftDelete: true,
		Unique:     [][]string{{"slug"}},
	}

	ItemTable = resource.Table{
		Name:        "dcp_items",
		Columns:     []string{"batch_id", "name", "quantity", "unit"},
		Search:      []string{"name"},
		ScopeColumn: "batch_id",
		OldestFirst: true,
	}

	RecipientTable = resource.Table{
		Name:        "dcp_recipients",
		Columns:     []string{"batch_id", "school_id", "contact_person", "slug"},
		Search:      []string{"contact_person", "slug"},
		Via:         []resource.Relation{{Table: "schools", ForeignKey: "school_id", Column: "name"}},
		ScopeColumn: "batch_id",
		SoftDelete:  true,
		Unique:      [][]string{{"slug"}},
	}

	StatusTable = resource.Table{
		Name:        "dcp_item_statuses",
		Columns:     []string{"recipient_id", "item_id", "condition", "remarks", "reported_by"},
		ScopeColumn: "recipient_id",
		OldestFirst: true,
		Unique:      [][]string{{"recipient_id", "item_id"}},
	}

	statusNaturalKey = []string{"recipient_id", "item_id"}
)

func parseDate(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(t)
}

type BatchService struct {
	*resource.Service[Batch, NewBatch, UpdateBatch]
}

func NewBatchService(repo resource.Repository[Batch], blobs core.BlobStorage, validate *validator.Validate, logger core.Logger) *BatchService {
	slugTaken := resource.SlugTakenIn(repo, "slug")
	opts := resource.Options[Batch, NewBatch, UpdateBatch]{
		Resource:  BatchResource,
		Label:     "DCP batch",
		UploadDir: batchUploadDir,
		Build: func(ctx context.Context, _ core.Actor, in NewBatch) (Batch, error) {
			slug, err := resource.UniqueSlug(ctx, in.Name, slugTaken)
			if err != nil {
				return Batch{}, err
			}
			return Batch{
				Name:         in.Name,
				Description:  in.Description,
				BudgetYear:   in.BudgetYear,
				DeliveryDate: parseDate(in.DeliveryDate),
				Slug:         slug,
			}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, b *Batch, in UpdateBatch) error {
			if in.Name != "" {
				b.Name = in.Name
			}
			if in.Description != nil {
				b.Description = *in.Description
			}
			if in.BudgetYear != 0 {
				b.BudgetYear = in.BudgetYear
			}
			if in.DeliveryDate != nil {
				b.DeliveryDate = parseDate(*in.DeliveryDate)
			}
			return nil
		},
		Reslug: func(ctx context.Context, b *Batch) error {
			slug, err := resource.UniqueSlug(ctx, b.Name, slugTaken)
			b.Slug = slug
			return err
		},
	}
	return &BatchService{resource.NewService(opts, repo, validate, blobs, logger)}
}

func (svc *BatchService) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(b Batch) string { return b.Name })
}

type ItemService struct {
	*resource.Service[Item, NewItem, UpdateItem]
	batches *BatchService
}

func NewItemService(repo resource.Repository[Item], batches *BatchService, validate *validator.Validate, logger core.Logger) *ItemService {
	opts := resource.Options[Item, NewItem, UpdateItem]{
		Resource: ItemResource,
		Label:    "DCP item",
		Build: func(_ context.Context, _ core.Actor, in NewItem) (Item, error) {
			return Item{BatchID: in.BatchID, Name: in.Name, Quantity: in.Quantity, Unit: in.Unit}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, i *Item, in UpdateItem) error {
			if in.Name != "" {
				i.Name = in.Name
			}
			if in.Quantity != 0 {
				i.Quantity = in.Quantity
			}
			if in.Unit != nil {
				i.Unit = *in.Unit
			}
			return nil
		},
	}
	return &ItemService{Service: resource.NewService(opts, repo, validate, nil, logger), batches: batches}
}

func (svc *ItemService) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	batches, err := svc.batches.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"batches": batches}, nil
}

type (
	// Schools resolves the names recipient slugs are derived from.
	Schools interface {
		Name(ctx context.Context, id int64) (string, error)
		Options(ctx context.Context) ([]resource.Option, error)
	}

	RecipientService struct {
		*resource.Service[Recipient, NewRecipient, UpdateRecipient]
		schools Schools
		batches *BatchService
	}
)

func NewRecipientService(repo resource.Repository[Recipient], schools Schools, batches *BatchService, validate *validator.Validate, logger core.Logger) *RecipientService {
	slugTaken := resource.SlugTakenIn(repo, "slug")
	slugFor := func(ctx context.Context, schoolID int64) (string, error) {
		name, err := schools.Name(ctx, schoolID)
		if err != nil {
			return "", err
		}
		return resource.UniqueSlug(ctx, name, slugTaken)
	}

	opts := resource.Options[Recipient, NewRecipient, UpdateRecipient]{
		Resource: RecipientResource,
		Label:    "DCP recipient",
		Build: func(ctx context.Context, _ core.Actor, in NewRecipient) (Recipient, error) {
			slug, err := slugFor(ctx, in.SchoolID)
			if err != nil {
				return Recipient{}, err
			}
			return Recipient{BatchID: in.BatchID, SchoolID: in.SchoolID, ContactPerson: in.ContactPerson, Slug: slug}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, r *Recipient, in UpdateRecipient) error {
			if in.ContactPerson != nil {
				r.ContactPerson = *in.ContactPerson
			}
			return nil
		},
		Reslug: func(ctx context.Context, r *Recipient) error {
			slug, err := slugFor(ctx, r.SchoolID)
			r.Slug = slug
			return err
		},
	}
	return &RecipientService{
		Service: resource.NewService(opts, repo, validate, nil, logger),
		schools: schools,
		batches: batches,
	}
}

func (svc *RecipientService) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	batches, err := svc.batches.Options(ctx)
	if err != nil {
		return nil, err
	}
	schools, err := svc.schools.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"batches": batches, "schools": schools}, nil
}

type StatusService struct {
	*resource.Service[ItemStatus, StatusEntry, UpdateItemStatus]
	tx         core.TxManager
	recipients resource.Repository[Recipient]
	items      resource.Repository[Item]
}

func NewStatusService(
	repo resource.Repository[ItemStatus],
	recipients resource.Repository[Recipient],
	items resource.Repository[Item],
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *StatusService {
	opts := resource.Options[ItemStatus, StatusEntry, UpdateItemStatus]{
		Resource: StatusResource,
		Label:    "Item status",
		Build: func(_ context.Context, _ core.Actor, _ StatusEntry) (ItemStatus, error) {
			return ItemStatus{}, errors.New("item statuses are created through the bulk form")
		},
		Apply: func(_ context.Context, _ core.Actor, s *ItemStatus, in UpdateItemStatus) error {
			if in.Condition != "" {
				s.Condition = in.Condition
			}
			if in.Remarks != nil {
				s.Remarks = *in.Remarks
			}
			return nil
		},
	}
	return &StatusService{
		Service:    resource.NewService(opts, repo, validate, nil, logger),
		tx:         tx,
		recipients: recipients,
		items:      items,
	}
}

// Submit upserts one status per entry, keyed by recipient and item, in a single transaction.
// Any invalid entry aborts the whole submission.
func (svc *StatusService) Submit(ctx context.Context, actor core.Actor, sub resource.Submission[StatusEntry]) (resource.Result[[]ItemStatus], error) {
	if err := svc.Authorize(actor, core.ActionCreate); err != nil {
		return resource.Result[[]ItemStatus]{}, err
	}
	if err := sub.Validate(); err != nil {
		return resource.Result[[]ItemStatus]{}, err
	}

	recipient, err := svc.recipients.Get(ctx, sub.ParentID, false)
	if err != nil {
		return resource.Result[[]ItemStatus]{}, err
	}

	stored := make([]ItemStatus, len(sub.Entries))
	err = resource.SubmitAll(ctx, svc.tx, sub.Entries, func(ctx context.Context, i int, e StatusEntry) error {
		item, err := svc.items.Get(ctx, e.ItemID, false)
		if err != nil && !core.IsNotFound(err) {
			return err
		}
		if err != nil || item.BatchID != recipient.BatchID {
			return core.NewValidationError(nil, core.FieldError{
				Field: "entries." + strconv.Itoa(i) + ".item_id",
				Error: "the selected item is not part of this batch",
			})
		}

		stored[i] = ItemStatus{
			RecipientID: recipient.ID,
			ItemID:      e.ItemID,
			Condition:   e.Condition,
			Remarks:     core.CleanString(e.Remarks),
			ReportedBy:  actor.ID,
		}
		return svc.Repo().Upsert(ctx, &stored[i], statusNaturalKey...)
	})
	if err != nil {
		return resource.Result[[]ItemStatus]{}, err
	}
	return resource.Result[[]ItemStatus]{Record: stored, Message: "Item statuses saved successfully."}, nil
}
