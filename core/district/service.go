package district

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const Resource = "district"

var Table = resource.Table{
	Name:        "districts",
	Columns:     []string{"name", "division_id"},
	Search:      []string{"name"},
	Via:         []resource.Relation{{Table: "divisions", ForeignKey: "division_id", Column: "name"}},
	ScopeColumn: "division_id",
	SoftDelete:  true,
}

// DivisionOptions lists the divisions a district may belong to.
type DivisionOptions interface {
	Options(ctx context.Context) ([]resource.Option, error)
}

type Service struct {
	*resource.Service[District, NewDistrict, UpdateDistrict]
	divisions DivisionOptions
}

func NewService(repo resource.Repository[District], divisions DivisionOptions, validate *validator.Validate, logger core.Logger) *Service {
	opts := resource.Options[District, NewDistrict, UpdateDistrict]{
		Resource: Resource,
		Label:    "District",
		Build: func(_ context.Context, _ core.Actor, in NewDistrict) (District, error) {
			return District{Name: in.Name, DivisionID: in.DivisionID}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, d *District, in UpdateDistrict) error {
			if in.Name != "" {
				d.Name = in.Name
			}
			if in.DivisionID != 0 {
				d.DivisionID = in.DivisionID
			}
			return nil
		},
	}
	return &Service{
		Service:   resource.NewService(opts, repo, validate, nil, logger),
		divisions: divisions,
	}
}

// FormOptions returns the select choices of the create and edit forms.
func (svc *Service) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	divisions, err := svc.divisions.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"divisions": divisions}, nil
}

// Options lists the districts offered by the school forms.
func (svc *Service) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(d District) string { return d.Name })
}
