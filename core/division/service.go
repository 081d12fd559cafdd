package division

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const Resource = "division"

var Table = resource.Table{
	Name:       "divisions",
	Columns:    []string{"name", "region"},
	Search:     []string{"name", "region"},
	SoftDelete: true,
}

type Service struct {
	*resource.Service[Division, NewDivision, UpdateDivision]
}

func NewService(repo resource.Repository[Division], validate *validator.Validate, logger core.Logger) *Service {
	opts := resource.Options[Division, NewDivision, UpdateDivision]{
		Resource: Resource,
		Label:    "Division",
		Build: func(_ context.Context, _ core.Actor, in NewDivision) (Division, error) {
			return Division{Name: in.Name, Region: in.Region}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, d *Division, in UpdateDivision) error {
			if in.Name != "" {
				d.Name = in.Name
			}
			if in.Region != nil {
				d.Region = *in.Region
			}
			return nil
		},
	}
	return &Service{resource.NewService(opts, repo, validate, nil, logger)}
}

// Options lists the divisions offered by the district forms.
func (svc *Service) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(d Division) string { return d.Name })
}
