package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const Resource = "school"

var Table = resource.Table{
	Name:        "schools",
	Columns:     []string{"name", "school_code", "district_id", "address"},
	Search:      []string{"name", "school_code"},
	Via:         []resource.Relation{{Table: "districts", ForeignKey: "district_id", Column: "name"}},
	ScopeColumn: "district_id",
	SoftDelete:  true,
	Unique:      [][]string{{"school_code"}},
}

var errCodeTaken = errors.New("a school with this code already exists")

type DistrictOptions interface {
	Options(ctx context.Context) ([]resource.Option, error)
}

type Service struct {
	*resource.Service[School, NewSchool, UpdateSchool]
	districts DistrictOptions
}

func NewService(repo resource.Repository[School], districts DistrictOptions, validate *validator.Validate, logger core.Logger) *Service {
	svc := &Service{districts: districts}
	opts := resource.Options[School, NewSchool, UpdateSchool]{
		Resource: Resource,
		Label:    "School",
		Build: func(ctx context.Context, _ core.Actor, in NewSchool) (School, error) {
			if err := svc.checkCode(ctx, in.SchoolCode); err != nil {
				return School{}, err
			}
			return School{Name: in.Name, SchoolCode: in.SchoolCode, DistrictID: in.DistrictID, Address: in.Address}, nil
		},
		Apply: func(ctx context.Context, _ core.Actor, s *School, in UpdateSchool) error {
			if in.SchoolCode != "" && in.SchoolCode != s.SchoolCode {
				if err := svc.checkCode(ctx, in.SchoolCode); err != nil {
					return err
				}
				s.SchoolCode = in.SchoolCode
			}
			if in.Name != "" {
				s.Name = in.Name
			}
			if in.DistrictID != 0 {
				s.DistrictID = in.DistrictID
			}
			if in.Address != nil {
				s.Address = *in.Address
			}
			return nil
		},
	}
	svc.Service = resource.NewService(opts, repo, validate, nil, logger)
	return svc
}

// checkCode reports a taken school code as a field error, trashed schools included.
func (svc *Service) checkCode(ctx context.Context, code string) error {
	taken, err := svc.Repo().Exists(ctx, "school_code", code, true)
	if err != nil {
		return err
	}
	if taken {
		return core.NewValidationError(errCodeTaken, core.FieldError{Field: "school_code", Error: errCodeTaken.Error()})
	}
	return nil
}

func (svc *Service) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	districts, err := svc.districts.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"districts": districts}, nil
}

// Options lists the schools offered by the user, recipient and OPCR forms.
func (svc *Service) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(s School) string { return s.SchoolCode + " - " + s.Name })
}

// Name returns the name of a live school.
func (svc *Service) Name(ctx context.Context, id int64) (string, error) {
	s, err := svc.Repo().Get(ctx, id, false)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}
