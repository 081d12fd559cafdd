package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	Resource = "user"

	// RoleUserPivot joins users to their roles.
	RoleUserPivot = "role_user"
)

var (
	Table = resource.Table{
		Name:        "users",
		Columns:     []string{"name", "email", "password_hash", "school_id", "is_active", "last_login"},
		Search:      []string{"name", "email"},
		ScopeColumn: "school_id",
		SoftDelete:  true,
		Unique:      [][]string{{"email"}},
	}

	// errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("a user with this email already exists")
)

type (
	// Capabilities resolves the permission titles granted by a set of roles.
	Capabilities interface {
		Capabilities(ctx context.Context, roleIDs ...int64) ([]string, error)
		Options(ctx context.Context) ([]resource.Option, error)
	}

	SchoolOptions interface {
		Options(ctx context.Context) ([]resource.Option, error)
	}

	Service struct {
		*resource.Service[User, NewUser, UpdateUser]
		tx      core.TxManager
		roles   resource.Links
		caps    Capabilities
		schools SchoolOptions
	}
)

func NewService(
	repo resource.Repository[User],
	roles resource.Links,
	caps Capabilities,
	schools SchoolOptions,
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	svc := &Service{tx: tx, roles: roles, caps: caps, schools: schools}
	opts := resource.Options[User, NewUser, UpdateUser]{
		Resource: Resource,
		Label:    "User",
		Build: func(ctx context.Context, _ core.Actor, in NewUser) (User, error) {
			if err := svc.checkEmail(ctx, in.Email); err != nil {
				return User{}, err
			}
			usr := User{
				Name:     in.Name,
				Email:    in.Email,
				IsActive: in.IsActive == nil || *in.IsActive,
				RoleIDs:  in.RoleIDs,
			}
			if in.SchoolID != nil {
				usr.SchoolID = null.Int64From(*in.SchoolID)
			}
			if err := usr.SetPassword(in.Password); err != nil {
				return User{}, err
			}
			return usr, nil
		},
		Apply: func(ctx context.Context, _ core.Actor, usr *User, in UpdateUser) error {
			if in.Email != "" && in.Email != usr.Email {
				if err := svc.checkEmail(ctx, in.Email); err != nil {
					return err
				}
				usr.Email = in.Email
			}
			if in.Name != "" {
				usr.Name = in.Name
			}
			if in.SchoolID != nil {
				usr.SchoolID = null.Int64From(*in.SchoolID)
			}
			if in.IsActive != nil {
				usr.IsActive = *in.IsActive
			}
			if in.RoleIDs != nil {
				usr.RoleIDs = *in.RoleIDs
			}
			if in.Password != "" {
				return usr.SetPassword(in.Password)
			}
			return nil
		},
	}
	svc.Service = resource.NewService(opts, repo, validate, nil, logger)
	return svc
}

func (svc *Service) checkEmail(ctx context.Context, email string) error {
	taken, err := svc.Repo().Exists(ctx, "email", email, true)
	if err != nil {
		return err
	}
	if taken {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) withRoles(ctx context.Context, usr *User) error {
	ids, err := svc.roles.Get(ctx, usr.ID)
	if err != nil {
		return err
	}
	usr.RoleIDs = ids
	return nil
}

func (svc *Service) List(ctx context.Context, actor core.Actor, q resource.Query) (resource.Page[User], error) {
	page, err := svc.Service.List(ctx, actor, q)
	if err != nil {
		return page, err
	}
	for i := range page.Data {
		if err = svc.withRoles(ctx, &page.Data[i]); err != nil {
			return resource.Page[User]{}, err
		}
	}
	return page, nil
}

func (svc *Service) Show(ctx context.Context, actor core.Actor, id int64, withTrashed bool) (User, error) {
	usr, err := svc.Service.Show(ctx, actor, id, withTrashed)
	if err != nil {
		return usr, err
	}
	err = svc.withRoles(ctx, &usr)
	return usr, err
}

// Create stores the user and its roles in one transaction.
func (svc *Service) Create(ctx context.Context, actor core.Actor, nu NewUser) (resource.Result[User], error) {
	var res resource.Result[User]
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = svc.Service.Create(ctx, actor, nu); err != nil {
			return err
		}
		return svc.roles.Set(ctx, res.Record.ID, res.Record.RoleIDs)
	})
	return res, err
}

// Update replaces the user's roles wholesale when the input carries them.
func (svc *Service) Update(ctx context.Context, actor core.Actor, id int64, uu UpdateUser) (resource.Result[User], error) {
	var res resource.Result[User]
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = svc.Service.Update(ctx, actor, id, uu); err != nil {
			return err
		}
		if uu.RoleIDs != nil {
			return svc.roles.Set(ctx, id, res.Record.RoleIDs)
		}
		return svc.withRoles(ctx, &res.Record)
	})
	return res, err
}

func (svc *Service) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	roles, err := svc.caps.Options(ctx)
	if err != nil {
		return nil, err
	}
	schools, err := svc.schools.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"roles": roles, "schools": schools}, nil
}

// Options lists the users offered as ticket assignees.
func (svc *Service) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(u User) string { return u.Name })
}

// GetByEmail returns the live user registered with email.
func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	found, err := svc.Repo().FindBy(ctx, "email", core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}
	if len(found) == 0 {
		return User{}, core.NewNotFoundError(Table.Name, email)
	}
	return found[0], nil
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	usr, err := svc.GetByEmail(ctx, creds.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsActive || usr.CheckPassword(creds.Password) != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	if err = svc.Repo().Update(ctx, &usr); err != nil {
		return User{}, errors.Wrap(err, "recording login")
	}
	return usr, nil
}

// Actor builds the request actor of an active user, resolving the capabilities granted by its roles.
func (svc *Service) Actor(ctx context.Context, id int64) (core.Actor, error) {
	usr, err := svc.Repo().Get(ctx, id, false)
	if err != nil {
		return core.Actor{}, err
	}
	if !usr.IsActive {
		return core.Actor{}, core.NewNotFoundError(Table.Name, id)
	}
	if err = svc.withRoles(ctx, &usr); err != nil {
		return core.Actor{}, err
	}
	caps, err := svc.caps.Capabilities(ctx, usr.RoleIDs...)
	if err != nil {
		return core.Actor{}, err
	}

	actor := core.NewActor(usr.ID, usr.Name, usr.Email, caps...)
	if usr.SchoolID.Valid {
		actor.SchoolID = core.Int64Ptr(usr.SchoolID.Int64)
	}
	return actor, nil
}

// Contact returns the mailing address of a live user.
func (svc *Service) Contact(ctx context.Context, id int64) (mail.Address, error) {
	usr, err := svc.Repo().Get(ctx, id, false)
	if err != nil {
		return mail.Address{}, err
	}
	return mail.Address{Name: usr.Name, Address: usr.Email}, nil
}

// Save creates or updates usr and sets its roles, bypassing the capability checks. Used by the admin CLI.
func (svc *Service) Save(ctx context.Context, usr *User) error {
	return svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if usr.ID == 0 {
			err = svc.Repo().Create(ctx, usr)
		} else {
			err = svc.Repo().Update(ctx, usr)
		}
		if err != nil {
			return errors.Wrapf(err, "saving user %s", usr.Email)
		}
		if usr.RoleIDs != nil {
			return svc.roles.Set(ctx, usr.ID, usr.RoleIDs)
		}
		return nil
	})
}

// CheckPasswordPolicy reports the first password policy rule pwd breaks as a *core.ValidationError.
func CheckPasswordPolicy(pwd, name, email string) error {
	if tag := passwordPolicyViolation(pwd, name, email); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: policyTexts[tag]})
	}
	return nil
}
