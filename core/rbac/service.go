package rbac

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	PermissionResource = "permission"
	RoleResource       = "role"

	// RolePermissionPivot joins roles to their permissions.
	RolePermissionPivot = "permission_role"
)

var (
	PermissionTable = resource.Table{
		Name:    "permissions",
		Columns: []string{"title"},
		Search:  []string{"title"},
		Unique:  [][]string{{"title"}},
	}

	RoleTable = resource.Table{
		Name:    "roles",
		Columns: []string{"title"},
		Search:  []string{"title"},
	}

	errTitleTaken = errors.New("a permission with this title already exists")
)

type PermissionService struct {
	*resource.Service[Permission, NewPermission, UpdatePermission]
}

func NewPermissionService(repo resource.Repository[Permission], validate *validator.Validate, logger core.Logger) *PermissionService {
	svc := &PermissionService{}
	opts := resource.Options[Permission, NewPermission, UpdatePermission]{
		Resource: PermissionResource,
		Label:    "Permission",
		Build: func(ctx context.Context, _ core.Actor, in NewPermission) (Permission, error) {
			if err := svc.checkTitle(ctx, in.Title); err != nil {
				return Permission{}, err
			}
			return Permission{Title: in.Title}, nil
		},
		Apply: func(ctx context.Context, _ core.Actor, p *Permission, in UpdatePermission) error {
			if in.Title != "" && in.Title != p.Title {
				if err := svc.checkTitle(ctx, in.Title); err != nil {
					return err
				}
				p.Title = in.Title
			}
			return nil
		},
	}
	svc.Service = resource.NewService(opts, repo, validate, nil, logger)
	return svc
}

func (svc *PermissionService) checkTitle(ctx context.Context, title string) error {
	taken, err := svc.Repo().Exists(ctx, "title", title, true)
	if err != nil {
		return err
	}
	if taken {
		return core.NewValidationError(errTitleTaken, core.FieldError{Field: "title", Error: errTitleTaken.Error()})
	}
	return nil
}

func (svc *PermissionService) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(p Permission) string { return p.Title })
}

// Ensure creates the missing permissions among titles and returns the ids of all of them.
func (svc *PermissionService) Ensure(ctx context.Context, titles ...string) ([]int64, error) {
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		found, err := svc.Repo().FindBy(ctx, "title", title)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			ids = append(ids, found[0].ID)
			continue
		}
		p := Permission{Title: title}
		if err = svc.Repo().Create(ctx, &p); err != nil {
			return nil, errors.Wrapf(err, "creating permission %q", title)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

type RoleService struct {
	*resource.Service[Role, NewRole, UpdateRole]
	tx          core.TxManager
	links       resource.Links
	permissions resource.Repository[Permission]
	permOptions func(ctx context.Context) ([]resource.Option, error)
}

func NewRoleService(
	repo resource.Repository[Role],
	links resource.Links,
	permissions *PermissionService,
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *RoleService {
	opts := resource.Options[Role, NewRole, UpdateRole]{
		Resource: RoleResource,
		Label:    "Role",
		Build: func(_ context.Context, _ core.Actor, in NewRole) (Role, error) {
			return Role{Title: in.Title, PermissionIDs: uniqueIDs(in.PermissionIDs)}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, r *Role, in UpdateRole) error {
			if in.Title != "" {
				r.Title = in.Title
			}
			if in.PermissionIDs != nil {
				r.PermissionIDs = uniqueIDs(*in.PermissionIDs)
			}
			return nil
		},
	}
	return &RoleService{
		Service:     resource.NewService(opts, repo, validate, nil, logger),
		tx:          tx,
		links:       links,
		permissions: permissions.Repo(),
		permOptions: permissions.Options,
	}
}

func (svc *RoleService) List(ctx context.Context, actor core.Actor, q resource.Query) (resource.Page[Role], error) {
	page, err := svc.Service.List(ctx, actor, q)
	if err != nil {
		return page, err
	}
	for i := range page.Data {
		if page.Data[i].PermissionIDs, err = svc.links.Get(ctx, page.Data[i].ID); err != nil {
			return resource.Page[Role]{}, err
		}
	}
	return page, nil
}

func (svc *RoleService) Show(ctx context.Context, actor core.Actor, id int64, withTrashed bool) (Role, error) {
	r, err := svc.Service.Show(ctx, actor, id, withTrashed)
	if err != nil {
		return r, err
	}
	r.PermissionIDs, err = svc.links.Get(ctx, r.ID)
	return r, err
}

// Create stores the role and its permission set in one transaction.
func (svc *RoleService) Create(ctx context.Context, actor core.Actor, in NewRole) (resource.Result[Role], error) {
	var res resource.Result[Role]
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = svc.Service.Create(ctx, actor, in); err != nil {
			return err
		}
		return svc.links.Set(ctx, res.Record.ID, res.Record.PermissionIDs)
	})
	return res, err
}

// Update replaces the permission set wholesale when the input carries one.
func (svc *RoleService) Update(ctx context.Context, actor core.Actor, id int64, in UpdateRole) (resource.Result[Role], error) {
	var res resource.Result[Role]
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = svc.Service.Update(ctx, actor, id, in); err != nil {
			return err
		}
		if in.PermissionIDs != nil {
			return svc.links.Set(ctx, id, res.Record.PermissionIDs)
		}
		res.Record.PermissionIDs, err = svc.links.Get(ctx, id)
		return err
	})
	return res, err
}

func (svc *RoleService) Delete(ctx context.Context, actor core.Actor, id int64) (resource.Result[Role], error) {
	var res resource.Result[Role]
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = svc.Service.Delete(ctx, actor, id); err != nil {
			return err
		}
		return svc.links.Set(ctx, id, nil)
	})
	return res, err
}

func (svc *RoleService) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	perms, err := svc.permOptions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"permissions": perms}, nil
}

func (svc *RoleService) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(r Role) string { return r.Title })
}

// Capabilities returns the sorted, de-duplicated permission titles granted by roleIDs.
func (svc *RoleService) Capabilities(ctx context.Context, roleIDs ...int64) ([]string, error) {
	seen := make(map[string]bool)
	caps := make([]string, 0)
	for _, roleID := range roleIDs {
		permIDs, err := svc.links.Get(ctx, roleID)
		if err != nil {
			return nil, errors.Wrapf(err, "reading permissions of role %d", roleID)
		}
		for _, pid := range permIDs {
			p, err := svc.permissions.Get(ctx, pid, false)
			if err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			if !seen[p.Title] {
				seen[p.Title] = true
				caps = append(caps, p.Title)
			}
		}
	}
	sort.Strings(caps)
	return caps, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
