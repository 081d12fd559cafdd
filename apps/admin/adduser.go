package main

import (
	"context"
	"fmt"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/rbac"
	"github.com/trezcool/sdoims/core/user"
)

const adminRole = "Administrator"

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	if err := user.CheckPasswordPolicy(pwd, name, email); err != nil {
		return err
	}

	usr, err := cli.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if usr, err = cli.users.Show(ctx, cliActor, usr.ID, false); err != nil {
			return err
		}
	case core.IsNotFound(err):
		usr = user.User{Email: email}
	default:
		return err
	}

	usr.Name = name
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if isAdmin {
		roleID, err := cli.ensureAdminRole(ctx)
		if err != nil {
			return err
		}
		usr.RoleIDs = appendMissing(usr.RoleIDs, roleID)
	} else if usr.ID != 0 {
		usr.RoleIDs = nil // keep the current roles
	}

	if err = cli.users.Save(ctx, &usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "User %s saved.\n", usr.Email)
	return nil
}

// ensureAdminRole returns the id of the role holding every capability, creating or completing it first.
func (cli *commandLine) ensureAdminRole(ctx context.Context) (int64, error) {
	permIDs, err := cli.permissions.Ensure(ctx, rbac.AllCapabilities()...)
	if err != nil {
		return 0, err
	}

	found, err := cli.roles.Repo().FindBy(ctx, "title", adminRole)
	if err != nil {
		return 0, err
	}
	if len(found) == 0 {
		res, err := cli.roles.Create(ctx, cliActor, rbac.NewRole{Title: adminRole, PermissionIDs: permIDs})
		if err != nil {
			return 0, err
		}
		return res.Record.ID, nil
	}

	res, err := cli.roles.Update(ctx, cliActor, found[0].ID, rbac.UpdateRole{PermissionIDs: &permIDs})
	if err != nil {
		return 0, err
	}
	return res.Record.ID, nil
}

func appendMissing(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
