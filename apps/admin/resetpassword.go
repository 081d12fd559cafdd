package main

import (
	"context"
	"fmt"

	"github.com/trezcool/sdoims/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = user.CheckPasswordPolicy(pwd, usr.Name, usr.Email); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.RoleIDs = nil // keep the current roles
	if err = cli.users.Save(ctx, &usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Password of %s reset.\n", usr.Email)
	return nil
}
