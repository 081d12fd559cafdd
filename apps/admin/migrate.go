package main

import (
	"context"

	"github.com/trezcool/sdoims/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errInMemory
	}
	return gooseRunFunc(context.Background(), cli.db, args[0], args[1:]...)
}
