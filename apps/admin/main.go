package main

import (
	"database/sql"
	"log"
	"os"

	"go.uber.org/dig"

	dig_container "github.com/trezcool/sdoims/apps/api/di/dig"
	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/rbac"
	"github.com/trezcool/sdoims/core/school"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/core/user"
	"github.com/trezcool/sdoims/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var command string
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	cli, closeDB := newCommandLine(core.NewConfig(), command)
	err := cli.run(os.Args)
	closeDB()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

// newCommandLine prepares what command needs: a bare connection for migrations, nothing for the API browser,
// and the services of the API's container otherwise.
func newCommandLine(conf *core.Config, command string) (*commandLine, func()) {
	cli := &commandLine{conf: conf, out: os.Stdout}
	closeDB := func() {
		if cli.db != nil {
			_ = cli.db.Close()
		}
	}

	switch command {
	case "migrate":
		if !conf.InMemory {
			errAndDie(database.CreateIfNotExist(conf))
			db, err := database.Open(conf)
			errAndDie(err)
			cli.db = db
		}
		return cli, closeDB
	case "browse", "":
		return cli, closeDB
	}

	errAndDie(cli.load(dig_container.New(conf)))
	return cli, closeDB
}

// load takes the services from the API's container.
func (cli *commandLine) load(c *dig.Container) error {
	return c.Invoke(func(
		db *sql.DB,
		users *user.Service,
		roles *rbac.RoleService,
		permissions *rbac.PermissionService,
		divisions *division.Service,
		districts *district.Service,
		schools *school.Service,
		categories *ticket.CategoryService,
	) {
		cli.db = db
		cli.users = users
		cli.roles = roles
		cli.permissions = permissions
		cli.divisions = divisions
		cli.districts = districts
		cli.schools = schools
		cli.categories = categories
	})
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
