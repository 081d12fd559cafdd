package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/rbac"
	"github.com/trezcool/sdoims/core/school"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp     = errors.New("help provided")
	errInMemory = errors.New("migrations need a PostgreSQL database, unset inMemory")

	// cliActor performs the commands run from the terminal.
	cliActor = core.NewActor(0, "admin cli", "", rbac.AllCapabilities()...)
)

type commandLine struct {
	conf *core.Config
	db   *sql.DB // nil in memory
	out  io.Writer

	users       *user.Service
	roles       *rbac.RoleService
	permissions *rbac.PermissionService
	divisions   *division.Service
	districts   *district.Service
	schools     *school.Service
	categories  *ticket.CategoryService
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                  - run a goose command: up, up-to VERSION, down, status, ...")
	fmt.Fprintln(cli.out, "  adduser --name NAME --email EMAIL [--admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword --email EMAIL             - reset a user's password")
	fmt.Fprintln(cli.out, "  seed --file FILE                        - load divisions, districts, schools and ticket categories")
	fmt.Fprintln(cli.out, "  browse --url URL --email EMAIL RESOURCE - browse a resource list of a running API")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every capability through the Administrator role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.StringP("file", "f", "", "JSON file (comments and trailing commas allowed) to load.")

	browseCmd := flag.NewFlagSet("browse", flag.ContinueOnError)
	browseURL := browseCmd.String("url", defaultAPIURL(), "Base URL of the API.")
	browseEmail := browseCmd.String("email", "", "The email to log in with. The password will be prompted next.")

	cli.setUsage(addUserCmd, "--name NAME --email EMAIL [--admin]")
	cli.setUsage(resetPasswordCmd, "--email EMAIL")
	cli.setUsage(seedCmd, "--file FILE")
	cli.setUsage(browseCmd, "[--url URL] --email EMAIL RESOURCE")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedFile)

	case "browse":
		if err := browseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *browseEmail == "" || browseCmd.NArg() != 1 {
			browseCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.browse(*browseURL, *browseEmail, pwd, browseCmd.Arg(0))

	default:
		cli.printUsage()
		return errHelp
	}
}

// setUsage replaces the nil Usage pflag leaves on a new set.
func (cli *commandLine) setUsage(fs *flag.FlagSet, synopsis string) {
	fs.SetOutput(cli.out)
	fs.Usage = func() {
		fmt.Fprintf(cli.out, "Usage: %s %s\n", fs.Name(), synopsis)
		fs.PrintDefaults()
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func defaultAPIURL() string {
	if u := os.Getenv("SDOIMS_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8000"
}
