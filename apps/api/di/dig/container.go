// Package dig_container wires the API's dependencies with go.uber.org/dig.
package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/sdoims/apps/api/echo"
	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/dcp"
	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/opcr"
	"github.com/trezcool/sdoims/core/rbac"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/sbm"
	"github.com/trezcool/sdoims/core/school"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/core/user"
	blobsvc "github.com/trezcool/sdoims/services/blob"
	emailsvc "github.com/trezcool/sdoims/services/email"
	logsvc "github.com/trezcool/sdoims/services/logger"
	"github.com/trezcool/sdoims/services/pubsub"
	"github.com/trezcool/sdoims/storage/database"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	linksParam struct {
		dig.In
		RolePermissions resource.Links `name:"rolePermissions"`
		UserRoles       resource.Links `name:"userRoles"`
	}

	linksResult struct {
		dig.Out
		RolePermissions resource.Links `name:"rolePermissions"`
		UserRoles       resource.Links `name:"userRoles"`
	}

	depsParam struct {
		dig.In
		Divisions        *division.Service
		Districts        *district.Service
		Schools          *school.Service
		Permissions      *rbac.PermissionService
		Roles            *rbac.RoleService
		Users            *user.Service
		TicketCategories *ticket.CategoryService
		Tickets          *ticket.Service
		DCPBatches       *dcp.BatchService
		DCPItems         *dcp.ItemService
		DCPRecipients    *dcp.RecipientService
		DCPStatuses      *dcp.StatusService
		OPCRs            *opcr.Service
		SBMChecklists    *sbm.ChecklistService
		SBMIndicators    *sbm.IndicatorService
		SBMResponses     *sbm.ResponseService
		Hub              *pubsub.Hub
		Notifier         resource.Notifier
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && !conf.TestMode)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && !conf.TestMode)
	return logger
}

// newBackend creates and migrates the PostgreSQL database, or returns the in-memory store.
// The *sql.DB is nil in memory.
func newBackend(conf *core.Config, loggerParam DBLoggerParam) (database.Backend, *sql.DB) {
	setUp := func() (database.Backend, *sql.DB, error) {
		if !conf.InMemory {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, nil, err
			}
		}
		backend, db, err := database.NewBackend(conf)
		if err != nil {
			return nil, nil, err
		}
		if db != nil {
			if err = database.Migrate(context.Background(), db); err != nil {
				return nil, nil, err
			}
		}
		return backend, db, nil
	}

	backend, db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return backend, db
}

func newTxManager(backend database.Backend) core.TxManager { return backend }

func newLinks(backend database.Backend) linksResult {
	return linksResult{
		RolePermissions: database.NewLinks(backend, rbac.RolePermissionPivot, "role_id", "permission_id"),
		UserRoles:       database.NewLinks(backend, user.RoleUserPivot, "user_id", "role_id"),
	}
}

// repository returns a provider of the repository of table.
func repository[T resource.Record](table resource.Table) func(database.Backend) resource.Repository[T] {
	return func(backend database.Backend) resource.Repository[T] {
		return database.NewRepository[T](backend, table)
	}
}

func newValidator(backend database.Backend, translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator, backend.ExistsByID)
	user.RegisterValidators(validate, translator)
	return validate
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newNotifier publishes to the local hub, or through PostgreSQL when the bridge is on so every instance is reached.
func newNotifier(conf *core.Config, hub *pubsub.Hub, logger core.Logger) (resource.Notifier, error) {
	if !conf.Realtime.PGBridge || conf.InMemory {
		return hub, nil
	}
	bridge, err := pubsub.NewPGBridge(context.Background(), database.DSN(conf), conf.Realtime.Channel, hub, logger)
	if err != nil {
		return nil, errors.Wrap(err, "starting realtime bridge")
	}
	go bridge.Listen(context.Background())
	return bridge, nil
}

func newRoleService(
	repo resource.Repository[rbac.Role],
	links linksParam,
	permissions *rbac.PermissionService,
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *rbac.RoleService {
	return rbac.NewRoleService(repo, links.RolePermissions, permissions, tx, validate, logger)
}

func newUserService(
	repo resource.Repository[user.User],
	links linksParam,
	roles *rbac.RoleService,
	schools *school.Service,
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *user.Service {
	return user.NewService(repo, links.UserRoles, roles, schools, tx, validate, logger)
}

func newDeps(p depsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Divisions:        p.Divisions,
		Districts:        p.Districts,
		Schools:          p.Schools,
		Permissions:      p.Permissions,
		Roles:            p.Roles,
		Users:            p.Users,
		TicketCategories: p.TicketCategories,
		Tickets:          p.Tickets,
		DCPBatches:       p.DCPBatches,
		DCPItems:         p.DCPItems,
		DCPRecipients:    p.DCPRecipients,
		DCPStatuses:      p.DCPStatuses,
		OPCRs:            p.OPCRs,
		SBMChecklists:    p.SBMChecklists,
		SBMIndicators:    p.SBMIndicators,
		SBMResponses:     p.SBMResponses,
		Hub:              p.Hub,
		Notifier:         p.Notifier,
	}
}

// New returns a new dependency injection dig.Container built on conf.
func New(conf *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return conf }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newBackend))
	must(c.Provide(newTxManager))
	must(c.Provide(newLinks))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newEmailService))
	must(c.Provide(blobsvc.NewBlobStorage))
	must(c.Provide(pubsub.NewHub))
	must(c.Provide(newNotifier))

	// repositories
	must(c.Provide(repository[division.Division](division.Table)))
	must(c.Provide(repository[district.District](district.Table)))
	must(c.Provide(repository[school.School](school.Table)))
	must(c.Provide(repository[rbac.Permission](rbac.PermissionTable)))
	must(c.Provide(repository[rbac.Role](rbac.RoleTable)))
	must(c.Provide(repository[user.User](user.Table)))
	must(c.Provide(repository[ticket.Category](ticket.CategoryTable)))
	must(c.Provide(repository[ticket.Ticket](ticket.Table)))
	must(c.Provide(repository[dcp.Batch](dcp.BatchTable)))
	must(c.Provide(repository[dcp.Item](dcp.ItemTable)))
	must(c.Provide(repository[dcp.Recipient](dcp.RecipientTable)))
	must(c.Provide(repository[dcp.ItemStatus](dcp.StatusTable)))
	must(c.Provide(repository[opcr.OPCR](opcr.Table)))
	must(c.Provide(repository[sbm.Checklist](sbm.ChecklistTable)))
	must(c.Provide(repository[sbm.Indicator](sbm.IndicatorTable)))
	must(c.Provide(repository[sbm.Response](sbm.ResponseTable)))

	// services
	must(c.Provide(division.NewService))
	must(c.Provide(func(s *division.Service) district.DivisionOptions { return s }))
	must(c.Provide(district.NewService))
	must(c.Provide(func(s *district.Service) school.DistrictOptions { return s }))
	must(c.Provide(school.NewService))
	must(c.Provide(rbac.NewPermissionService))
	must(c.Provide(newRoleService))
	must(c.Provide(newUserService))
	must(c.Provide(func(s *user.Service) ticket.Directory { return s }))
	must(c.Provide(func(s *user.Service) opcr.Directory { return s }))
	must(c.Provide(func(s *school.Service) opcr.SchoolOptions { return s }))
	must(c.Provide(func(s *school.Service) dcp.Schools { return s }))
	must(c.Provide(ticket.NewCategoryService))
	must(c.Provide(ticket.NewService))
	must(c.Provide(dcp.NewBatchService))
	must(c.Provide(dcp.NewItemService))
	must(c.Provide(dcp.NewRecipientService))
	must(c.Provide(dcp.NewStatusService))
	must(c.Provide(opcr.NewService))
	must(c.Provide(sbm.NewChecklistService))
	must(c.Provide(sbm.NewIndicatorService))
	must(c.Provide(sbm.NewResponseService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
