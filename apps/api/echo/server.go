package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/cors"

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
	"github.com/trezcool/sdoims/services/pubsub"
)

type (
	// Deps are the services exposed over HTTP.
	Deps struct {
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

		// Hub serves the realtime subscriptions; Notifier publishes to it, possibly through another instance.
		Hub      *pubsub.Hub
		Notifier resource.Notifier
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		translator ut.Translator
		deps       *Deps

		app      *echo.Echo
		srv      *http.Server
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, translator ut.Translator, deps *Deps) *Server {
	s := &Server{
		conf:       conf,
		logger:     logger,
		translator: translator,
		deps:       deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()

	s.srv = &http.Server{
		Addr: conf.Server.Host,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   conf.Server.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType, HeaderSocketID},
			AllowCredentials: true,
		}).Handler(s.app),
	}
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug && !s.conf.TestMode

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(s.conf, "header:"+echo.HeaderAuthorization))
	authed := []echo.MiddlewareFunc{jwt, actorMiddleware(s.deps.Users)}

	registerAuthAPI(v1, s.conf, s.deps.Users, authed...)
	registerRealtimeAPI(v1, s.conf, s.deps, s.logger)

	g := v1.Group("", authed...)
	s.registerResources(g)
}

func (s *Server) registerResources(g *echo.Group) {
	d := s.deps
	rd := routeDeps{notifier: d.Notifier, logger: s.logger}

	registerResource[division.Division, division.NewDivision, division.UpdateDivision](g, "/divisions", d.Divisions, nil, rd)
	registerResource[district.District, district.NewDistrict, district.UpdateDistrict](g, "/districts", d.Districts, d.Districts, rd)
	registerResource[school.School, school.NewSchool, school.UpdateSchool](g, "/schools", d.Schools, d.Schools, rd)
	registerResource[rbac.Permission, rbac.NewPermission, rbac.UpdatePermission](g, "/permissions", d.Permissions, nil, rd)
	registerResource[rbac.Role, rbac.NewRole, rbac.UpdateRole](g, "/roles", d.Roles, d.Roles, rd)
	registerResource[user.User, user.NewUser, user.UpdateUser](g, "/users", d.Users, d.Users, rd)
	registerResource[ticket.Category, ticket.NewCategory, ticket.UpdateCategory](g, "/ticket-categories", d.TicketCategories, nil, rd)
	registerResource[ticket.Ticket, ticket.NewTicket, ticket.UpdateTicket](g, "/tickets", d.Tickets, d.Tickets, rd)
	registerResource[dcp.Batch, dcp.NewBatch, dcp.UpdateBatch](g, "/dcp-batches", d.DCPBatches, nil, rd)
	items := registerResource[dcp.Item, dcp.NewItem, dcp.UpdateItem](g, "/dcp-items", d.DCPItems, d.DCPItems, rd)
	recipients := registerResource[dcp.Recipient, dcp.NewRecipient, dcp.UpdateRecipient](g, "/dcp-recipients", d.DCPRecipients, d.DCPRecipients, rd)
	statuses := registerResource[dcp.ItemStatus, dcp.StatusEntry, dcp.UpdateItemStatus](g, "/dcp-item-statuses", d.DCPStatuses, nil, rd, withoutCreate)
	registerResource[opcr.OPCR, opcr.NewOPCR, opcr.UpdateOPCR](g, "/opcrs", d.OPCRs, d.OPCRs, rd)
	registerResource[sbm.Checklist, sbm.NewChecklist, sbm.UpdateChecklist](g, "/sbm-checklists", d.SBMChecklists, nil, rd)
	indicators := registerResource[sbm.Indicator, sbm.NewIndicator, sbm.UpdateIndicator](g, "/sbm-indicators", d.SBMIndicators, d.SBMIndicators, rd)
	responses := registerResource[sbm.Response, sbm.ResponseEntry, sbm.UpdateResponse](g, "/sbm-responses", d.SBMResponses, nil, rd, withoutCreate)

	// nested lists
	g.GET("/dcp-batches/:pid/items", items.scopedList)
	g.GET("/dcp-batches/:pid/recipients", recipients.scopedList)
	g.GET("/dcp-recipients/:pid/statuses", statuses.scopedList)
	g.GET("/sbm-checklists/:pid/indicators", indicators.scopedList)
	g.GET("/sbm-checklists/:pid/responses", responses.scopedList)

	// workflows
	g.POST("/opcrs/:id/review", reviewHandler(d.OPCRs, rd))
	g.POST("/dcp-recipients/:id/statuses", submitHandler(d.DCPStatuses.Submit, rd))
	g.POST("/sbm-checklists/:id/responses", submitHandler(d.SBMResponses.Submit, rd))
}

// Start listens until the server is shut down; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the application to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.srv.Handler.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the SDO IMS API!")
}
