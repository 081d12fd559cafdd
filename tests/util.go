// Package testutil holds the fixtures shared by package tests: an in-memory backend and the ambient services.
package testutil

import (
	"fmt"
	"io"
	"log"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/rbac"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/user"
	blobsvc "github.com/trezcool/sdoims/services/blob"
	emailsvc "github.com/trezcool/sdoims/services/email"
	logsvc "github.com/trezcool/sdoims/services/logger"
	"github.com/trezcool/sdoims/services/pubsub"
	inmemdb "github.com/trezcool/sdoims/storage/database/inmem"
)

// Env is a fresh in-memory world for one test.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Logger     core.Logger
	Translator ut.Translator
	Validate   *validator.Validate
	Mailer     *emailsvc.ConsoleServiceMock
	Blobs      *blobsvc.Local
	Hub        *pubsub.Hub
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.RootDir = t.TempDir()

	logger := NewLogger(conf)
	db := inmemdb.NewDB()
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator, db.ExistsByID)
	user.RegisterValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	return &Env{
		Conf:       conf,
		DB:         db,
		Logger:     logger,
		Translator: translator,
		Validate:   validate,
		Mailer:     emailsvc.NewConsoleServiceMock(conf, logger),
		Blobs:      blobsvc.NewLocal(conf.Storage.RootDir),
		Hub:        pubsub.NewHub(logger),
	}
}

// NewLogger returns a silent logger that never reports to Rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// Repo builds the in-memory repository of table.
func Repo[T resource.Record](env *Env, table resource.Table) resource.Repository[T] {
	return inmemdb.NewRepository[T](env.DB, table)
}

// Actor returns an actor holding perms.
func Actor(perms ...string) core.Actor {
	return core.NewActor(1, "Test Actor", "actor@test.ph", perms...)
}

// Superuser returns an actor holding every capability.
func Superuser() core.Actor {
	return core.NewActor(1, "Superuser", "admin@test.ph", rbac.AllCapabilities()...)
}

// Capabilities lists the given actions of res, e.g. Capabilities("district", "access", "create").
func Capabilities(res string, actions ...string) []string {
	if len(actions) == 0 {
		actions = core.Actions
	}
	caps := make([]string, 0, len(actions))
	for _, a := range actions {
		caps = append(caps, core.Capability(res, a))
	}
	return caps
}

// Must panics on err and returns v, so fixtures can be built inline: testutil.Must(svc.Create(...)).
func Must[V any](v V, err error) V {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %+v", err))
	}
	return v
}
