// Package database opens the PostgreSQL connection, creates and migrates the
// database, and builds the resource repositories for the configured backend.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
	appfs "github.com/trezcool/sdoims/fs"
	boiledrepos "github.com/trezcool/sdoims/storage/database/sqlboiler"
	inmemdb "github.com/trezcool/sdoims/storage/database/inmem"
)

const migrationsDir = "migrations"

// Backend is the store the repositories are built on: a *boiledrepos.Store or an *inmemdb.DB.
type Backend interface {
	core.TxManager
	ExistsByID(ctx context.Context, table string, id int64) (bool, error)
}

// NewBackend returns the in-memory store when conf.InMemory is set, and the PostgreSQL store otherwise.
func NewBackend(conf *core.Config) (Backend, *sql.DB, error) {
	if conf.InMemory {
		return inmemdb.NewDB(), nil, nil
	}
	db, err := Open(conf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return boiledrepos.NewStore(db), db, nil
}

// NewRepository builds the repository of table on backend.
func NewRepository[T resource.Record](backend Backend, table resource.Table) resource.Repository[T] {
	switch be := backend.(type) {
	case *boiledrepos.Store:
		return boiledrepos.NewRepository[T](be, table)
	case *inmemdb.DB:
		return inmemdb.NewRepository[T](be, table)
	}
	panic(fmt.Sprintf("database: unsupported backend %T", backend))
}

// NewLinks builds the pivot table manager joining ownerCol to targetCol.
func NewLinks(backend Backend, pivot, ownerCol, targetCol string) resource.Links {
	switch be := backend.(type) {
	case *boiledrepos.Store:
		return boiledrepos.NewLinks(be, pivot, ownerCol, targetCol)
	case *inmemdb.DB:
		return inmemdb.NewLinks(be, pivot, ownerCol, targetCol)
	}
	panic(fmt.Sprintf("database: unsupported backend %T", backend))
}

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// DSN is the connection URL of the application database.
func DSN(conf *core.Config) string {
	return dsn(conf.Database.Name, false, conf)
}

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(dbName, admin, conf))
}

func Open(conf *core.Config) (*sql.DB, error) {
	return open(conf.Database.Name, false, conf)
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRow(query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		// identifiers and passwords cannot be bound as parameters here
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

func init() {
	goose.SetBaseFS(appfs.FS)
}

// RunMigrations runs the goose command (up, down, status, ...) against the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return goose.RunContext(ctx, command, db, migrationsDir, args...)
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := RunMigrations(ctx, db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
