package orders

import (
	"github.com/openmall/mall-go/libs/datastore"

	// needed for magic migration
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Datastore abstracts over the underlying datastore.
type Datastore interface {
	datastore.Datastore
}

// Postgres is a Datastore wrapper around a postgres database.
type Postgres struct {
	datastore.Postgres
}

// NewPostgres creates a new Postgres Datastore.
func NewPostgres(databaseURL string, performMigration bool, dbStatsPrefix ...string) (Datastore, error) {
	pg, err := datastore.NewPostgres(databaseURL, performMigration, dbStatsPrefix...)
	if err != nil {
		return nil, err
	}

	return &Postgres{*pg}, nil
}
