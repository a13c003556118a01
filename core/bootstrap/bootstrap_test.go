package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/feedbackbot/core/config"
	coredatabase "github.com/m3rciful/feedbackbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunOrderWithoutSQL(t *testing.T) {
	var steps []string
	opts := Options[string]{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverDynamoDB},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, nil
		},
		Migrate: func(coredatabase.Config) error {
			steps = append(steps, "migrate")
			return nil
		},
		Modules: Modules[string]{
			Services: ServiceProviderFunc[string](func(_ context.Context, db *sqlx.DB) (string, error) {
				assert.Nil(t, db)
				steps = append(steps, "services")
				return "svc", nil
			}),
			Seeders: []Seeder[string]{
				SeederFunc[string](func(_ context.Context, svc string) error {
					steps = append(steps, "seed:"+svc)
					return nil
				}),
			},
		},
	}

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "svc", res.Services)
	assert.Equal(t, []string{"migrate", "services", "seed:svc"}, steps)
	assert.NoError(t, res.Close())
}

func TestRunStopsOnFailures(t *testing.T) {
	boom := errors.New("boom")
	base := func() Options[int] {
		return Options[int]{
			Config:     &coreconfig.Config{},
			Database:   coredatabase.Config{Driver: coredatabase.DriverDynamoDB},
			LoggerInit: noLogger,
			Migrate:    func(coredatabase.Config) error { return nil },
		}
	}

	_, err := Run(context.Background(), Options[int]{})
	assert.Error(t, err)

	opts := base()
	opts.Migrate = func(coredatabase.Config) error { return boom }
	_, err = Run(context.Background(), opts)
	assert.ErrorIs(t, err, boom)

	opts = base()
	opts.Modules.Seeders = []Seeder[int]{SeederFunc[int](func(context.Context, int) error { return boom })}
	_, err = Run(context.Background(), opts)
	assert.ErrorIs(t, err, boom)

	opts = base()
	opts.Database = coredatabase.Config{Driver: coredatabase.DriverSQLite}
	opts.Connect = func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom }
	_, err = Run(context.Background(), opts)
	assert.ErrorIs(t, err, boom)
}
