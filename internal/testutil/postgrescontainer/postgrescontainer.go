// Package postgrescontainer manages the throwaway Postgres instance backing
// the repository integration tests.
package postgrescontainer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/EgejuruProsper/alx-polly-sub001/internal/testutil/dockertest"
)

const (
	hostPort = "55432"
	user     = "polly"
	password = "secret"
	dbName   = "polly_test"
)

var container = dockertest.Container{
	Dockerfile: "Dockerfile.postgres.test",
	Image:      "alx-polly-postgres-test",
	Name:       "alx-polly-postgres-test",
	HostPort:   hostPort,
	GuestPort:  "5432",
}

var (
	once     sync.Once
	setupErr error
)

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return "127.0.0.1:" + hostPort }

// DSN returns a lib/pq formatted connection string.
func DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, Addr(), dbName)
}

// Setup builds and launches the Postgres container and waits until it
// accepts connections.
func Setup() error {
	once.Do(func() {
		if setupErr = container.Start(); setupErr != nil {
			return
		}
		setupErr = waitForPostgres(DSN(), 10*time.Second)
	})
	return setupErr
}

// Teardown stops the container launched by Setup. A later Setup relaunches it.
func Teardown() error {
	if setupErr != nil {
		return setupErr
	}
	if err := container.Stop(); err != nil {
		return err
	}
	once = sync.Once{}
	return nil
}

func waitForPostgres(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := func() error {
			db, err := sql.Open("postgres", dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.PingContext(ctx)
		}()
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("postgres container did not become ready in time")
}
