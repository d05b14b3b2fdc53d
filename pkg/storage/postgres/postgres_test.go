package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/storage/postgres"
	"github.com/papercomputeco/ragtube/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("RAGTUBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("RAGTUBE_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		ctx := context.Background()
		driver, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Each test starts from an empty table.
		_, err = driver.DB().ExecContext(ctx, "TRUNCATE messages")
		Expect(err).NotTo(HaveOccurred())
		return driver
	})

	It("fails to connect to an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://ragtube@127.0.0.1:1/ragtube?sslmode=disable&connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})
})
