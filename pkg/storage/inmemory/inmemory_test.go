package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/storage/inmemory"
	"github.com/papercomputeco/ragtube/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns a copy of the session", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()
		Expect(driver.PutMessages(ctx, "s1", storagetest.Exchange("e1", "q", 0))).To(Succeed())

		msgs, err := driver.GetSession(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		msgs[0].Text = "changed"

		again, err := driver.GetSession(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again[0].Text).To(Equal("q"))
	})
})
