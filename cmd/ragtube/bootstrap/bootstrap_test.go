package bootstrap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/credentials"
	"github.com/papercomputeco/ragtube/pkg/eventstream/nop"
	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/storage/inmemory"
	"github.com/papercomputeco/ragtube/pkg/storage/sqlite"
)

// newCmd builds a command carrying the root persistent flags and the
// api-target flag.
func newCmd(configDir string, target *string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("config-dir", configDir, "")
	cmd.Flags().Bool("debug", false, "")
	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, target)
	return cmd
}

var _ = Describe("bootstrap", func() {
	var configDir string

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		GinkgoT().Setenv("RAGTUBE_CLIENT_API_TARGET", "")
		GinkgoT().Setenv("RAGTUBE_SQLITE", "")
		GinkgoT().Setenv("RAGTUBE_DB", "")
		GinkgoT().Setenv(credentials.EnvUsername, "")
		GinkgoT().Setenv(credentials.EnvPassword, "")
	})

	Describe("LoadConfig", func() {
		It("uses defaults when nothing is set", func() {
			var target string
			cmd := newCmd(configDir, &target)

			cfg, err := bootstrap.LoadConfig(cmd, config.FlagAPITarget)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.APITarget).To(Equal("http://localhost:5000"))
		})

		It("prefers the config file over defaults", func() {
			cfger, err := config.NewConfiger(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SetConfigValue("client.api_target", "http://rag.internal:5000")).To(Succeed())

			var target string
			cfg, err := bootstrap.LoadConfig(newCmd(configDir, &target), config.FlagAPITarget)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.APITarget).To(Equal("http://rag.internal:5000"))
		})

		It("prefers a changed flag over everything", func() {
			GinkgoT().Setenv("RAGTUBE_CLIENT_API_TARGET", "http://env:5000")

			var target string
			cmd := newCmd(configDir, &target)
			Expect(cmd.Flags().Set("api-target", "http://flag:5000")).To(Succeed())

			cfg, err := bootstrap.LoadConfig(cmd, config.FlagAPITarget)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Client.APITarget).To(Equal("http://flag:5000"))
		})
	})

	Describe("NewClient", func() {
		It("sends stored basic auth credentials", func() {
			var gotUser, gotPass string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, gotPass, _ = r.BasicAuth()
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			}))
			defer srv.Close()

			mgr, err := credentials.NewManager(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetBasicAuth(srv.URL, "alice", "s3cret")).To(Succeed())

			cfg := config.NewDefaultConfig()
			cfg.Client.APITarget = srv.URL

			client, err := bootstrap.NewClient(cfg, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			status, err := client.Readiness(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(status.OK()).To(BeTrue())
			Expect(gotUser).To(Equal("alice"))
			Expect(gotPass).To(Equal("s3cret"))
		})
	})

	Describe("OpenStorage", func() {
		It("opens the in-memory driver", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Provider = "memory"

			driver, err := bootstrap.OpenStorage(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()
			Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("creates the SQLite database in the config directory by default", func() {
			home := GinkgoT().TempDir()
			GinkgoT().Setenv("HOME", home)
			GinkgoT().Setenv("XDG_DATA_HOME", "")

			cfg := config.NewDefaultConfig()
			cfg.Storage.Provider = "sqlite"
			cfg.Storage.SQLitePath = ""

			driver, err := bootstrap.OpenStorage(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()
			Expect(driver).To(BeAssignableToTypeOf(&sqlite.SQLiteDriver{}))

			_, err = os.Stat(filepath.Join(configDir, "ragtube.db"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a DSN for postgres", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Provider = "postgres"

			_, err := bootstrap.OpenStorage(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
		})

		It("rejects unknown providers", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Provider = "floppy"

			_, err := bootstrap.OpenStorage(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("OpenPublisher", func() {
		It("defaults to the no-op publisher", func() {
			p, err := bootstrap.OpenPublisher(config.NewDefaultConfig(), logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("requires brokers for kafka", func() {
			cfg := config.NewDefaultConfig()
			cfg.EventStream.Provider = "kafka"
			cfg.EventStream.Brokers = ""

			_, err := bootstrap.OpenPublisher(cfg, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("builds a kafka publisher without dialing", func() {
			cfg := config.NewDefaultConfig()
			cfg.EventStream.Provider = "kafka"
			cfg.EventStream.Brokers = "localhost:9092"

			p, err := bootstrap.OpenPublisher(cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Close()).To(Succeed())
		})
	})
})
