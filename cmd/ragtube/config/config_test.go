package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/ragtube/cmd/ragtube/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	// run executes the config command against tmpDir and returns its error.
	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .ragtube/ config directory")
		out = &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "client.api_target", "http://rag.internal:5000")).To(Succeed())

			// Verify the config file was created
			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.String()).To(ContainSubstring("client.api_target"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "client.api_target")).NotTo(Succeed())
		})

		It("rejects an unknown storage provider", func() {
			Expect(run("set", "storage.provider", "floppy")).NotTo(Succeed())
		})

		It("rejects an invalid timeout", func() {
			Expect(run("set", "client.timeout", "soon")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "client.channel_id", "UC123")).To(Succeed())

			Expect(run("get", "client.channel_id")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("UC123"))
		})

		It("reports an unset key", func() {
			Expect(run("get", "client.channel_id")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key with defaults", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("client.api_target"))
			Expect(out.String()).To(ContainSubstring("serve.listen"))
		})

		It("shows stored values", func() {
			Expect(run("set", "eventstream.topic", "chat.events")).To(Succeed())

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"chat.events"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})

