package authcmder_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	authcmder "github.com/papercomputeco/ragtube/cmd/ragtube/auth"
	"github.com/papercomputeco/ragtube/pkg/credentials"
)

var _ = Describe("auth command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	run := func(stdin string, args ...string) error {
		cmd := authcmder.NewAuthCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .ragtube/ config directory")
		out = &bytes.Buffer{}
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("stores credentials read from stdin", func() {
		Expect(run("s3cret\n", "https://rag.example.com", "--username", "alice")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Stored credentials for https://rag.example.com"))

		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		auth, err := mgr.GetBasicAuth("https://rag.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(auth.Username).To(Equal("alice"))
		Expect(auth.Password).To(Equal("s3cret"))
	})

	It("requires a username", func() {
		err := run("s3cret\n", "https://rag.example.com")
		Expect(err).To(MatchError(ContainSubstring("--username is required")))
	})

	It("rejects an empty password", func() {
		err := run("\n", "https://rag.example.com", "-u", "alice")
		Expect(err).To(MatchError(ContainSubstring("password cannot be empty")))
	})

	It("fails when stdin is empty", func() {
		err := run("", "https://rag.example.com", "-u", "alice")
		Expect(err).To(MatchError(ContainSubstring("no input received")))
	})

	It("lists and removes stored credentials", func() {
		Expect(run("pw\n", "https://a.example.com", "-u", "alice")).To(Succeed())
		Expect(run("pw\n", "https://b.example.com", "-u", "bob")).To(Succeed())

		Expect(run("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("https://a.example.com"))
		Expect(out.String()).To(ContainSubstring("user bob"))

		Expect(run("", "--remove", "https://a.example.com")).To(Succeed())
		Expect(run("", "--list")).To(Succeed())
		Expect(out.String()).NotTo(ContainSubstring("https://a.example.com"))
		Expect(out.String()).To(ContainSubstring("https://b.example.com"))
	})

	It("reports when nothing is stored", func() {
		Expect(run("", "--list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No stored credentials"))
	})
})
