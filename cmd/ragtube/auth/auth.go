// Package authcmder provides the auth command for storing RAG backend
// credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/credentials"
)

const authLongDesc string = `Store HTTP Basic credentials for a RAG backend.

Credentials are stored in credentials.toml in the .ragtube/ directory, keyed
by backend URL, and sent with every request to that backend. The target
defaults to the configured client.api_target.

The RAGTUBE_USERNAME and RAGTUBE_PASSWORD environment variables override
stored credentials.

Examples:
  ragtube auth --username alice                     Prompt for the password
  ragtube auth https://rag.example.com -u alice     Store for another backend
  ragtube auth --list                               List stored credentials
  ragtube auth --remove https://rag.example.com     Remove stored credentials
  echo $PASSWORD | ragtube auth -u alice            Pipe the password from stdin`

const authShortDesc string = "Store credentials for the RAG backend"

type authCommander struct {
	username string
	list     bool
	remove   string

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [target]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			configDir := bootstrap.ConfigDir(cmd)

			switch {
			case cmder.list:
				return cmder.runList(configDir)
			case cmder.remove != "":
				return cmder.runRemove(cmder.remove, configDir)
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			} else {
				cfg, err := bootstrap.LoadConfig(cmd)
				if err != nil {
					return err
				}
				target = cfg.Client.APITarget
			}
			return cmder.runAuth(target, configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.username, "username", "u", "", "Username for HTTP Basic auth")
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove stored credentials for a backend URL")

	return cmd
}

func (c *authCommander) runAuth(target, configDir string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.New("backend URL required")
	}

	username := strings.TrimSpace(c.username)
	if username == "" {
		return errors.New("--username is required")
	}

	password, err := c.readPassword(target)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetBasicAuth(target, username, password); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored credentials for %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(target),
		cliui.DimStyle.Render("(user "+username+")"),
	)
	return nil
}

func (c *authCommander) runList(configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	targets, err := mgr.ListTargets()
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'ragtube auth --username <name>' to store credentials.\n\n")
		return nil
	}

	creds, err := mgr.Load()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, t := range targets {
		fmt.Fprintf(c.out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.ValueStyle.Render(t),
			cliui.DimStyle.Render("user "+creds.Backends[t].Username),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(target, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Remove(target); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed credentials for %s.\n\n", cliui.SuccessMark, cliui.ValueStyle.Render(target))
	return nil
}

// readPassword reads the password from stdin. If stdin is not a terminal,
// it reads the first line. Otherwise, it prompts interactively with hidden input.
func (c *authCommander) readPassword(target string) (string, error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		scanner := bufio.NewScanner(c.in)
		if scanner.Scan() {
			return strings.TrimSpace(scanner.Text()), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	// Interactive terminal
	fmt.Fprintf(c.out, "Password for %s: ", target)

	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimSpace(string(pw)), nil
}
