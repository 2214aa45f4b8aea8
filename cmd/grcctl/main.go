package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Armour007/grc-backend/pkg/client"
)

var resources = map[string]bool{
	"assets": true, "risks": true, "controls": true, "frameworks": true, "policies": true,
	"evidence": true, "audits": true, "bcm": true, "users": true,
}

type cli struct {
	out         io.Writer
	sessionPath string
	server      string
	now         func() time.Time
}

func main() {
	path, err := client.DefaultSessionPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	c := &cli{out: os.Stdout, sessionPath: path, now: time.Now}
	if err := c.root().Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "grcctl",
		Short:         "Command line client for the GRC API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&c.server, "server", envOr("GRC_SERVER", "http://localhost:5000"), "API base URL")
	root.PersistentFlags().StringVar(&c.sessionPath, "session", c.sessionPath, "Session file")

	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("GRC_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or GRC_PASSWORD) are required")
			}
			api := client.New(c.server)
			u, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			s := &client.Session{BaseURL: c.server, Token: u.Token, UserID: u.ID, Email: u.Email, Role: u.Role}
			if err := s.Save(c.sessionPath); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Logged in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "Account email")
	login.Flags().StringVar(&password, "password", "", "Account password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := client.RemoveSession(c.sessionPath); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.session()
			if err != nil {
				return err
			}
			p, err := api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(p)
		},
	}

	list := &cobra.Command{
		Use:   "list <resource>",
		Short: "List records of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.resourceSession(args[0])
			if err != nil {
				return err
			}
			var out []map[string]any
			if err := api.List(cmd.Context(), args[0], &out); err != nil {
				return err
			}
			return c.print(out)
		},
	}

	get := &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.resourceSession(args[0])
			if err != nil {
				return err
			}
			var out map[string]any
			if err := api.Get(cmd.Context(), args[0], args[1], &out); err != nil {
				return err
			}
			return c.print(out)
		},
	}

	del := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.resourceSession(args[0])
			if err != nil {
				return err
			}
			msg, err := api.Delete(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, msg)
			return nil
		},
	}

	attest := &cobra.Command{
		Use:   "attest <policy-id>",
		Short: "Attest that you have read a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.session()
			if err != nil {
				return err
			}
			msg, err := api.Attest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, msg)
			return nil
		},
	}

	root.AddCommand(login, logout, whoami, list, get, del, attest)
	root.SetContext(context.Background())
	return root
}

// session returns a client carrying the stored token. The stored server wins unless --server was changed.
func (c *cli) session() (*client.Client, error) {
	s, err := client.LoadSession(c.sessionPath, c.now())
	if errors.Is(err, client.ErrNoSession) {
		return nil, errors.New("not logged in or session expired; run grcctl login")
	}
	if err != nil {
		return nil, err
	}
	base := c.server
	if s.BaseURL != "" && base == envOr("GRC_SERVER", "http://localhost:5000") {
		base = s.BaseURL
	}
	api := client.New(base)
	api.Token = s.Token
	return api, nil
}

func (c *cli) resourceSession(resource string) (*client.Client, error) {
	if !resources[resource] {
		return nil, fmt.Errorf("unknown resource %q", resource)
	}
	return c.session()
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
