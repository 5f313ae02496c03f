package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
)

// cli is the state shared by every command.
type cli struct {
	v   *viper.Viper
	in  io.Reader
	out io.Writer
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), in: in, out: out}

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Command line client for the pipeline CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default $HOME/.pipeline-crm/config.yaml)")
	pf.StringP("server", "s", "http://localhost:8080", "CRM base URL")
	pf.String("session", "", "session file (default $HOME/.pipeline-crm/session.json)")
	pf.StringP("output", "o", "table", "output format: table or json")
	pf.Duration("timeout", 30*time.Second, "request timeout")
	for _, name := range []string{"config", "server", "session", "output", "timeout"} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.clientsCmd(),
		c.boardCmd(),
		c.usersCmd(),
		c.analyticsCmd(),
	)
	return root
}

// initConfig layers the config file and CRM_* variables under the flags.
func (c *cli) initConfig() error {
	c.v.SetEnvPrefix("CRM")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if file := c.v.GetString("config"); file != "" {
		c.v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		c.v.AddConfigPath(filepath.Join(home, ".pipeline-crm"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && c.v.GetString("config") != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}
	switch c.v.GetString("output") {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.v.GetString("output"))
	}
	return nil
}

func (c *cli) sessionPath() (string, error) {
	if p := c.v.GetString("session"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".pipeline-crm", "session.json"), nil
}

func (c *cli) jsonOutput() bool { return c.v.GetString("output") == "json" }

// withClient runs fn with a client primed from the saved session and
// writes the cookies back afterwards, whatever fn returned: the server may
// have rotated or cleared them.
func (c *cli) withClient(cmd *cobra.Command, fn func(ctx context.Context, api *apiclient.Client) error) error {
	path, err := c.sessionPath()
	if err != nil {
		return err
	}
	sess, err := loadSession(path)
	if err != nil {
		return err
	}
	server := strings.TrimRight(c.v.GetString("server"), "/")
	api, err := apiclient.New(server, apiclient.WithTimeout(c.v.GetDuration("timeout")))
	if err != nil {
		return err
	}
	if sess.Server == server {
		api.SetTokens(sess.AccessToken, sess.RefreshToken)
	} else {
		sess = session{Server: server}
	}

	runErr := fn(cmd.Context(), api)

	sess.AccessToken, sess.RefreshToken = api.Tokens()
	if err := sess.save(path); err != nil {
		return errors.Join(runErr, err)
	}
	if apiclient.IsUnauthenticated(runErr) {
		return fmt.Errorf("%w (run `crmctl login`)", runErr)
	}
	return runErr
}
