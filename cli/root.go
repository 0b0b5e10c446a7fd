package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vmget/app"
	"vmget/config"
)

const rootHelp = `vmget downloads operating system images and creates quickemu VM definitions.

Pick an OS from the catalog, narrow it down by release, edition and
architecture, and vmget fetches every file the configuration needs into
<dir>/<name>/ before writing <dir>/<name>.conf.

Run 'vmget serve' for the JSON control API, or 'vmget get' to create a
VM from the command line.

Configuration is read from VMGET_* environment variables, a .env file in
the working directory and the YAML file given with --config.`

type globalOptions struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

// load reads the configuration and builds the logger
func (g *globalOptions) load(errOut io.Writer) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.debug {
		cfg.Log.Level = "debug"
	}
	g.cfg = cfg
	g.logger = app.NewLogger(cfg.Log, errOut)
	slog.SetDefault(g.logger)
	return nil
}

func (g *globalOptions) container(opts ...app.Option) (*app.Container, error) {
	c, err := app.NewContainer(g.cfg, g.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w (is another vmget process using %s?)", err, g.cfg.DBFilePath())
	}
	return c, nil
}

// NewRootCmd builds the vmget command tree writing to out and logging to errOut
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "vmget",
		Short:         "Download OS images and create quickemu VMs",
		Long:          rootHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(errOut)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.StringVar(&g.configPath, "config", os.Getenv("VMGET_CONFIG"), "path to a YAML config file")
	f.BoolVar(&g.debug, "debug", false, "enable verbose output")

	cmd.AddCommand(
		newServeCmd(g, out),
		newListCmd(g, out),
		newGetCmd(g, out),
		newConfigsCmd(g, out),
		newHistoryCmd(g, out),
	)
	return cmd
}

// Execute runs the command line against os.Args
func Execute(out, errOut io.Writer, args []string) error {
	cmd := NewRootCmd(out, errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return err
	}
	return nil
}
