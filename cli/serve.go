package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vmget/app"
	"vmget/testdata"
)

type serveOptions struct {
	addr string
	data testdata.Config
}

func newServeCmd(g *globalOptions, out io.Writer) *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the JSON control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.run(ctx, g)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "listen address, overrides http.addr")
	f.BoolVar(&o.data.MockData, "mock-data", false, "populate the history with mock sessions for API testing")
	f.BoolVar(&o.data.ClearData, "clear-data", false, "clear history and remembered settings before starting")
	return cmd
}

func (o *serveOptions) run(ctx context.Context, g *globalOptions) error {
	if o.addr != "" {
		g.cfg.HTTP.Addr = o.addr
	}

	c, err := g.container()
	if err != nil {
		return err
	}

	svc := testdata.NewMockDataService(c.SettingsRepo, c.SessionRepo)
	if err := testdata.HandleDataOperations(&o.data, svc, g.cfg.Download.Dir, g.logger); err != nil {
		c.Close()
		return err
	}

	return app.NewApplication(c).Run(ctx)
}
