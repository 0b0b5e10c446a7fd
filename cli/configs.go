package cli

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"vmget/store"
)

type configsOptions struct {
	output string
}

func newConfigsCmd(g *globalOptions, out io.Writer) *cobra.Command {
	o := &configsOptions{}

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "show the default directory and every VM config written so far",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseFormat(o.output)
			if err != nil {
				return err
			}

			c, err := g.container()
			if err != nil {
				return err
			}
			defer c.Close()

			settings, err := c.Sessions.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if settings.KnownConfigs == nil {
				settings.KnownConfigs = []string{}
			}
			return format.Write(out, (*settingsWriter)(settings))
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", string(Table), "prints the output in the specified format (table|json|yaml)")
	return cmd
}

type settingsWriter store.Settings

func (s *settingsWriter) WriteJSON(out io.Writer) error { return encodeJSON(out, (*store.Settings)(s)) }
func (s *settingsWriter) WriteYAML(out io.Writer) error { return encodeYAML(out, (*store.Settings)(s)) }

func (s *settingsWriter) WriteTable(out io.Writer) error {
	tbl := uitable.New()
	tbl.AddRow("DEFAULT DIRECTORY:", s.DefaultDir)
	if err := encodeTable(out, tbl); err != nil {
		return err
	}

	tbl = uitable.New()
	tbl.AddRow("CONFIG")
	for _, path := range s.KnownConfigs {
		tbl.AddRow(path)
	}
	return encodeTable(out, tbl)
}

type historyOptions struct {
	output string
	max    int
}

func newHistoryCmd(g *globalOptions, out io.Writer) *cobra.Command {
	o := &historyOptions{}

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "show past download sessions, newest first",
		Aliases: []string{"hist"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseFormat(o.output)
			if err != nil {
				return err
			}

			c, err := g.container()
			if err != nil {
				return err
			}
			defer c.Close()

			records, err := c.Sessions.History(cmd.Context())
			if err != nil {
				return err
			}
			if o.max > 0 && len(records) > o.max {
				records = records[:o.max]
			}
			if records == nil {
				records = []*store.SessionRecord{}
			}
			return format.Write(out, historyList(records))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", string(Table), "prints the output in the specified format (table|json|yaml)")
	f.IntVar(&o.max, "max", 0, "maximum number of sessions to include (0 for all)")
	return cmd
}

type historyList []*store.SessionRecord

func (l historyList) WriteJSON(out io.Writer) error { return encodeJSON(out, l) }
func (l historyList) WriteYAML(out io.Writer) error { return encodeYAML(out, l) }

func (l historyList) WriteTable(out io.Writer) error {
	tbl := uitable.New()
	tbl.MaxColWidth = 60
	tbl.AddRow("STARTED", "NAME", "OS", "RELEASE", "ARCH", "STATUS", "FILES", "DETAILS")
	for _, r := range l {
		details := r.ConfigPath
		if r.ErrorMessage != "" {
			details = r.ErrorMessage
		}
		tbl.AddRow(humanize.Time(r.StartedAt), r.Name, r.OS, release(r), r.Arch, r.Status, len(r.Files), details)
	}
	return encodeTable(out, tbl)
}

func release(r *store.SessionRecord) string {
	if r.Edition == "" {
		return r.Release
	}
	return r.Release + " " + r.Edition
}
