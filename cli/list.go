package cli

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"vmget/app"
	"vmget/catalog"
)

var listHelp = `
List prints the operating systems in the catalog.

With an OS name it prints every configuration of that OS instead:

    $ vmget list alpine
    RELEASE	EDITION	ARCH   	FILES
    3.19   	       	x86_64 	1
    3.19   	       	aarch64	1
`

type listOptions struct {
	output string
}

func newListCmd(g *globalOptions, out io.Writer) *cobra.Command {
	o := &listOptions{}

	cmd := &cobra.Command{
		Use:     "list [OS]",
		Short:   "list catalog entries or the configurations of one OS",
		Long:    listHelp,
		Aliases: []string{"ls"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseFormat(o.output)
			if err != nil {
				return err
			}

			provider := app.NewCatalogProvider(g.cfg, afero.NewOsFs(), g.logger)
			list, err := provider.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			if len(args) == 0 {
				return format.Write(out, osList(list))
			}
			os, ok := catalog.Find(list, args[0])
			if !ok {
				return fmt.Errorf("no OS named %q in the catalog", args[0])
			}
			return format.Write(out, configList(os.Releases))
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", string(Table), "prints the output in the specified format (table|json|yaml)")
	return cmd
}

type osList []catalog.OS

func (l osList) WriteJSON(out io.Writer) error { return encodeJSON(out, l) }
func (l osList) WriteYAML(out io.Writer) error { return encodeYAML(out, l) }

func (l osList) WriteTable(out io.Writer) error {
	tbl := uitable.New()
	tbl.AddRow("NAME", "DESCRIPTION", "CONFIGS")
	for _, os := range l {
		tbl.AddRow(os.Name, os.PrettyName, len(os.Releases))
	}
	return encodeTable(out, tbl)
}

type configList []catalog.ReleaseConfig

func (l configList) WriteJSON(out io.Writer) error { return encodeJSON(out, l) }
func (l configList) WriteYAML(out io.Writer) error { return encodeYAML(out, l) }

func (l configList) WriteTable(out io.Writer) error {
	tbl := uitable.New()
	tbl.AddRow("RELEASE", "EDITION", "ARCH", "FILES")
	for _, rc := range l {
		tbl.AddRow(rc.Release, rc.Edition, rc.Arch, len(rc.Sources))
	}
	return encodeTable(out, tbl)
}
