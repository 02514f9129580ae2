package cmd

import (
	"fmt"
	"strings"

	"github.com/cottand/qinfer/inference/typesys"
	"github.com/spf13/cobra"
)

var SystemsCmd = &cobra.Command{
	Use:          "systems",
	Short:        "List the registered type systems and their qualifiers",
	Args:         cobra.NoArgs,
	RunE:         runSystems,
	SilenceUsage: true,
}

func runSystems(cmd *cobra.Command, _ []string) error {
	for _, name := range typesys.Names() {
		system, err := typesys.Lookup(name)
		if err != nil {
			return err
		}
		qualifiers := make([]string, 0)
		for _, q := range system.Lattice().Qualifiers() {
			qualifiers = append(qualifiers, q.String())
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s (default %s)\n", name, strings.Join(qualifiers, " "), system.DefaultQualifier())
	}
	return nil
}
