package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/tcssh/internal/cluster"
	"github.com/timvw/tcssh/internal/hostspec"
)

var flagQuiet bool

var listCmd = &cobra.Command{
	Use:   "list [name ...]",
	Short: "List cluster and tag names, or the hosts they resolve to",
	Long: `With no arguments, list every defined cluster and tag name, followed by
the names the external cluster command knows about.

With arguments, resolve them and print one host per line. The list is the
same as the one the sessions would be opened for, before address expansion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, src, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		table, err := cluster.Load(src)
		if err != nil {
			return err
		}
		external := cluster.NewExternal(cfg.ExternalClusterCommand)
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			for _, name := range table.Names() {
				fmt.Fprintln(out, name)
			}
			names, err := external.Names(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		resolver := cluster.NewResolver(table, src.Found(), src.Searched)
		hosts, warnings, err := resolver.ResolveAll(args)
		if err != nil {
			return err
		}
		hosts, extWarnings := external.Apply(cmd.Context(), hosts)
		for _, w := range append(warnings, extWarnings...) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}

		if flagQuiet {
			fmt.Fprintln(out, joinHosts(hosts))
			return nil
		}
		for _, h := range hosts {
			fmt.Fprintln(out, h)
		}
		return nil
	},
}

func joinHosts(hosts []hostspec.HostSpec) string {
	parts := make([]string, len(hosts))
	for i, h := range hosts {
		parts[i] = h.String()
	}
	return strings.Join(parts, " ")
}

func init() {
	listCmd.Flags().BoolVarP(&flagQuiet, "quiet", "Q", false, "print resolved hosts on one space-separated line")
	rootCmd.AddCommand(listCmd)
}
