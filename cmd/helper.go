package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/tcssh/internal/helper"
)

var (
	flagHelperSocket    string
	flagHelperAutoClose int
)

// helperCmd runs inside each terminal window opened by the terminal
// surface. It is not meant to be invoked by hand.
var helperCmd = &cobra.Command{
	Use:    "helper --socket PATH [--auto-close N] -- command [args...]",
	Short:  "Run one session inside a terminal window",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("warn")
		if flagDebug {
			logger = newLogger("debug")
		}
		code, err := helper.Run(cmd.Context(), helper.Options{
			Socket:    flagHelperSocket,
			AutoClose: flagHelperAutoClose,
			Argv:      args,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		os.Exit(code)
		return nil
	},
}

func init() {
	helperCmd.Flags().StringVar(&flagHelperSocket, "socket", "", "unix socket key events arrive on")
	helperCmd.Flags().IntVar(&flagHelperAutoClose, "auto-close", 0, "seconds to keep the window after exit (0: wait for RETURN)")
	rootCmd.AddCommand(helperCmd)
}
