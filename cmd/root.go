package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zijiren233/livepush/cmd/flags"
)

var RootCmd = &cobra.Command{
	Use:   "livepush",
	Short: "livepush",
	Long:  `livepush https://github.com/zijiren233/livepush`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flags.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "debug mode")
}
