package cli

import (
	"github.com/spf13/cobra"

	"github.com/finnews/finnews/pkg/logger"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "finnews",
		Short:         "FinNews platform CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, logJSON, err := loggerFlags(cmd)
			if err != nil {
				return err
			}
			log := logger.SetupLogger(logLevel, logJSON)
			cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	root.AddCommand(
		DBCmd(),
	)

	return root
}

func loggerFlags(cmd *cobra.Command) (string, bool, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "", false, err
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return "", false, err
	}
	return logLevel, logJSON, nil
}
