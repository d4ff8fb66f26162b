// Command reminders sends day-before appointment SMS reminders and serves the
// reminder admin API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "reminders",
		Short:         "ClinicFlow appointment SMS reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(testSMSCmd())
	rootCmd.AddCommand(resetReminderCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
