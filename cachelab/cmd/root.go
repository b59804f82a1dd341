// Package cmd provides the command-line interface of cachelab.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "cachelab",
	Short: "Cachelab builds a blocking cache in front of an ideal memory " +
		"controller and drives it with random traffic.",
	Long: `Cachelab builds a small memory hierarchy with a blocking cache ` +
		`in front of an ideal memory controller, drives it with random ` +
		`read and write traffic, and reports hit and miss statistics.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// applyEnvDefaults fills flags that are not given on the command line from
// CACHELAB_* environment variables, loading a .env file first when one
// exists. Command-line values always win.
func applyEnvDefaults(cmd *cobra.Command, _ []string) {
	_ = godotenv.Load()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}

		envName := "CACHELAB_" +
			strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		value, ok := os.LookupEnv(envName)
		if !ok {
			return
		}

		err := cmd.Flags().Set(f.Name, value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid %s: %s\n", envName, err)
			os.Exit(1)
		}
	})
}
