package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dSO/cmd/lock"
	"github.com/ValentinKolb/dSO/cmd/maps"
	"github.com/ValentinKolb/dSO/cmd/serve"
	"github.com/ValentinKolb/dSO/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dso",
		Short: "distributed shared objects server",
		Long: fmt.Sprintf(`dSO (v%s)

A shared object server written in Go. It coordinates distributed
read/write locks with greedy leases and serves capacity bounded maps
whose entries are evicted by a background evictor.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dSO",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dSO v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(maps.MapCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
