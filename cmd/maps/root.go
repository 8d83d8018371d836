package maps

import (
	"github.com/ValentinKolb/dSO/cmd/util"
	"github.com/ValentinKolb/dSO/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcMaps *client.RPCMaps

	// MapCommands represents the map command group
	MapCommands = &cobra.Command{
		Use:                "map",
		Short:              "Perform operations on evictable server maps",
		PersistentPreRunE:  setupMapClient,
		PersistentPostRunE: closeMapClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the map command
	util.SetupRPCClientFlags(MapCommands)

	// Add subcommands
	MapCommands.AddCommand(createCmd)
	MapCommands.AddCommand(putCmd)
	MapCommands.AddCommand(getCmd)
	MapCommands.AddCommand(removeCmd)
	MapCommands.AddCommand(sizeCmd)
	MapCommands.AddCommand(evictCmd)
	MapCommands.AddCommand(deleteCmd)
	MapCommands.AddCommand(perfTestCmd)
}

// setupMapClient initializes the RPC map client
func setupMapClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the map client
	rpcMaps, err = client.NewRPCMaps(
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}

// closeMapClient disconnects the client, entries it read are no longer pinned
func closeMapClient(_ *cobra.Command, _ []string) error {
	if rpcMaps == nil {
		return nil
	}
	return rpcMaps.Close()
}
