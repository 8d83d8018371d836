package maps

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dSO/cmd/util"
	"github.com/spf13/cobra"
)

var (
	putTTI    int
	putTTL    int
	putInline bool

	createCmd = &cobra.Command{
		Use:   "create [maxCount] [tti] [ttl]",
		Short: "Creates a map and prints its id",
		Long:  "Creates a map. maxCount 0 means unbounded, tti and ttl are in seconds and 0 means eternal.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values [3]int
			for i, name := range []string{"maxCount", "tti", "ttl"} {
				v, err := strconv.Atoi(args[i])
				if err != nil {
					return fmt.Errorf("%s must be a number: %w", name, err)
				}
				values[i] = v
			}
			id, err := rpcMaps.Create(values[0], values[1], values[2])
			if err != nil {
				return err
			}
			fmt.Printf("map=%d\n", id)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [map] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			if putInline {
				if err := rpcMaps.PutInline(id, args[1], []byte(args[2])); err != nil {
					return err
				}
				fmt.Println("put successfully")
				return nil
			}
			ref, err := rpcMaps.Put(id, args[1], []byte(args[2]), putTTI, putTTL)
			if err != nil {
				return err
			}
			fmt.Printf("put successfully, entry=%d\n", ref)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [map] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			value, ref, ok, err := rpcMaps.Get(id, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, entry=%d, value=%s\n", args[1], ok, ref, value)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [map] [key]",
		Short: "Removes a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			removed, err := rpcMaps.Remove(id, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%t\n", args[1], removed)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size [map]",
		Short: "Prints the number of keys of a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			size, err := rpcMaps.Size(id)
			if err != nil {
				return err
			}
			fmt.Printf("map=%d, size=%d\n", id, size)
			return nil
		},
	}
	evictCmd = &cobra.Command{
		Use:   "evict [map]",
		Short: "Starts an eviction pass on a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			started, err := rpcMaps.Evict(id)
			if err != nil {
				return err
			}
			fmt.Printf("map=%d, started=%t\n", id, started)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [map]",
		Short: "Deletes a map and all of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMapID(args[0])
			if err != nil {
				return err
			}
			deleted, err := rpcMaps.Delete(id)
			if err != nil {
				return err
			}
			fmt.Printf("map=%d, deleted=%t\n", id, deleted)
			return nil
		},
	}
)

func init() {
	putCmd.Flags().IntVar(&putTTI, "tti", 0, util.WrapString("Idle time of the entry in seconds (0 uses the map's setting)"))
	putCmd.Flags().IntVar(&putTTL, "ttl", 0, util.WrapString("Time to live of the entry in seconds (0 uses the map's setting)"))
	putCmd.Flags().BoolVar(&putInline, "inline", false, util.WrapString("Store the value directly in the map instead of an entry object"))
}

func parseMapID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("map must be a number: %w", err)
	}
	return id, nil
}
