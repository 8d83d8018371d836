package lock

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/dSO/cmd/util"
	"github.com/ValentinKolb/dSO/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLocks *client.RPCLocks

	lockLevel    string
	lockThread   uint64
	holdDuration time.Duration
	tryTimeout   time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations",
		Long:              "Perform lock operations. Every invocation is a new client, its locks are released when the command exits.",
		PersistentPreRunE: setupLockClient,
	}

	// holdCmd represents the hold command
	holdCmd = &cobra.Command{
		Use:   "hold [lock]",
		Short: "Acquire a lock and hold it",
		Long:  "Acquire a lock, blocking until it is awarded, and hold it for the given duration or until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHold,
	}

	// tryCmd represents the try command
	tryCmd = &cobra.Command{
		Use:   "try [lock]",
		Short: "Try to acquire a lock within a timeout",
		Args:  cobra.ExactArgs(1),
		RunE:  runTry,
	}

	// queryCmd represents the query command
	queryCmd = &cobra.Command{
		Use:   "query [lock]",
		Short: "Show holders, waiters and pending requests of a lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(holdCmd)
	LockCommands.AddCommand(tryCmd)
	LockCommands.AddCommand(queryCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	LockCommands.PersistentFlags().StringVar(&lockLevel, "level", "write", util.WrapString("Lock level (read, write)"))
	LockCommands.PersistentFlags().Uint64Var(&lockThread, "thread", 1, util.WrapString("Thread id used for the request"))

	holdCmd.Flags().DurationVar(&holdDuration, "for", 0, util.WrapString("How long to hold the lock (0 holds it until interrupted)"))
	tryCmd.Flags().DurationVar(&tryTimeout, "timeout", 0, util.WrapString("How long the server should keep the request pending (0 fails right away if the lock is taken)"))
}

// setupLockClient initializes the lock client
func setupLockClient(cmd *cobra.Command, _ []string) error {
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

	// Create the lock client
	rpcLocks, err = client.NewRPCLocks(
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}

// runHold handles the hold command
func runHold(cmd *cobra.Command, args []string) error {
	defer rpcLocks.Close()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lockID := args[0]
	if err := rpcLocks.Lock(ctx, lockID, lockThread, lockLevel); err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}
	fmt.Printf("acquired=true, lock=%s, level=%s, client=%s\n", lockID, lockLevel, rpcLocks.ClientID())

	if holdDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, holdDuration)
		defer cancel()
	}
	<-ctx.Done()

	// disconnecting releases the hold, greedy leases included
	if err := rpcLocks.Close(); err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}
	fmt.Println("released=true")
	return nil
}

// runTry handles the try command
func runTry(cmd *cobra.Command, args []string) error {
	defer rpcLocks.Close()
	acquired, err := rpcLocks.TryLock(cmd.Context(), args[0], lockThread, lockLevel, tryTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}
	fmt.Printf("acquired=%t\n", acquired)
	return nil
}

// runQuery handles the query command
func runQuery(cmd *cobra.Command, args []string) error {
	defer rpcLocks.Close()
	result, err := rpcLocks.Query(cmd.Context(), args[0], lockThread)
	if err != nil {
		return fmt.Errorf("failed to query lock: %v", err)
	}
	fmt.Printf("lock=%s, contexts=%d, pending=%d\n", args[0], len(result.Contexts), result.Pending)
	for _, c := range result.Contexts {
		fmt.Printf("  %-22s client=%s thread=%d\n", c.State, c.ClientID, c.ThreadID)
	}
	return nil
}
