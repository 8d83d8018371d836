package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dSO/cmd/util"
	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/server"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/ValentinKolb/dSO/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dSO server",
		Long:    `Start the dSO server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSO_<flag> (e.g. DSO_EVICTION_SLEEP=30)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "greedy-locks"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Award uncontended locks as greedy leases to the whole client. Leases are recalled as soon as another client asks for the lock"))

	key = "eviction-periodic"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Run the map evictor periodically in the background"))

	key = "eviction-sleep"
	ServeCmd.PersistentFlags().Int64(key, 900, cmdUtil.WrapString("Pause between two periodic evictor runs (in seconds)"))

	key = "eviction-element-ttl"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Honour per element TTI/TTL. The evictor then samples 50% more entries since expired entries are preferred"))

	key = "eviction-logging"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Log every evictor pass"))

	key = "rate-limit"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Maximum number of requests per second (0 disables the limiter)"))

	key = "rate-burst"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Number of requests the limiter lets through at once"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.GreedyLocks = viper.GetBool("greedy-locks")
	serveCmdConfig.Eviction = common.EvictionConfig{
		SleepSeconds:  viper.GetInt64("eviction-sleep"),
		Periodic:      viper.GetBool("eviction-periodic"),
		ElementTTITTL: viper.GetBool("eviction-element-ttl"),
		Logging:       viper.GetBool("eviction-logging"),
	}
	serveCmdConfig.RateLimit = viper.GetFloat64("rate-limit")
	serveCmdConfig.RateBurst = viper.GetInt("rate-burst")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Eviction.Periodic && serveCmdConfig.Eviction.SleepSeconds <= 0 {
		return fmt.Errorf("eviction-sleep must be positive, got %d", serveCmdConfig.Eviction.SleepSeconds)
	}
	if serveCmdConfig.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative, got %g", serveCmdConfig.RateLimit)
	}
	_, err := common.ParseLogLevel(serveCmdConfig.LogLevel)
	return err
}

// run starts the dSO server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		_ = serv.Shutdown()
	}()

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dso")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
