package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/ValentinKolb/dSO/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrap is the column help texts are wrapped at
const Wrap = 50

// WrapString reflows text into lines of at most Wrap characters. Words
// longer than Wrap get a line of their own.
func WrapString(text string) string {
	var sb strings.Builder
	col := 0
	for _, word := range strings.Fields(text) {
		switch {
		case col == 0:
		case col+1+len(word) > Wrap:
			sb.WriteByte('\n')
			col = 0
		default:
			sb.WriteByte(' ')
			col++
		}
		sb.WriteString(word)
		col += len(word)
	}
	return sb.String()
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the dSO server. Multiple endpoints can be given as a comma-separated list, requests are spread round-robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "poll-interval"
	cmd.PersistentFlags().Int(key, 50, WrapString("How often a blocked lock call polls the server for events (in milliseconds)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dso")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return &common.ClientConfig{
		Endpoints:          endpoints,
		TimeoutSecond:      viper.GetInt("timeout"),
		RetryCount:         viper.GetInt("transport-retries"),
		PollIntervalMillis: viper.GetInt("poll-interval"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return SerializerByName(viper.GetString("serializer"))
}

// SerializerByName maps a serializer flag value to its implementation
func SerializerByName(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
