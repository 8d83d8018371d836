package maps

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dSO/cmd/util"
	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dSO servers",
		Long:    "Runs put, get, remove and mixed workloads against a fresh map. The map is deleted afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// benchmark is one workload. prepare runs before the timer starts, op runs
// once per iteration with the iteration's key.
type benchmark struct {
	name    string
	prepare bool
	op      func(mapID uint64, key string, counter int) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dSO servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	mapID, err := rpcMaps.Create(0, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create test map: %v", err)
	}
	defer func() {
		if _, err := rpcMaps.Delete(mapID); err != nil {
			log.Printf("error deleting test map: %v\n", err)
		}
	}()

	fmt.Println("starting tests...")

	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	benchmarks := []benchmark{
		{name: "put", op: func(id uint64, k string, _ int) error {
			_, err := rpcMaps.Put(id, k, value, 0, 0)
			return err
		}},
		{name: "put-inline", op: func(id uint64, k string, _ int) error {
			return rpcMaps.PutInline(id, k, value)
		}},
		{name: "put-large", op: func(id uint64, k string, _ int) error {
			_, err := rpcMaps.Put(id, k, largeValue, 0, 0)
			return err
		}},
		{name: "get", prepare: true, op: func(id uint64, k string, _ int) error {
			_, _, _, err := rpcMaps.Get(id, k)
			return err
		}},
		{name: "remove", prepare: true, op: func(id uint64, k string, _ int) error {
			_, err := rpcMaps.Remove(id, k)
			return err
		}},
		{name: "mixed", prepare: true, op: func(id uint64, k string, counter int) error {
			var err error
			switch counter % 4 {
			case 0: // put
				_, err = rpcMaps.Put(id, k, value, 0, 0)
			case 1: // get
				_, _, _, err = rpcMaps.Get(id, k)
			case 2: // remove
				_, err = rpcMaps.Remove(id, k)
			case 3: // size
				_, err = rpcMaps.Size(id)
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}
			runBenchmark(b, mapID, bm)
		})
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func runBenchmark(b *testing.B, mapID uint64, bm benchmark) {
	getKey, iter := getKeys(bm.name)

	if bm.prepare {
		iter(func(k string) {
			if _, err := rpcMaps.Put(mapID, k, []byte("test"), 0, 0); err != nil {
				log.Printf("(%s) - error putting key: %v\n", bm.name, err)
			}
		})
	}

	// cleanup
	b.Cleanup(func() {
		iter(func(k string) {
			if _, err := rpcMaps.Remove(mapID, k); err != nil {
				log.Printf("(%s) - error removing key: %v\n", bm.name, err)
			}
		})
	})

	b.SetParallelism(perfNumThreads)

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := bm.op(mapID, getKey(counter), counter); err != nil {
				log.Printf("(%s) - error: %v\n", bm.name, err)
			}
			counter++
		}
	})
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount",
		"Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
