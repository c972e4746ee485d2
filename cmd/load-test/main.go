package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"competitive-programming-platform/internal/realtime"
)

func main() {
	var (
		baseURL    = flag.String("url", "ws://localhost:8080", "Base websocket URL of the server")
		connPerSec = flag.Int("rate", 50, "Sessions joined per second")
		duration   = flag.Duration("duration", 60*time.Second, "Test duration")
		contestID  = flag.String("contest", "", "Contest ID sessions join")
		tokenFile  = flag.String("tokens", "", "Path to a newline-separated file of bearer tokens, one per simulated participant")
		outputFile = flag.String("output", "", "Output file for results (JSON)")
		scenarios  = flag.Bool("scenarios", false, "Run predefined light/medium/heavy scenarios against the token pool")
	)
	flag.Parse()

	tokens, err := loadTokens(*tokenFile)
	if err != nil {
		log.Fatalf("load tokens: %v", err)
	}
	if len(tokens) == 0 {
		log.Fatal("no auth tokens provided; pass -tokens with at least one line")
	}
	if *contestID == "" {
		log.Fatal("-contest is required")
	}

	if *scenarios {
		runScenarios(*baseURL, *contestID, tokens, *outputFile)
		return
	}

	config := realtime.LoadTestConfig{
		BaseURL:           *baseURL,
		ContestID:         *contestID,
		TotalConnections:  len(tokens),
		ConnectionsPerSec: *connPerSec,
		TestDuration:      *duration,
		AuthTokens:        tokens,
	}

	result, err := realtime.RunLoadTest(context.Background(), config)
	if err != nil {
		log.Fatalf("load test failed: %v", err)
	}

	if *outputFile != "" {
		saveResults(*outputFile, result)
	}
	printResult(result)
}

func loadTokens(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tokens []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	return tokens, nil
}

// runScenarios slices the provided token pool into light/medium/heavy tiers
// so a single prepared pool of participant accounts can drive all three.
func runScenarios(baseURL, contestID string, tokens []string, outputFile string) {
	tiers := []struct {
		name string
		frac float64
		rate int
		dur  time.Duration
	}{
		{"Light", 0.1, 5, 20 * time.Second},
		{"Medium", 0.4, 20, 45 * time.Second},
		{"Heavy", 1.0, 50, 60 * time.Second},
	}

	results := make(map[string]*realtime.LoadTestResult)
	for _, tier := range tiers {
		n := int(float64(len(tokens)) * tier.frac)
		if n < 1 {
			n = 1
		}
		if n > len(tokens) {
			n = len(tokens)
		}
		fmt.Printf("\n=== Running %s Scenario (%d sessions) ===\n", tier.name, n)

		config := realtime.LoadTestConfig{
			BaseURL: baseURL, ContestID: contestID,
			TotalConnections: n, ConnectionsPerSec: tier.rate, TestDuration: tier.dur,
			AuthTokens: tokens[:n],
		}
		result, err := realtime.RunLoadTest(context.Background(), config)
		if err != nil {
			log.Printf("scenario %s failed: %v", tier.name, err)
			continue
		}
		results[tier.name] = result
		printResult(result)

		fmt.Println("waiting 10 seconds before next scenario...")
		time.Sleep(10 * time.Second)
	}

	if outputFile != "" {
		saveScenarioResults(outputFile, results)
	}
	printSummary(results)
}

func printResult(r *realtime.LoadTestResult) {
	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Test Duration: %v\n", r.TestDuration)
	fmt.Printf("Sessions: %d (joined %d, failed %d)\n", r.TotalConnections, r.SuccessfulJoins, r.FailedJoins)
	fmt.Printf("Messages Received: %d\n", r.MessagesReceived)
	fmt.Printf("Submissions Sent: %d\n", r.SubmissionsSent)
	fmt.Printf("Submit->Broadcast Latency - Avg: %v, Max: %v\n", r.AvgSubmitLatency, r.MaxSubmitLatency)

	if r.TotalConnections > 0 {
		rate := float64(r.SuccessfulJoins) / float64(r.TotalConnections) * 100
		fmt.Printf("Join Success Rate: %.1f%%\n", rate)
	}
}

func printSummary(results map[string]*realtime.LoadTestResult) {
	fmt.Printf("\n=== Scenario Summary ===\n")
	fmt.Printf("%-10s %-10s %-12s %-15s\n", "Scenario", "Sessions", "Joined", "Avg Latency")
	fmt.Println(strings.Repeat("-", 55))
	for name, r := range results {
		fmt.Printf("%-10s %-10d %-12d %-15v\n", name, r.TotalConnections, r.SuccessfulJoins, r.AvgSubmitLatency)
	}
}

func saveResults(filename string, result *realtime.LoadTestResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("failed to marshal results: %v", err)
		return
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		log.Printf("failed to save results to %s: %v", filename, err)
		return
	}
	fmt.Printf("Results saved to %s\n", filename)
}

func saveScenarioResults(filename string, results map[string]*realtime.LoadTestResult) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("failed to marshal scenario results: %v", err)
		return
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		log.Printf("failed to save scenario results to %s: %v", filename, err)
		return
	}
	fmt.Printf("Scenario results saved to %s\n", filename)
}
