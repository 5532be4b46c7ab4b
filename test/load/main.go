// Load generator for the email send endpoint. Drives a fixed request rate
// for a fixed duration and prints latency percentiles at the end.
//
//	TARGET_URL=http://localhost:8080/api/v1/communications/email go run .
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type emailPayload struct {
	CompanyID int    `json:"company_id"`
	To        string `json:"to"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
}

type runConfig struct {
	url      string
	rps      int
	duration int
	workers  int
	apiKey   string
}

func configFromEnv() runConfig {
	return runConfig{
		url:      envStr("TARGET_URL", "http://localhost:8080/api/v1/communications/email"),
		rps:      envInt("REQUESTS_PER_SECOND", 5000),
		duration: envInt("DURATION_SECONDS", 30),
		workers:  envInt("CONCURRENT_WORKERS", 500),
		apiKey:   envStr("API_KEY", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

type runStats struct {
	success   atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	latencies []float64
}

func (s *runStats) record(seconds float64) {
	s.mu.Lock()
	s.latencies = append(s.latencies, seconds)
	s.mu.Unlock()
}

func (s *runStats) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.latencies))
	copy(out, s.latencies)
	return out
}

func fire(client *http.Client, cfg runConfig, body []byte, stats *runStats) {
	start := time.Now()

	req, err := http.NewRequest(http.MethodPost, cfg.url, bytes.NewReader(body))
	if err != nil {
		stats.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.apiKey != "" {
		req.Header.Set("X-API-Key", cfg.apiKey)
	}

	resp, err := client.Do(req)
	stats.record(time.Since(start).Seconds())
	if err != nil {
		stats.failed.Add(1)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 300 {
		stats.success.Add(1)
	} else {
		stats.failed.Add(1)
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func main() {
	cfg := configFromEnv()

	body, err := json.Marshal(emailPayload{
		CompanyID: 1,
		To:        "jane@customer.com",
		From:      "support@acmefield.com",
		Subject:   "Load test",
		Text:      "Hello from the load generator",
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("Starting load test...")
	fmt.Printf("Target: %s\n", cfg.url)
	fmt.Printf("Target RPS: %d for %d seconds (%d total), %d workers\n",
		cfg.rps, cfg.duration, cfg.rps*cfg.duration, cfg.workers)
	fmt.Println(strings.Repeat("-", 50))

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.workers,
			MaxIdleConnsPerHost: cfg.workers,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 60 * time.Second,
	}

	stats := &runStats{}
	jobs := make(chan struct{}, cfg.rps)

	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				fire(client, cfg, body, stats)
			}
		}()
	}

	start := time.Now()
	for sec := 0; sec < cfg.duration; sec++ {
		tickStart := time.Now()
		for i := 0; i < cfg.rps; i++ {
			jobs <- struct{}{}
		}

		ok := stats.success.Load()
		bad := stats.failed.Load()
		fmt.Printf("[%ds] Completed: %d | Success: %d | Errors: %d\n", sec+1, ok+bad, ok, bad)

		if remaining := time.Second - time.Since(tickStart); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start).Seconds()
	ok := stats.success.Load()
	bad := stats.failed.Load()
	total := ok + bad

	latencies := stats.snapshot()
	sort.Float64s(latencies)

	var sum float64
	for _, l := range latencies {
		sum += l
	}
	var avg, min, max float64
	if len(latencies) > 0 {
		avg = sum / float64(len(latencies))
		min = latencies[0]
		max = latencies[len(latencies)-1]
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Duration: %.2f seconds\n", elapsed)
	fmt.Printf("Total requests: %d (success %d, failed %d)\n", total, ok, bad)
	if total > 0 {
		fmt.Printf("Success rate: %.2f%%\n", float64(ok)/float64(total)*100)
	}
	fmt.Printf("Actual RPS: %.2f\n", float64(total)/elapsed)
	fmt.Printf("\nLatency:\n")
	fmt.Printf("  avg %.2f ms / min %.2f ms / max %.2f ms\n", avg*1000, min*1000, max*1000)
	fmt.Printf("  p50 %.2f ms / p95 %.2f ms / p99 %.2f ms\n",
		percentile(latencies, 0.50)*1000,
		percentile(latencies, 0.95)*1000,
		percentile(latencies, 0.99)*1000)
}
