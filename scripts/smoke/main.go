// Command smoke probes a running API instance and reports per-endpoint
// status, useful as a post-deploy check.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

type probe struct {
	method   string
	path     string
	want     int
	critical bool
}

func main() {
	var (
		base    string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes := []probe{
		{http.MethodGet, "/health", http.StatusOK, true},
		{http.MethodGet, "/ready", http.StatusOK, true},
		{http.MethodGet, "/metrics", http.StatusOK, false},
		{http.MethodGet, "/api/v1/courses", http.StatusOK, true},
		{http.MethodGet, "/api/v1/past-questions", http.StatusOK, true},
		{http.MethodGet, "/api/v1/past-questions/popular", http.StatusOK, false},
		// Guarded routes respond 401 without a token.
		{http.MethodGet, "/api/v1/users/me", http.StatusUnauthorized, true},
		{http.MethodGet, "/api/v1/past-questions/pending", http.StatusUnauthorized, true},
	}

	client := &http.Client{Timeout: timeout}
	failures := 0

	for _, p := range probes {
		req, err := http.NewRequest(p.method, base+p.path, nil)
		if err != nil {
			fmt.Printf("FAIL %-6s %-40s build request: %v\n", p.method, p.path, err)
			failures++
			continue
		}
		start := time.Now()
		resp, err := client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("FAIL %-6s %-40s %v\n", p.method, p.path, err)
			if p.critical {
				failures++
			}
			continue
		}
		resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != p.want {
			fmt.Printf("FAIL %-6s %-40s got %d want %d (%s)\n", p.method, p.path, resp.StatusCode, p.want, elapsed)
			if p.critical {
				failures++
			}
			continue
		}
		fmt.Printf("OK   %-6s %-40s %d (%s)\n", p.method, p.path, resp.StatusCode, elapsed)
	}

	if failures > 0 {
		fmt.Printf("%d critical probe(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("all critical probes passed")
}
