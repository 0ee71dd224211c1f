package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var endpoints = []string{
	"/api/premium/weather",
	"/api/premium/quotes",
	"/api/premium/signals",
}

// synthesize builds one weighted candidate: mostly settlements, some
// missing payments, a few verification failures.
func synthesize(workerID int) string {
	endpoint := endpoints[rand.Intn(len(endpoints))]
	roll := rand.Float64()

	switch {
	case roll < 0.70:
		return fmt.Sprintf(
			`{"endpoint": "%s", "status": 200, "duration_ms": %d, "tx_hash": "0x%016x", "payer": "0xworker%04d"}`,
			endpoint, 80+rand.Intn(400), rand.Int63(), workerID)
	case roll < 0.90:
		return fmt.Sprintf(
			`{"endpoint": "%s", "status": 402, "duration_ms": %d}`,
			endpoint, 2+rand.Intn(20))
	default:
		return fmt.Sprintf(
			`{"endpoint": "%s", "status": 403, "duration_ms": %d, "payer": "0xworker%04d"}`,
			endpoint, 30+rand.Intn(150), workerID)
	}
}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/api/events", "Target URL for event ingestion")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 500, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting payment traffic generator on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx)

					payload := synthesize(workerID)
					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewBufferString(payload))
					if err != nil {
						continue
					}
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					if resp.StatusCode == http.StatusCreated {
						successCount.Add(1)
					} else {
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	log.Printf("Load test finished. Success: %d, Errors: %d", successCount.Load(), errorCount.Load())
}
