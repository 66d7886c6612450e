//go:build ignore
// +build ignore

// Manual concurrency stress test for the borrow endpoint.
//
// Usage:
//
//	go run ./scripts/borrow_stress.go <book_id> <subscriber1_id> [subscriber2_id ...]
//
// Or with environment variables:
//
//	BOOK_ID=<uuid> SUBSCRIBER_IDS=<uuid1>,<uuid2>,... go run ./scripts/borrow_stress.go
//
// What it does:
//  1. Fires N goroutines (one per subscriber) all borrowing the same book at once.
//  2. Tallies how many got a copy vs. were turned away with 409.
//
// The number of successful borrows must never exceed the book's available
// copies at the start of the run; anything else means the per-book lock is
// broken.
//
// Prerequisites:
//   - Server must be running.
//   - The book and all subscribers must already exist.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type borrowResult struct {
	SubscriberID string
	StatusCode   int
	Body         string
	Err          error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	var subscriberIDs []string
	if raw := os.Getenv("SUBSCRIBER_IDS"); raw != "" {
		subscriberIDs = strings.Split(raw, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		subscriberIDs = args[1:]
	}

	if bookID == "" {
		log.Fatal("Usage: BOOK_ID=<uuid> SUBSCRIBER_IDS=<s1,s2,...> go run ./scripts/borrow_stress.go\n" +
			"  or: go run ./scripts/borrow_stress.go <book_id> <subscriber1_id> [subscriber2_id ...]")
	}
	if len(subscriberIDs) == 0 {
		log.Fatal("At least one subscriber ID must be provided via SUBSCRIBER_IDS env or positional args")
	}

	fmt.Printf("=== Borrow Concurrency Test ===\n")
	fmt.Printf("Server      : %s\n", serverAddr)
	fmt.Printf("Book        : %s\n", bookID)
	fmt.Printf("Subscribers : %d\n\n", len(subscriberIDs))

	results := make([]borrowResult, len(subscriberIDs))
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i, sid := range subscriberIDs {
		wg.Add(1)
		go func(idx int, subscriberID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(serverAddr, bookID, strings.TrimSpace(subscriberID))
		}(i, sid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var borrowed, denied, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] subscriber=%-38s err=%v\n", r.SubscriberID, r.Err)
		case r.StatusCode == http.StatusCreated:
			borrowed++
			fmt.Printf("  [BRRW] subscriber=%-38s status=%d\n", r.SubscriberID, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			denied++
			fmt.Printf("  [DENY] subscriber=%-38s status=%d body=%s\n", r.SubscriberID, r.StatusCode, r.Body)
		default:
			failures++
			fmt.Printf("  [FAIL] subscriber=%-38s status=%d body=%s\n", r.SubscriberID, r.StatusCode, r.Body)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Borrowed : %d\n", borrowed)
	fmt.Printf("Denied   : %d\n", denied)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Total    : %d\n\n", len(subscriberIDs))

	fmt.Println("--- Invariant Check ---")
	fmt.Println("Per-book serialization means the number of borrows can never exceed the")
	fmt.Printf("copies available at the start of the run. Borrows recorded: %d\n", borrowed)

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptBorrow sends POST /books/{bookID}/borrow for the given subscriber.
func attemptBorrow(serverAddr, bookID, subscriberID string) borrowResult {
	url := fmt.Sprintf("%s/books/%s/borrow", serverAddr, bookID)
	payload, _ := json.Marshal(map[string]string{"subscriber_id": subscriberID})

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return borrowResult{SubscriberID: subscriberID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return borrowResult{
		SubscriberID: subscriberID,
		StatusCode:   resp.StatusCode,
		Body:         strings.TrimSpace(string(raw)),
	}
}
