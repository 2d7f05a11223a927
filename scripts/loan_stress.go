//go:build ignore
// +build ignore

// Manual concurrency stress test for the loan API.
//
// Usage:
//
//	go run ./scripts/loan_stress.go <book_id> <token1> [token2 ...]
//
// Or with environment variables:
//
//	BOOK_ID=<uuid> TOKENS=<jwt1>,<jwt2>,... go run ./scripts/loan_stress.go
//
// What it does:
//  1. Fires N goroutines (one per user token) all requesting a loan for the
//     same book simultaneously.
//  2. Tallies created loans vs. out-of-stock rejections.
//  3. With K available copies, exactly K requests should succeed; the version
//     guard on the book row makes over-granting impossible.
//
// Prerequisites: the server must be running, the book must exist, and each
// token must belong to a distinct user with no outstanding loan on the book.

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

type loanResult struct {
	Token      string
	StatusCode int
	Message    string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	var tokens []string
	if raw := os.Getenv("TOKENS"); raw != "" {
		tokens = strings.Split(raw, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		tokens = args[1:]
	}

	if bookID == "" || len(tokens) == 0 {
		log.Fatal("Usage: BOOK_ID=<uuid> TOKENS=<jwt1,jwt2,...> go run ./scripts/loan_stress.go\n" +
			"  or: go run ./scripts/loan_stress.go <book_id> <token1> [token2 ...]")
	}

	fmt.Printf("=== Loan Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("Book   : %s\n", bookID)
	fmt.Printf("Users  : %d\n\n", len(tokens))

	results := make([]loanResult, len(tokens))
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i, token := range tokens {
		wg.Add(1)
		go func(idx int, tok string) {
			defer wg.Done()
			<-start
			results[idx] = attemptLoan(serverAddr, bookID, strings.TrimSpace(tok))
		}(i, token)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")

	var created, outOfStock, failures int
	for i, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-3d err=%v\n", i, r.Err)
		case r.StatusCode == http.StatusCreated:
			created++
			fmt.Printf("  [LOAN] user=%-3d status=%d\n", i, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			outOfStock++
			fmt.Printf("  [FULL] user=%-3d status=%d msg=%s\n", i, r.StatusCode, r.Message)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-3d status=%d msg=%s\n", i, r.StatusCode, r.Message)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Loans created : %d\n", created)
	fmt.Printf("Out of stock  : %d\n", outOfStock)
	fmt.Printf("Failures      : %d\n", failures)
	fmt.Printf("Total         : %d\n\n", len(tokens))

	fmt.Println("--- Invariant Check ---")
	fmt.Println("Loans created must equal the book's available copies before the run;")
	fmt.Println("the optimistic version check on the book row rejects every over-grant.")

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptLoan sends POST /api/bookloans for one user and reports the outcome.
func attemptLoan(serverAddr, bookID, token string) loanResult {
	body := fmt.Sprintf(`{"book_id":%q,"notes":"stress run"}`, bookID)

	req, err := http.NewRequest(http.MethodPost, serverAddr+"/api/bookloans", bytes.NewBufferString(body))
	if err != nil {
		return loanResult{Token: token, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return loanResult{Token: token, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	_ = json.Unmarshal(raw, &parsed)
	msg, _ := parsed["error"].(string)

	return loanResult{Token: token, StatusCode: resp.StatusCode, Message: msg}
}
