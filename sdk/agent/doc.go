// Package agent provides a Go client for an OpenCode-compatible agent server.
//
// The client exposes typed access to sessions, messages and message parts,
// plus a streaming subscription to the server's global event bus:
//
//	client := agent.NewClient("http://localhost:8000")
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	events, errs, err := client.SubscribeToEvents(ctx, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    // Handle streaming events
//	}
//	if err := <-errs; err != nil {
//	    log.Println("stream ended:", err)
//	}
package agent

import "time"

// Now returns the current time as a Unix timestamp (float64 seconds).
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
