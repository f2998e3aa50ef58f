// Package paperjet renders web pages to PDF through a pool of pre-warmed
// sessions on a remote browser engine.
//
// Opening a fresh rendering session per request is expensive, and the control
// connection to the engine is failure-prone: the engine can restart, the
// connection can drop, and individual sessions can crash. The Manager keeps a
// bounded pool of warm sessions and supervises their health, replacing broken
// sessions and rebuilding the whole pool after a connection loss, all
// transparently to callers.
//
// Basic usage:
//
//	m := paperjet.NewManager("ws://engine:9222", paperjet.WithPoolSize(4))
//	defer m.Close()
//
//	pdf, err := m.Capture(ctx, "https://example.com", nil)
//
// Capture retries transient session failures a bounded number of times before
// returning the last error. Connection-level failures that survive the
// configured reconnect attempts are fatal and surface on Manager.Fatal().
package paperjet
