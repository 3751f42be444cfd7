// Package timeouts defines shared timeout constants for the engine host.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// SocketWrite caps a single websocket frame write to a slow peer.
const SocketWrite = 5 * time.Second

// TableCall caps one table operation including journaling.
const TableCall = 10 * time.Second
