// Package discovery centralizes default listen addresses for engine
// processes.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceEngine is the table host: websocket API over HTTP and health
	// over gRPC.
	ServiceEngine = "engine"
	// ServiceJaeger is the trace UI used in local stacks.
	ServiceJaeger = "jaeger"
)

var grpcPorts = map[string]int{
	ServiceEngine: 8092,
}

var httpPorts = map[string]int{
	ServiceEngine: 8086,
	ServiceJaeger: 16686,
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), grpcPorts)
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), httpPorts)
}

// ListenAddr returns the port-only form of a default address, for binding
// on every interface.
func ListenAddr(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return addr
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

// OrDefaultHTTPAddr returns value when set, otherwise the service convention.
func OrDefaultHTTPAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultHTTPAddr(service)
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
