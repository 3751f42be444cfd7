package discovery

import "testing"

func TestDefaultAddrs(t *testing.T) {
	if got := DefaultGRPCAddr(ServiceEngine); got != "engine:8092" {
		t.Fatalf("DefaultGRPCAddr = %q", got)
	}
	if got := DefaultHTTPAddr(" engine "); got != "engine:8086" {
		t.Fatalf("DefaultHTTPAddr = %q", got)
	}
	if got := DefaultHTTPAddr(ServiceJaeger); got != "jaeger:16686" {
		t.Fatalf("DefaultHTTPAddr(jaeger) = %q", got)
	}
	if got := DefaultGRPCAddr("unknown"); got != "" {
		t.Fatalf("unknown service = %q, want empty", got)
	}
}

func TestOrDefault(t *testing.T) {
	if got := OrDefaultGRPCAddr(" custom:9000 ", ServiceEngine); got != "custom:9000" {
		t.Fatalf("expected explicit grpc addr to win, got %q", got)
	}
	if got := OrDefaultHTTPAddr("", ServiceEngine); got != "engine:8086" {
		t.Fatalf("expected default http addr, got %q", got)
	}
}

func TestListenAddr(t *testing.T) {
	tests := map[string]string{
		"engine:8086":    ":8086",
		":9000":          ":9000",
		"127.0.0.1:8092": ":8092",
		"":               "",
	}
	for in, want := range tests {
		if got := ListenAddr(in); got != want {
			t.Fatalf("ListenAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
