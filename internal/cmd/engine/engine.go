// Package engine parses engine command flags and starts the table host.
package engine

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/dragondice/internal/platform/config"
	entrypoint "github.com/louisbranch/dragondice/internal/platform/cmd"
	"github.com/louisbranch/dragondice/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/dragondice/internal/platform/grpc"
	"github.com/louisbranch/dragondice/internal/platform/timeouts"
	server "github.com/louisbranch/dragondice/internal/services/engine/app"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/seat"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
	enginesqlite "github.com/louisbranch/dragondice/internal/services/engine/storage/sqlite"
)

// Config holds engine command configuration.
type Config struct {
	HTTPAddr string   `env:"DRAGON_DICE_ENGINE_HTTP_ADDR"`
	GRPCAddr string   `env:"DRAGON_DICE_ENGINE_GRPC_ADDR"`
	DBPath   string   `env:"DRAGON_DICE_ENGINE_DB_PATH" envDefault:"data/engine.db"`
	MaxConns int      `env:"DRAGON_DICE_ENGINE_MAX_CONNS" envDefault:"256"`
	Tables   []string `env:"DRAGON_DICE_ENGINE_TABLES" envSeparator:","`
	Origins  []string `env:"DRAGON_DICE_ENGINE_ORIGINS" envSeparator:","`

	// Table and Roster preload one table from the command line.
	Table  string
	Roster string

	// Replay prints the journal of a session instead of serving.
	Replay string
	Filter string
	Limit  int

	HealthCheck bool
}

// tableEnv is read per preloaded table from DRAGON_DICE_TABLE_<NAME>_*.
type tableEnv struct {
	Roster string `env:"ROSTER"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.HTTPAddr = discovery.ListenAddr(discovery.OrDefaultHTTPAddr(cfg.HTTPAddr, discovery.ServiceEngine))
	cfg.GRPCAddr = discovery.ListenAddr(discovery.OrDefaultGRPCAddr(cfg.GRPCAddr, discovery.ServiceEngine))

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "WebSocket listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Notification journal path (empty disables)")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Maximum concurrent HTTP connections (0 is unlimited)")
	fs.StringVar(&cfg.Table, "table", "", "Session id of a table to preload")
	fs.StringVar(&cfg.Roster, "roster", "", "Roster JSON file for -table")
	fs.StringVar(&cfg.Replay, "replay", "", "Print the journal of this session and exit")
	fs.StringVar(&cfg.Filter, "filter", "", "AIP-160 filter applied to -replay")
	fs.IntVar(&cfg.Limit, "limit", 0, "Maximum notifications printed by -replay (0 is all)")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Check the gRPC health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if (cfg.Table == "") != (cfg.Roster == "") {
		return Config{}, errors.New("-table and -roster must be set together")
	}
	return cfg, nil
}

// Run starts the engine, or runs the one-shot mode cfg selects.
func Run(ctx context.Context, cfg Config) error {
	switch {
	case cfg.HealthCheck:
		return healthCheck(ctx, cfg)
	case cfg.Replay != "":
		return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(ctx context.Context) error {
			return replay(ctx, cfg, os.Stdout)
		})
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	seats, ok, err := seat.LoadConfigFromEnv(nil)
	if err != nil {
		return err
	}
	srvCfg := server.Config{
		HTTPAddr:       cfg.HTTPAddr,
		GRPCAddr:       cfg.GRPCAddr,
		DBPath:         cfg.DBPath,
		MaxConns:       cfg.MaxConns,
		OriginPatterns: cfg.Origins,
	}
	if ok {
		srvCfg.Seats = &seats
	} else {
		log.Printf("seat grants disabled; players are trusted by name")
	}
	srv, err := server.NewServer(ctx, srvCfg)
	if err != nil {
		return fmt.Errorf("init engine server: %w", err)
	}
	defer srv.Close()

	preload, err := preloadRosters(cfg)
	if err != nil {
		return err
	}
	for _, p := range preload {
		roster, err := readRoster(p.path)
		if err != nil {
			return fmt.Errorf("table %s: %w", p.session, err)
		}
		if _, err := srv.Tables.Create(ctx, p.session, roster); err != nil {
			return fmt.Errorf("table %s: %w", p.session, err)
		}
	}
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("serve engine: %w", err)
	}
	return nil
}

type rosterSource struct {
	session string
	path    string
}

func preloadRosters(cfg Config) ([]rosterSource, error) {
	var out []rosterSource
	if cfg.Table != "" {
		out = append(out, rosterSource{session: cfg.Table, path: cfg.Roster})
	}
	for _, name := range cfg.Tables {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var te tableEnv
		prefix := "DRAGON_DICE_TABLE_" + envName(name) + "_"
		if err := config.ParseEnvWithPrefix(&te, prefix); err != nil {
			return nil, err
		}
		if strings.TrimSpace(te.Roster) == "" {
			return nil, fmt.Errorf("%sROSTER is required for table %s", prefix, name)
		}
		out = append(out, rosterSource{session: name, path: te.Roster})
	}
	return out, nil
}

func envName(session string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, session)
}

func readRoster(path string) (game.Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return game.Roster{}, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return game.DecodeRoster(f)
}

func healthCheck(ctx context.Context, cfg Config) error {
	addr := cfg.GRPCAddr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	logf := func(format string, args ...any) {
		log.Printf("healthcheck %s", fmt.Sprintf(format, args...))
	}
	return platformgrpc.CheckHealth(ctx, addr, server.HealthService, timeouts.GRPCDial, logf)
}

// replay writes one line per journaled notification of cfg.Replay.
func replay(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := enginesqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	printed := 0
	var after uint64
	for {
		size := 200
		if cfg.Limit > 0 {
			size = min(size, cfg.Limit-printed)
		}
		page, err := store.List(ctx, storage.Query{Session: cfg.Replay, Filter: cfg.Filter, PageSize: size, AfterSeq: after})
		if err != nil {
			return err
		}
		for _, n := range page.Notifications {
			payload, err := n.PayloadJSON()
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "%d\t%s\t%s\tturn=%d\tplayer=%s\tphase=%s\t%s\n",
				n.Seq, n.Timestamp.UTC().Format(time.RFC3339), n.Type, n.Turn, n.Player, n.Phase, payload); err != nil {
				return err
			}
			printed++
		}
		if page.NextSeq == 0 || (cfg.Limit > 0 && printed >= cfg.Limit) {
			return nil
		}
		after = page.NextSeq
	}
}
