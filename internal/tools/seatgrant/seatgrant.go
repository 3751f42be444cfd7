// Package seatgrant generates seat grant keys and signs grants for players.
package seatgrant

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/dragondice/internal/platform/requestctx"
	"github.com/louisbranch/dragondice/internal/services/engine/seat"
)

// Keygen generates a seat grant key pair and writes exports.
func Keygen(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate seat grant key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export DRAGON_DICE_SEAT_GRANT_PRIVATE_KEY=%s\n", base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export DRAGON_DICE_SEAT_GRANT_PUBLIC_KEY=%s\n", base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

// Issue signs one grant per player of session and writes "player grant" lines.
func Issue(out io.Writer, cfg seat.IssuerConfig, session string, players []string) error {
	if out == nil {
		return errors.New("output is required")
	}
	if len(players) == 0 {
		return errors.New("at least one player is required")
	}
	for _, p := range players {
		grant, err := seat.Issue(requestctx.Seat{Session: session, Player: p}, cfg)
		if err != nil {
			return fmt.Errorf("issue grant for %s: %w", p, err)
		}
		if _, err := fmt.Fprintf(out, "%s %s\n", p, grant); err != nil {
			return err
		}
	}
	return nil
}

// Run parses args and runs keygen or issue. Issue reads its signing key
// from DRAGON_DICE_SEAT_GRANT_*.
func Run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seat-grant", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	keygen := fs.Bool("keygen", false, "Generate a key pair")
	session := fs.String("session", "", "Session the grants are for")
	ttl := fs.Duration("ttl", seat.DefaultTTL, "Grant lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keygen {
		return Keygen(out, nil)
	}
	if *session == "" {
		return errors.New("-session is required")
	}
	cfg, err := seat.LoadIssuerFromEnv()
	if err != nil {
		return err
	}
	cfg.TTL = *ttl
	cfg.Now = time.Now
	return Issue(out, cfg, *session, fs.Args())
}
