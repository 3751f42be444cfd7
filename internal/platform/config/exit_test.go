package config_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/dragondice/internal/platform/config"
)

// os.Exit cannot be observed in-process, so the test re-runs itself.
func TestExitfPrefixesProgramAndExits(t *testing.T) {
	if os.Getenv("DRAGON_DICE_EXITF_CHILD") == "1" {
		config.Exitf("seat grant: %s", "no key")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfPrefixesProgramAndExits$")
	cmd.Env = append(os.Environ(), "DRAGON_DICE_EXITF_CHILD=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("exit = %v", err)
	}
	want := filepath.Base(os.Args[0]) + ": seat grant: no key"
	if !strings.Contains(string(out), want) {
		t.Fatalf("stderr = %q, want %q", out, want)
	}
}
