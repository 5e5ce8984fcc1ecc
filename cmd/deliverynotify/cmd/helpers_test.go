package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/lupppig/deliverynotify/internal/config"
)

// useConfig installs a default config pointed at apiURL and restores the
// output flags afterwards.
func useConfig(t *testing.T, apiURL string) {
	t.Helper()
	origCfg, origQuiet, origJSON := cfg, quiet, jsonOut
	t.Cleanup(func() {
		cfg, quiet, jsonOut = origCfg, origQuiet, origJSON
	})

	cfg = config.DefaultConfig()
	cfg.Client.APIURL = apiURL
	cfg.Client.APIKey = "sk_cli"
	cfg.Client.UserID = "u1"
	cfg.Client.StateDir = t.TempDir()
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String(), runErr
}
