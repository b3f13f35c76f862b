package transport

import (
	"errors"
	"testing"
	"time"
)

func TestEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != 3*time.Minute {
			t.Errorf("startupTimeout = %v, want 3m", e.startupTimeout)
		}
		if e.IsRunning() {
			t.Error("must not be running before Start")
		}
		if e.ProxyURL() != "" {
			t.Errorf("ProxyURL() = %q before start", e.ProxyURL())
		}
	})

	t.Run("WithStartupTimeout ignores non positive values", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(WithStartupTimeout(time.Minute)); e.startupTimeout != time.Minute {
			t.Errorf("startupTimeout = %v, want 1m", e.startupTimeout)
		}
		if e := NewEmbeddedTor(WithStartupTimeout(0)); e.startupTimeout != 3*time.Minute {
			t.Errorf("startupTimeout = %v, want 3m", e.startupTimeout)
		}
	})

	t.Run("Stop on a stopped instance", func(t *testing.T) {
		t.Parallel()

		if err := NewEmbeddedTor().Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})

	t.Run("NewClient requires a running daemon", func(t *testing.T) {
		t.Parallel()

		_, err := NewEmbeddedTor().NewClient()
		if !errors.Is(err, ErrTorNotRunning) {
			t.Errorf("error = %v, want ErrTorNotRunning", err)
		}
	})

	t.Run("ProxyURL uses socks5h", func(t *testing.T) {
		t.Parallel()

		e := &EmbeddedTor{socksAddr: "127.0.0.1:40000"}
		if got := e.ProxyURL(); got != "socks5h://127.0.0.1:40000" {
			t.Errorf("ProxyURL() = %q", got)
		}
	})
}
