package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/sshdeck/sshdeck/internal/core/domain"
)

func connectAlias(t *testing.T, f *registryFixture, alias string) *mockClient {
	t.Helper()
	f.dialer.client = newMockClient()
	f.prompter.secrets = append(f.prompter.secrets, "pw")
	if err := f.registry.Connect(context.Background(), alias); err != nil {
		t.Fatalf("Connect(%s) error = %v", alias, err)
	}
	return f.dialer.client
}

func TestBroadcast_PartialFailureIsolated(t *testing.T) {
	f := newRegistryFixture(t,
		domain.Connection{Alias: "a", Host: "h1", User: "u"},
		domain.Connection{Alias: "b", Host: "h2", User: "u"},
	)
	clientA := connectAlias(t, f, "a")
	// b stays disconnected: it has no terminal to receive anything.

	broadcaster := NewBroadcaster(zaptest.NewLogger(t).Sugar(), f.registry)
	results := broadcaster.Send("uptime", []string{"a", "b"})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	byAlias := make(map[string]error, len(results))
	for _, res := range results {
		byAlias[res.Alias] = res.Err
	}

	if byAlias["a"] != nil {
		t.Errorf("a should receive the command, got error %v", byAlias["a"])
	}
	var unavailable *domain.TargetUnavailableError
	if !errors.As(byAlias["b"], &unavailable) {
		t.Errorf("b error = %v, want *domain.TargetUnavailableError", byAlias["b"])
	}

	sent := clientA.terminal.sentCommands()
	if len(sent) != 1 || sent[0] != "uptime" {
		t.Errorf("a received %v, want [uptime]", sent)
	}
}

func TestBroadcast_DeadTerminalFailsAlone(t *testing.T) {
	f := newRegistryFixture(t,
		domain.Connection{Alias: "a", Host: "h1", User: "u"},
		domain.Connection{Alias: "b", Host: "h2", User: "u"},
	)
	clientA := connectAlias(t, f, "a")
	clientB := connectAlias(t, f, "b")
	clientB.terminal.sendErr = errors.New("shell gone")

	broadcaster := NewBroadcaster(zaptest.NewLogger(t).Sugar(), f.registry)
	results := broadcaster.Send("date", []string{"a", "b"})

	var aErr, bErr error
	for _, res := range results {
		switch res.Alias {
		case "a":
			aErr = res.Err
		case "b":
			bErr = res.Err
		}
	}
	if aErr != nil {
		t.Errorf("a error = %v, want delivery", aErr)
	}
	var unavailable *domain.TargetUnavailableError
	if !errors.As(bErr, &unavailable) {
		t.Errorf("b error = %v, want *domain.TargetUnavailableError", bErr)
	}
	if sent := clientA.terminal.sentCommands(); len(sent) != 1 {
		t.Errorf("a received %v, want one command", sent)
	}
}

func TestBroadcastTargets_ConnectedOnly(t *testing.T) {
	f := newRegistryFixture(t,
		domain.Connection{Alias: "a", Host: "h1", User: "u"},
		domain.Connection{Alias: "b", Host: "h2", User: "u"},
	)
	connectAlias(t, f, "a")

	broadcaster := NewBroadcaster(zaptest.NewLogger(t).Sugar(), f.registry)
	targets := broadcaster.Targets()

	if len(targets) != 1 || targets[0].Alias != "a" {
		t.Errorf("targets = %+v, want just a", targets)
	}
}
