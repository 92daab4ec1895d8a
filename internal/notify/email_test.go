package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"pengu_farm/internal/config"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		To:       "ops@example.com",
	}
}

// newTestNotifier swaps the SMTP delivery for a channel capture.
func newTestNotifier(cfg config.EmailConfig) (*EmailNotifier, chan []AccountResult) {
	n := NewEmailNotifier(cfg, zap.NewNop())
	batches := make(chan []AccountResult, 4)
	n.deliver = func(_ config.EmailConfig, results []AccountResult) error {
		batches <- results
		return nil
	}
	return n, batches
}

func result(name string) AccountResult {
	return AccountResult{
		At:      time.Now().UnixMilli(),
		Account: name + ".session",
		Status:  "pending",
	}
}

func waitBatch(t *testing.T, batches chan []AccountResult) []AccountResult {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no summary delivered")
		return nil
	}
}

func TestMaxBatchTriggersFlush(t *testing.T) {
	cfg := testEmailConfig()
	cfg.SummaryWindowMs = 60_000
	cfg.MaxBatch = 3
	n, batches := newTestNotifier(cfg)
	defer n.Close(context.Background())

	for i := 0; i < 3; i++ {
		n.NotifyAccountDone(context.Background(), result(fmt.Sprintf("acc%d", i)))
	}

	// The window is a minute out; only the batch cap can flush this.
	got := waitBatch(t, batches)
	if len(got) != 3 {
		t.Fatalf("batch size = %d, want 3", len(got))
	}
}

func TestSummaryWindowTriggersFlush(t *testing.T) {
	cfg := testEmailConfig()
	cfg.SummaryWindowMs = 50
	n, batches := newTestNotifier(cfg)
	defer n.Close(context.Background())

	n.NotifyAccountDone(context.Background(), result("alice"))
	n.NotifyAccountDone(context.Background(), result("bob"))

	got := waitBatch(t, batches)
	if len(got) != 2 {
		t.Fatalf("batch size = %d, want 2", len(got))
	}
	if got[0].Account != "alice.session" || got[1].Account != "bob.session" {
		t.Fatalf("batch = %+v", got)
	}

	select {
	case extra := <-batches:
		t.Fatalf("unexpected second summary: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCloseDrainsPendingResults(t *testing.T) {
	cfg := testEmailConfig()
	cfg.SummaryWindowMs = 60_000
	n, batches := newTestNotifier(cfg)

	n.NotifyAccountDone(context.Background(), result("alice"))
	n.NotifyAccountDone(context.Background(), result("bob"))

	if err := n.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := waitBatch(t, batches)
	if len(got) != 2 {
		t.Fatalf("batch size = %d, want 2", len(got))
	}
}

func TestDisabledConfigNeverDelivers(t *testing.T) {
	cfg := testEmailConfig()
	cfg.Enabled = false
	cfg.SummaryWindowMs = 20
	n, batches := newTestNotifier(cfg)

	n.NotifyAccountDone(context.Background(), result("alice"))
	time.Sleep(100 * time.Millisecond)
	if err := n.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-batches:
		t.Fatalf("summary delivered while disabled: %+v", got)
	default:
	}
}
