package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate("signal_event", map[string]interface{}{
		"exchange":  "binance",
		"symbol":    "BTCUSDT",
		"direction": "LONG",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate("scan_event", map[string]interface{}{
		"exchange": "binance",
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
	if err := Validate("unknown_event", nil); err != nil {
		t.Fatalf("unknown events should pass: %v", err)
	}
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	if len(names) != 3 {
		t.Fatalf("expected 3 schemas, got %v", names)
	}
	found := false
	for _, n := range names {
		if n == "symbol_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("symbol_failed not found in schemas")
	}
}
