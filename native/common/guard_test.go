package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	sb := NewSwitchboard()

	if err := Guard(sb, "oracle"); err != nil {
		t.Fatalf("unpaused module blocked: %v", err)
	}
	sb.SetPaused("oracle", true)
	if err := Guard(sb, "oracle"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(sb, "other"); err != nil {
		t.Fatalf("unrelated module blocked: %v", err)
	}
	sb.SetPaused("oracle", false)
	if err := Guard(sb, "oracle"); err != nil {
		t.Fatalf("unpause not honored: %v", err)
	}

	if err := Guard(nil, "oracle"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(sb, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
}
