package cache_test

import (
	"context"
	"testing"

	"github.com/unclebandit/campaign-delivery/internal/cache"
)

func TestNilCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c := cache.New(nil, 0)

	var out map[string]int
	found, err := c.GetJSON(ctx, "stats:1", &out)
	if err != nil || found {
		t.Fatalf("expected miss without error, got found=%v err=%v", found, err)
	}
	if err := c.SetJSON(ctx, "stats:1", map[string]int{"sent": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(ctx, "stats:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestNilDeduplicatorNeverReportsDuplicates(t *testing.T) {
	d := cache.NewDeduplicator(nil, 0)
	for i := 0; i < 2; i++ {
		dup, err := d.IsDuplicate(context.Background(), "msg-1", "delivered")
		if err != nil || dup {
			t.Fatalf("expected no duplicate, got dup=%v err=%v", dup, err)
		}
	}
}

func TestReceiptKey(t *testing.T) {
	if got := cache.ReceiptKey("msg-1", "delivered"); got != "receipt:msg-1:delivered" {
		t.Errorf("unexpected key %q", got)
	}
}
