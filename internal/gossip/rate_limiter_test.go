package gossip

import (
	"testing"
	"time"

	"github.com/hearthchat/hearth/internal/domain"
)

func TestReplyLimiterCapsPerScope(t *testing.T) {
	rl := newReplyLimiter(3, time.Minute)
	key := domain.SigningKey("scope-a")

	for i := 0; i < 3; i++ {
		if !rl.Allow(key) {
			t.Fatalf("attempt %d denied inside limit", i)
		}
	}
	if rl.Allow(key) {
		t.Fatal("attempt over limit allowed")
	}
	if !rl.Allow(domain.SigningKey("scope-b")) {
		t.Fatal("other scope should not share the window")
	}
}

func TestReplyLimiterWindowExpires(t *testing.T) {
	rl := newReplyLimiter(1, 10*time.Millisecond)
	key := domain.SigningKey("scope-a")

	if !rl.Allow(key) {
		t.Fatal("first attempt denied")
	}
	if rl.Allow(key) {
		t.Fatal("second attempt inside window allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow(key) {
		t.Fatal("attempt after window expiry denied")
	}
}
