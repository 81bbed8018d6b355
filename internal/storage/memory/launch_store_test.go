package memory

import (
	"context"
	"testing"
	"time"

	"whalewatch/internal/domain"
)

func testLaunch(chain domain.Chain, token string, at time.Time) *domain.Launch {
	return &domain.Launch{
		Chain:        chain,
		TokenAddress: token,
		Symbol:       "TKN",
		LiquidityUSD: 60_000,
		RiskScore:    35,
		DetectedAt:   at,
	}
}

func TestLaunchStore_InsertIfAbsent(t *testing.T) {
	store := NewLaunchStore()
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := store.InsertIfAbsent(ctx, testLaunch(domain.ChainSolana, "tok1", now))
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to report true")
	}

	inserted, err = store.InsertIfAbsent(ctx, testLaunch(domain.ChainSolana, "tok1", now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("Second InsertIfAbsent failed: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate (chain, token) insert to report false")
	}

	// Same token on a different chain is a distinct key
	inserted, err = store.InsertIfAbsent(ctx, testLaunch(domain.ChainEthereum, "tok1", now))
	if err != nil {
		t.Fatalf("Cross-chain InsertIfAbsent failed: %v", err)
	}
	if !inserted {
		t.Error("Expected insert on different chain to report true")
	}
}

func TestLaunchStore_RecentNewestFirst(t *testing.T) {
	store := NewLaunchStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, token := range []string{"t1", "t2", "t3"} {
		if _, err := store.InsertIfAbsent(ctx, testLaunch(domain.ChainSolana, token, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("InsertIfAbsent %s failed: %v", token, err)
		}
	}

	launches, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(launches) != 2 {
		t.Fatalf("Expected 2 launches, got %d", len(launches))
	}
	if launches[0].TokenAddress != "t3" || launches[1].TokenAddress != "t2" {
		t.Errorf("Expected newest first (t3, t2), got (%s, %s)",
			launches[0].TokenAddress, launches[1].TokenAddress)
	}
}
