package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medguard/medguard/internal/platform/authz"
)

func TestMemoryRepoGaplessUnderConcurrency(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	seqs := make(chan int64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				seq, err := repo.Append(ctx, &Entry{
					Timestamp: time.Now(),
					Kind:      KindAccessDecision,
					UserID:    uuid.New(),
					Severity:  SeverityInfo,
				})
				if err != nil {
					t.Errorf("Append: %v", err)
					return
				}
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Errorf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	for i := int64(1); i <= writers*perWriter; i++ {
		if !seen[i] {
			t.Errorf("missing sequence %d", i)
		}
	}
}

func TestMemoryRepoListFilters(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	patient := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Timestamp: base, Kind: KindAccessDecision, UserID: alice, PatientID: &patient, Severity: SeverityInfo},
		{Timestamp: base.Add(time.Minute), Kind: KindBreakGlassInvoked, UserID: alice, PatientID: &patient, Severity: SeverityHigh},
		{Timestamp: base.Add(2 * time.Minute), Kind: KindAccessDecision, UserID: bob, Severity: SeverityInfo},
	}
	for _, e := range entries {
		if _, err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, total, err := repo.List(ctx, Filter{UserID: &alice}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Errorf("user filter: total=%d len=%d, want 2/2", total, len(got))
	}

	got, _, err = repo.List(ctx, Filter{Kind: KindBreakGlassInvoked}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Severity != SeverityHigh {
		t.Errorf("kind filter returned %d entries", len(got))
	}

	since := base.Add(90 * time.Second)
	got, _, err = repo.List(ctx, Filter{Since: &since}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].UserID != bob {
		t.Errorf("since filter returned %d entries", len(got))
	}

	// Offset past the end is empty, not an error.
	got, total, err = repo.List(ctx, Filter{}, 10, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(got) != 0 {
		t.Errorf("offset past end: total=%d len=%d", total, len(got))
	}
}

func TestServiceAppendMapsDecision(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()

	user := uuid.New()
	patient := uuid.New()
	rec := authz.DecisionRecord{
		Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Request: authz.AccessRequest{
			UserID:    user,
			Role:      authz.RoleDoctor,
			Purpose:   authz.PurposeEmergency,
			Category:  authz.CategoryGenetic,
			PatientID: patient,
		},
		Decision: authz.AccessDecision{
			Granted:    true,
			Reason:     authz.ReasonGrantedOverride,
			BreakGlass: true,
		},
	}

	seq, err := svc.Append(ctx, rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}

	entries, _, err := svc.List(ctx, Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != KindAccessDecision {
		t.Errorf("kind = %q", e.Kind)
	}
	if e.UserID != user || e.PatientID == nil || *e.PatientID != patient {
		t.Error("identity fields not carried into the entry")
	}
	if e.Granted == nil || !*e.Granted {
		t.Error("granted flag not carried")
	}
	if !e.BreakGlass || e.Severity != SeverityHigh {
		t.Error("break-glass decisions are high severity")
	}
}

func TestServiceAppendBreakGlass(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()

	user, patient := uuid.New(), uuid.New()
	if _, err := svc.AppendBreakGlass(ctx, KindBreakGlassExpired, user, patient, "auto-expiry"); err != nil {
		t.Fatalf("AppendBreakGlass: %v", err)
	}

	entries, _, err := svc.List(ctx, Filter{Kind: KindBreakGlassExpired}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Severity != SeverityHigh || !entries[0].BreakGlass {
		t.Error("lifecycle entries are high severity break-glass records")
	}
	if entries[0].Granted != nil {
		t.Error("lifecycle entries carry no granted flag")
	}
}
