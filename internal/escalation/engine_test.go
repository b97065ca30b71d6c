package escalation

import (
	"context"
	"testing"

	"github.com/Lora-Technologies/LoraGuard/internal/classifier"
	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

type stubStore struct {
	points      int
	lastAction  string
	violationID int64
	logged      []*db.Violation
}

func (s *stubStore) AddViolationPoints(_ context.Context, _, _ string, points int) error {
	s.points += points
	return nil
}

func (s *stubStore) GetViolationPoints(_ context.Context, _ string) (int, error) {
	return s.points, nil
}

func (s *stubStore) LogViolation(_ context.Context, v *db.Violation) (int64, error) {
	s.violationID++
	s.logged = append(s.logged, v)
	return s.violationID, nil
}

func (s *stubStore) UpdateViolationAction(_ context.Context, _ int64, action string) error {
	s.lastAction = action
	return nil
}

type stubPunisher struct {
	executed []punishments.Spec
}

func (p *stubPunisher) Execute(_ punishments.Player, spec punishments.Spec, _, _ string) {
	p.executed = append(p.executed, spec)
}

func defaultRules() []string {
	return []string{"1:WARN", "5:MUTE:10m", "10:BAN:1440m"}
}

func TestParseRules(t *testing.T) {
	t.Parallel()
	rules, err := ParseRules([]string{"10:BAN:1440m", "1:WARN", "5:MUTE:10m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].Threshold != 1 || rules[2].Threshold != 10 {
		t.Fatalf("rules not sorted by threshold: %+v", rules)
	}
	if rules[1].Spec.Type != punishments.TypeMute || rules[1].Spec.DurationMinutes != 10 {
		t.Fatalf("unexpected middle rule: %+v", rules[1])
	}
}

func TestParseRulesRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, entry := range []string{"WARN", "x:WARN", "5:FROB"} {
		if _, err := ParseRules([]string{entry}); err == nil {
			t.Errorf("expected error for %q", entry)
		}
	}
}

func TestDeterminePicksGreatestReachedThreshold(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, &stubStore{}, &stubPunisher{}, "flagged-set")

	cases := []struct {
		points int
		want   punishments.Type
		found  bool
	}{
		{0, "", false},
		{1, punishments.TypeWarn, true},
		{4, punishments.TypeWarn, true},
		{5, punishments.TypeMute, true},
		{7, punishments.TypeMute, true},
		{10, punishments.TypeBan, true},
		{99, punishments.TypeBan, true},
	}
	for _, tc := range cases {
		spec, ok := engine.Determine(tc.points)
		if ok != tc.found {
			t.Fatalf("points=%d: found=%v, want %v", tc.points, ok, tc.found)
		}
		if ok && spec.Type != tc.want {
			t.Fatalf("points=%d: got %s, want %s", tc.points, spec.Type, tc.want)
		}
	}
}

func TestHandleViolationEscalates(t *testing.T) {
	t.Parallel()
	store := &stubStore{points: 6}
	punisher := &stubPunisher{}
	engine := newTestEngine(t, store, punisher, "flagged-set")

	engine.HandleViolation(context.Background(), punishments.Player{UUID: "u1", Name: "alice"}, "spam", 0.92, "buy now")

	if store.points != 7 {
		t.Fatalf("expected balance 7, got %d", store.points)
	}
	if len(punisher.executed) != 1 {
		t.Fatalf("expected one punishment, got %d", len(punisher.executed))
	}
	if got := punisher.executed[0]; got.Type != punishments.TypeMute || got.DurationMinutes != 10 {
		t.Fatalf("expected MUTE:10m at 7 points, got %+v", got)
	}
	if store.lastAction != "mute" {
		t.Fatalf("violation action not rewritten, got %q", store.lastAction)
	}
	if len(store.logged) != 1 || store.logged[0].Action != "pending" {
		t.Fatalf("violation should be logged as pending first: %+v", store.logged)
	}
}

func TestHandleViolationBelowFirstThreshold(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	punisher := &stubPunisher{}
	engine := newTestEngine(t, store, punisher, "flagged-set")
	engine.cfg.CategoryWeights = map[string]int{}

	// Weight defaults to 1 for unlisted categories; rules start at 1,
	// so use a 0-threshold-free config by raising the first rule.
	var err error
	engine.rules, err = ParseRules([]string{"5:MUTE:10m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine.HandleViolation(context.Background(), punishments.Player{UUID: "u2", Name: "bob"}, "toxicity", 0.8, "msg")

	if len(punisher.executed) != 0 {
		t.Fatalf("expected no punishment at 1 point, got %+v", punisher.executed)
	}
	if store.lastAction != "none" {
		t.Fatalf("expected action %q, got %q", "none", store.lastAction)
	}
}

func TestHandleViolationAppliesCategoryWeight(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	punisher := &stubPunisher{}
	engine := newTestEngine(t, store, punisher, "flagged-set")
	engine.cfg.CategoryWeights = map[string]int{"hate": 5}

	engine.HandleViolation(context.Background(), punishments.Player{UUID: "u3", Name: "carol"}, "hate", 0.99, "msg")

	if store.points != 5 {
		t.Fatalf("expected weighted balance 5, got %d", store.points)
	}
	if len(punisher.executed) != 1 || punisher.executed[0].Type != punishments.TypeMute {
		t.Fatalf("expected mute at 5 points, got %+v", punisher.executed)
	}
}

func TestSelectCategoryFlaggedSet(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, &stubStore{}, &stubPunisher{}, "flagged-set")
	engine.enabled = map[string]struct{}{"spam": {}, "harassment": {}}

	result := &classifier.Result{
		Flagged:        true,
		Categories:     map[string]bool{"spam": true, "harassment": false, "sexual": true},
		CategoryScores: map[string]float64{"spam": 0.9, "harassment": 0.95, "sexual": 0.97},
	}

	category, score, ok := engine.SelectCategory(result, 0.8)
	if !ok {
		t.Fatal("expected a category")
	}
	// harassment is not flagged and sexual is not enabled, so spam wins
	// despite the lower score.
	if category != "spam" || score != 0.9 {
		t.Fatalf("got %s/%.2f, want spam/0.90", category, score)
	}

	if _, _, ok := engine.SelectCategory(&classifier.Result{Flagged: false}, 0.8); ok {
		t.Fatal("unflagged result should select nothing")
	}
}

func TestSelectCategoryPerThreshold(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, &stubStore{}, &stubPunisher{}, "per-category-threshold")
	engine.enabled = map[string]struct{}{"spam": {}, "harassment": {}}
	engine.cfg.CategoryThresholds = map[string]float64{"spam": 0.95, "harassment": 0.3}

	result := &classifier.Result{
		Flagged:        false,
		CategoryScores: map[string]float64{"spam": 0.9, "harassment": 0.4},
	}

	// spam misses its tightened threshold; harassment clears its
	// loosened one even though the service did not flag anything.
	category, score, ok := engine.SelectCategory(result, 0.85)
	if !ok {
		t.Fatal("expected a category")
	}
	if category != "harassment" || score != 0.4 {
		t.Fatalf("got %s/%.2f, want harassment/0.40", category, score)
	}
}

func TestSelectCategoryNilResult(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, &stubStore{}, &stubPunisher{}, "flagged-set")
	if _, _, ok := engine.SelectCategory(nil, 0.8); ok {
		t.Fatal("nil result should select nothing")
	}
}

func newTestEngine(t *testing.T, store *stubStore, punisher *stubPunisher, policy string) *Engine {
	t.Helper()
	engine, err := NewEngine(store, punisher, config.Escalation{
		Rules:          defaultRules(),
		CategoryPolicy: policy,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return engine
}
