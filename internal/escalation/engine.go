package escalation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/classifier"
	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/db"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

type ledgerStore interface {
	AddViolationPoints(ctx context.Context, playerUUID, playerName string, points int) error
	GetViolationPoints(ctx context.Context, playerUUID string) (int, error)
	LogViolation(ctx context.Context, v *db.Violation) (int64, error)
	UpdateViolationAction(ctx context.Context, violationID int64, action string) error
}

type punisher interface {
	Execute(player punishments.Player, spec punishments.Spec, reason, originalMessage string)
}

// Rule maps an accumulated point threshold to a punishment.
type Rule struct {
	Threshold int
	Spec      punishments.Spec
}

// ParseRules parses "threshold:SPEC" strings, e.g. "5:MUTE:10m".
// Unknown punishment types or malformed thresholds are configuration
// errors and fail loading.
func ParseRules(raw []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed escalation rule %q", entry)
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "escalation rule %q threshold", entry)
		}
		spec, err := punishments.ParseSpec(parts[1])
		if err != nil {
			return nil, errors.Wrapf(err, "escalation rule %q", entry)
		}
		rules = append(rules, Rule{Threshold: threshold, Spec: spec})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Threshold < rules[j].Threshold })
	return rules, nil
}

// Engine turns classification outcomes into ledger updates and
// punishments.
type Engine struct {
	store    ledgerStore
	punisher punisher
	cfg      config.Escalation
	rules    []Rule
	enabled  map[string]struct{}
	logger   *log.Entry
}

func NewEngine(store ledgerStore, punisher punisher, cfg config.Escalation) (*Engine, error) {
	rules, err := ParseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		punisher: punisher,
		cfg:      cfg,
		rules:    rules,
		enabled:  cfg.EnabledCategorySet(),
		logger:   log.WithField("object", "EscalationEngine"),
	}, nil
}

// HandleViolation records a violation against the player's ledger and
// issues whatever punishment the accumulated balance now warrants.
func (e *Engine) HandleViolation(ctx context.Context, player punishments.Player, category string, score float64, message string) {
	entry := e.logger.WithField("player", player.Name).WithField("category", category)
	observability.RecordViolation(category)

	weight := 1
	if w, ok := e.cfg.CategoryWeights[category]; ok {
		weight = w
	}
	if err := e.store.AddViolationPoints(ctx, player.UUID, player.Name, weight); err != nil {
		entry.WithField("error", err.Error()).Error("failed to add violation points")
	}

	violationID, err := e.store.LogViolation(ctx, &db.Violation{
		PlayerUUID: player.UUID,
		PlayerName: player.Name,
		Message:    message,
		Category:   category,
		Score:      score,
		Action:     "pending",
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to log violation")
	}

	points, err := e.store.GetViolationPoints(ctx, player.UUID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to read violation points")
	}

	action := "none"
	if spec, ok := e.Determine(points); ok {
		action = string(spec.Type)
		e.punisher.Execute(player, spec, category, message)
	}

	if violationID > 0 {
		if err := e.store.UpdateViolationAction(ctx, violationID, action); err != nil {
			entry.WithField("error", err.Error()).Error("failed to update violation action")
		}
	}
	entry.WithField("points", points).WithField("action", action).Debug("violation handled")
}

// Determine picks the rule with the greatest threshold not exceeding
// the point balance: the tightest-fitting tier, not the first match.
func (e *Engine) Determine(points int) (punishments.Spec, bool) {
	var selected punishments.Spec
	found := false
	for _, rule := range e.rules {
		if points >= rule.Threshold {
			selected = rule.Spec
			found = true
		}
	}
	return selected, found
}

// SelectCategory reduces a classification result to the single
// (category, score) pair the engine should act on, or ok=false when
// nothing in the result warrants action. Two policies are supported:
//
//   - "flagged-set": the highest-scoring category among those the
//     service flagged that are also enabled here.
//   - "per-category-threshold": the highest-scoring enabled category
//     whose score meets its own configured threshold, falling back to
//     globalThreshold when the category has none.
func (e *Engine) SelectCategory(result *classifier.Result, globalThreshold float64) (string, float64, bool) {
	if result == nil {
		return "", 0, false
	}

	switch e.cfg.CategoryPolicy {
	case "per-category-threshold":
		return e.selectByThreshold(result, globalThreshold)
	default:
		return e.selectFlagged(result)
	}
}

func (e *Engine) selectFlagged(result *classifier.Result) (string, float64, bool) {
	if !result.Flagged {
		return "", 0, false
	}
	best, bestScore := "", 0.0
	for _, category := range result.FlaggedCategories() {
		if _, ok := e.enabled[category]; !ok {
			continue
		}
		if score := result.CategoryScores[category]; best == "" || score > bestScore {
			best, bestScore = category, score
		}
	}
	return best, bestScore, best != ""
}

func (e *Engine) selectByThreshold(result *classifier.Result, globalThreshold float64) (string, float64, bool) {
	best, bestScore := "", 0.0
	for category, score := range result.CategoryScores {
		if _, ok := e.enabled[category]; !ok {
			continue
		}
		threshold := globalThreshold
		if t, ok := e.cfg.CategoryThresholds[category]; ok {
			threshold = t
		}
		if score < threshold {
			continue
		}
		if best == "" || score > bestScore {
			best, bestScore = category, score
		}
	}
	return best, bestScore, best != ""
}
