package guard

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/classifier"
	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/escalation"
	"github.com/Lora-Technologies/LoraGuard/internal/filters"
	"github.com/Lora-Technologies/LoraGuard/internal/infra"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

type textClassifier interface {
	Classify(ctx context.Context, text string) (*classifier.Result, error)
}

type muteChecker interface {
	IsMuted(player string) bool
	MuteRemaining(player string) string
}

// Decision is the synchronous answer to a chat message: whether to let
// it through, and in what form. A deferred classification verdict may
// still punish the sender after an allowed message.
type Decision struct {
	Allowed bool
	Reason  string
	Text    string
	Detail  string
}

const (
	ReasonMuted     = "muted"
	ReasonSlowmode  = "slowmode"
	ReasonFilter    = "filter"
	ReasonBlacklist = "blacklist"
	ReasonFlagged   = "flagged"
)

// Service is the chat pipeline: mute gate, slowmode, local filters,
// blacklist, then content classification. Everything up to and
// including the cache lookup is synchronous; a cache miss releases the
// message and classifies in the background.
type Service struct {
	cfg        config.Config
	classifier textClassifier
	cache      *classifier.ResultCache
	filters    *filters.Manager
	engine     *escalation.Engine
	mutes      muteChecker
	presence   *Registry
	slowmode   *Cooldowns
	blacklist  []string
	enabled    map[string]struct{}
	logger     *log.Entry
}

func NewService(
	cfg config.Config,
	textClassifier textClassifier,
	cache *classifier.ResultCache,
	filterManager *filters.Manager,
	engine *escalation.Engine,
	mutes muteChecker,
	presence *Registry,
) *Service {
	blacklist := make([]string, 0, len(cfg.Escalation.Blacklist))
	for _, word := range cfg.Escalation.Blacklist {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			blacklist = append(blacklist, word)
		}
	}

	var slowmode *Cooldowns
	if cfg.Slowmode.Enabled {
		slowmode = NewCooldowns(cfg.Slowmode.Delay)
	}

	return &Service{
		cfg:        cfg,
		classifier: textClassifier,
		cache:      cache,
		filters:    filterManager,
		engine:     engine,
		mutes:      mutes,
		presence:   presence,
		slowmode:   slowmode,
		blacklist:  blacklist,
		enabled:    cfg.Escalation.EnabledCategorySet(),
		logger:     log.WithField("object", "GuardService"),
	}
}

// ProcessMessage runs a chat message through the pipeline and decides
// its fate. The classification service is never on the critical path:
// a cached verdict applies immediately, an uncached message goes
// through and is judged behind the sender's back.
func (s *Service) ProcessMessage(ctx context.Context, player punishments.Player, text string) Decision {
	observability.RecordMessageProcessed()

	if s.mutes.IsMuted(player.UUID) {
		return Decision{Reason: ReasonMuted, Detail: s.mutes.MuteRemaining(player.UUID)}
	}

	if s.slowmode != nil {
		if ok, remaining := s.slowmode.TryAcquire(player.UUID); !ok {
			return Decision{Reason: ReasonSlowmode, Detail: remaining.Round(time.Second).String()}
		}
	}

	verdict := s.filters.Check(player.UUID, text)
	if !verdict.Allowed {
		return Decision{Reason: ReasonFilter, Detail: string(verdict.Kind)}
	}
	if verdict.Modified {
		text = verdict.Text
	}

	if word, hit := s.matchBlacklist(text); hit {
		s.engine.HandleViolation(ctx, player, ReasonBlacklist, 1.0, text)
		return Decision{Reason: ReasonBlacklist, Detail: word}
	}

	if cached, ok := s.cache.Get(text); ok {
		if cached.Flagged && s.actionable(cached.Category, cached.Score) {
			s.engine.HandleViolation(ctx, player, cached.Category, cached.Score, text)
			return Decision{Reason: ReasonFlagged, Detail: cached.Category}
		}
		return Decision{Allowed: true, Text: text}
	}

	s.classifyDeferred(player, text)
	return Decision{Allowed: true, Text: text}
}

// classifyDeferred judges an already-released message. The goroutine
// owns its own context so the verdict lands even if the sender's
// request is long gone; side effects are skipped when the sender is.
func (s *Service) classifyDeferred(player punishments.Player, text string) {
	go infra.GoRecoverable(1, "classify", func() {
		result, err := s.classifier.Classify(context.Background(), text)
		if err != nil {
			// Fail open. An unreachable classifier must not gag chat.
			s.logger.WithField("error", err.Error()).Debug("classification skipped")
			return
		}
		s.cache.Put(text, result)

		category, score, ok := s.engine.SelectCategory(result, s.cfg.API.Threshold)
		if !ok {
			return
		}
		if !s.presence.IsOnline(player.UUID) {
			s.logger.WithField("player", player.Name).Debug("offender left before verdict")
			return
		}
		s.engine.HandleViolation(context.Background(), player, category, score, text)
	})
}

func (s *Service) matchBlacklist(text string) (string, bool) {
	if len(s.blacklist) == 0 {
		return "", false
	}
	normalized := classifier.Normalize(text)
	for _, word := range s.blacklist {
		if strings.Contains(normalized, word) {
			return word, true
		}
	}
	return "", false
}

func (s *Service) actionable(category string, score float64) bool {
	if _, ok := s.enabled[category]; !ok {
		return false
	}
	return score >= s.cfg.API.Threshold
}

// PlayerJoined registers presence and enforces any standing ban state
// the caller resolved beforehand.
func (s *Service) PlayerJoined(player punishments.Player) {
	s.presence.Join(player)
}

// PlayerLeft drops presence and the player's filter history.
func (s *Service) PlayerLeft(playerUUID string) {
	s.presence.Leave(playerUUID)
	s.filters.ClearHistory(playerUUID)
	if s.slowmode != nil {
		s.slowmode.Clear(playerUUID)
	}
}
