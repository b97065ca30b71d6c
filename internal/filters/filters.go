package filters

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
)

type Kind string

const (
	KindSpam  Kind = "spam"
	KindFlood Kind = "flood"
	KindLink  Kind = "link"
	KindIP    Kind = "ip"
	KindCaps  Kind = "caps"
)

const (
	ActionBlock     = "block"
	ActionLowercase = "lowercase"
)

var (
	urlPattern = regexp.MustCompile(`(?i)(https?://)?([\w-]+\.)+[\w-]+(/[\w-./?%&=]*)?`)
	ipPattern  = regexp.MustCompile(`\b(?:\d{1,3}[.,]){3}\d{1,3}(?::\d{1,5})?\b`)
)

// Verdict is the outcome of one pipeline pass. A modified verdict is
// still allowed; the caller must substitute Text before delivery.
type Verdict struct {
	Allowed  bool
	Kind     Kind
	Modified bool
	Text     string
}

func allow() Verdict         { return Verdict{Allowed: true} }
func deny(kind Kind) Verdict { return Verdict{Kind: kind} }
func modify(kind Kind, text string) Verdict {
	return Verdict{Allowed: true, Kind: kind, Modified: true, Text: text}
}

type record struct {
	text string
	at   time.Time
}

// history is one player's recent messages. Players own independent
// histories, so unrelated senders never contend on a lock.
type history struct {
	mu      sync.Mutex
	records []record
}

// Manager runs the local rule checks ahead of any external call.
type Manager struct {
	cfg config.Filters

	mu        sync.RWMutex
	histories map[string]*history

	now func() time.Time
}

func NewManager(cfg config.Filters) *Manager {
	return &Manager{
		cfg:       cfg,
		histories: map[string]*history{},
		now:       time.Now,
	}
}

// Check evaluates the fixed filter order: spam, flood, link, ip, caps.
// The first rejecting or modifying check wins. The message is recorded
// into the player's spam/flood history whether or not it was allowed,
// so rejected bursts still count against the windows.
func (m *Manager) Check(player, text string) Verdict {
	verdict := m.run(player, text)

	recorded := text
	if verdict.Modified {
		recorded = verdict.Text
	}
	m.recordMessage(player, recorded)

	if !verdict.Allowed {
		observability.RecordFilterRejection(string(verdict.Kind))
	}
	return verdict
}

func (m *Manager) run(player, text string) Verdict {
	if m.cfg.SpamEnabled {
		if v := m.checkSpam(player, text); !v.Allowed {
			return v
		}
	}
	if m.cfg.FloodEnabled {
		if v := m.checkFlood(player); !v.Allowed {
			return v
		}
	}
	if m.cfg.LinkEnabled {
		if v := m.checkLinks(text); !v.Allowed {
			return v
		}
	}
	if m.cfg.IPEnabled {
		if v := m.checkIP(text); !v.Allowed {
			return v
		}
	}
	if m.cfg.CapsEnabled {
		return m.checkCaps(text)
	}
	return allow()
}

func (m *Manager) checkSpam(player, text string) Verdict {
	h := m.getOrCreateHistory(player)
	normalized := normalize(text)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(m.now().Add(-m.cfg.SpamWindow))

	identical := 0
	for _, r := range h.records {
		if normalize(r.text) == normalized {
			identical++
		}
	}
	if identical >= m.cfg.SpamMax {
		return deny(KindSpam)
	}
	return allow()
}

func (m *Manager) checkFlood(player string) Verdict {
	h := m.getOrCreateHistory(player)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(m.now().Add(-m.cfg.FloodWindow))

	if len(h.records) >= m.cfg.FloodMax {
		return deny(KindFlood)
	}
	return allow()
}

func (m *Manager) checkLinks(text string) Verdict {
	if !urlPattern.MatchString(text) {
		return allow()
	}
	lowered := strings.ToLower(text)
	for _, allowed := range m.cfg.LinkWhitelist {
		if allowed != "" && strings.Contains(lowered, strings.ToLower(allowed)) {
			return allow()
		}
	}
	if strings.EqualFold(m.cfg.LinkAction, ActionBlock) {
		return deny(KindLink)
	}
	return allow()
}

func (m *Manager) checkIP(text string) Verdict {
	if !ipPattern.MatchString(text) {
		return allow()
	}
	for _, allowed := range m.cfg.IPWhitelist {
		if allowed != "" && strings.Contains(text, allowed) {
			return allow()
		}
	}
	return deny(KindIP)
}

func (m *Manager) checkCaps(text string) Verdict {
	if len(text) < m.cfg.CapsMinLength {
		return allow()
	}

	upper, letters := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return allow()
	}

	percentage := float64(upper) * 100.0 / float64(letters)
	if percentage <= float64(m.cfg.CapsMaxRatio) {
		return allow()
	}

	switch strings.ToLower(m.cfg.CapsAction) {
	case ActionLowercase:
		return modify(KindCaps, strings.ToLower(text))
	case ActionBlock:
		return deny(KindCaps)
	}
	return allow()
}

func (m *Manager) getOrCreateHistory(player string) *history {
	m.mu.RLock()
	h, ok := m.histories[player]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histories[player]; ok {
		return h
	}
	h = &history{}
	m.histories[player] = h
	return h
}

func (m *Manager) recordMessage(player, text string) {
	h := m.getOrCreateHistory(player)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record{text: text, at: m.now()})
}

// ClearHistory drops a player's recent messages, e.g. on disconnect.
func (m *Manager) ClearHistory(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, player)
}

// prune drops records older than cutoff. Callers hold h.mu.
func (h *history) prune(cutoff time.Time) {
	kept := h.records[:0]
	for _, r := range h.records {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	h.records = kept
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
