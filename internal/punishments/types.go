package punishments

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Type is the closed set of punishment kinds. Configuration strings
// are parsed into it once at the boundary; unknown strings surface as
// errors there instead of failing deep in execution.
type Type string

const (
	TypeWarn Type = "warn"
	TypeMute Type = "mute"
	TypeKick Type = "kick"
	TypeBan  Type = "ban"
)

func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn":
		return TypeWarn, nil
	case "mute":
		return TypeMute, nil
	case "kick":
		return TypeKick, nil
	case "ban":
		return TypeBan, nil
	}
	return "", fmt.Errorf("unknown punishment type %q", s)
}

// Spec is one parsed punishment, e.g. "MUTE:10m" becomes
// {Type: mute, DurationMinutes: 10}. DurationMinutes <= 0 means
// indefinite for mutes and bans.
type Spec struct {
	Type            Type
	DurationMinutes int
}

func (s Spec) String() string {
	if s.DurationMinutes > 0 {
		return fmt.Sprintf("%s:%dm", strings.ToUpper(string(s.Type)), s.DurationMinutes)
	}
	return strings.ToUpper(string(s.Type))
}

// ParseSpec parses "TYPE" or "TYPE:duration" punishment strings.
func ParseSpec(s string) (Spec, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	kind, err := ParseType(parts[0])
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{Type: kind, DurationMinutes: -1}
	if len(parts) > 1 {
		spec.DurationMinutes = ParseDuration(parts[1])
	}
	return spec, nil
}

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration converts duration strings into minutes: "90s", "10m",
// "2h", "1d", a bare integer of minutes, or "permanent" (-1). Seconds
// round up to at least one minute. Malformed input falls back to 10
// minutes rather than leaving a violation unpunished.
func ParseDuration(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "permanent" {
		return -1
	}

	if m := durationPattern.FindStringSubmatch(s); m != nil {
		value, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "s":
			return max(1, value/60)
		case "m":
			return value
		case "h":
			return value * 60
		case "d":
			return value * 60 * 24
		}
	}

	if value, err := strconv.Atoi(s); err == nil {
		return value
	}
	return 10
}

// FormatDuration renders minutes for player-facing messages.
func FormatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return "permanent"
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dd", minutes/1440)
	}
}
