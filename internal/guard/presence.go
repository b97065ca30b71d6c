package guard

import (
	"sync"

	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
)

// Registry tracks which players are currently connected. Deferred
// classification outcomes consult it before punishing so a player who
// left between send and verdict is not acted on in absentia.
type Registry struct {
	mu      sync.RWMutex
	players map[string]punishments.Player
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]punishments.Player)}
}

func (r *Registry) Join(player punishments.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[player.UUID] = player
}

func (r *Registry) Leave(playerUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, playerUUID)
}

func (r *Registry) IsOnline(playerUUID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[playerUUID]
	return ok
}

func (r *Registry) Resolve(playerUUID string) (punishments.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	player, ok := r.players[playerUUID]
	return player, ok
}

func (r *Registry) Online() []punishments.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]punishments.Player, 0, len(r.players))
	for _, player := range r.players {
		out = append(out, player)
	}
	return out
}
