// Package lock elects a single processor per job among workers that all
// received the same broadcast.
package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/redisholder"
)

// unlockScript deletes the key only while it still holds our value.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Manager is an advisory per-job lock keyed under Namespace.
type Manager struct {
	source     redisholder.Source
	namespace  string
	instanceID string
	ttl        time.Duration
	log        zerolog.Logger
}

func NewManager(source redisholder.Source, namespace, instanceID string, ttl time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		source:     source,
		namespace:  namespace,
		instanceID: instanceID,
		ttl:        ttl,
		log:        logger,
	}
}

// InstanceID is the value this manager writes into the locks it holds.
func (m *Manager) InstanceID() string { return m.instanceID }

func (m *Manager) key(id string) string { return m.namespace + ":" + id }

// Acquire creates the lock entry for id only if none exists. Any Redis error
// counts as a lost race.
func (m *Manager) Acquire(ctx context.Context, id string) bool {
	ok, err := m.source.Get().SetNX(ctx, m.key(id), m.instanceID, m.ttl).Result()
	if err != nil {
		m.log.Warn().Err(err).Str("job_id", id).Msg("lock: acquire failed, skipping job")
		return false
	}
	return ok
}

// Release deletes the entry for id if this instance still holds it.
// Errors are ignored; the entry expires on its own.
func (m *Manager) Release(ctx context.Context, id string) {
	err := unlockScript.Run(ctx, m.source.Get(), []string{m.key(id)}, m.instanceID).Err()
	if err != nil {
		m.log.Debug().Err(err).Str("job_id", id).Msg("lock: release failed")
	}
}
