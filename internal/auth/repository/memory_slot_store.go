package repository

import (
	"context"
	"hash/fnv"
	"sync"

	authdomain "github.com/AlibekovAA/session-auth/internal/auth/domain"
	"github.com/AlibekovAA/session-auth/internal/common/clock"
	"github.com/AlibekovAA/session-auth/internal/common/constants"
)

type slotShard struct {
	mu    sync.Mutex
	slots map[string]authdomain.Slot
}

// MemorySlotStore shards slots by account id. Operations on one account
// serialize on its shard mutex; different shards never contend.
type MemorySlotStore struct {
	shards []*slotShard
	clock  clock.Clock
}

func NewMemorySlotStore(clk clock.Clock) *MemorySlotStore {
	shards := make([]*slotShard, constants.SlotStoreShardCount)
	for i := range shards {
		shards[i] = &slotShard{slots: make(map[string]authdomain.Slot)}
	}
	return &MemorySlotStore{shards: shards, clock: clk}
}

func (s *MemorySlotStore) shard(accountID string) *slotShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *MemorySlotStore) Store(_ context.Context, accountID string, slot authdomain.Slot) error {
	sh := s.shard(accountID)
	sh.mu.Lock()
	sh.slots[accountID] = slot
	sh.mu.Unlock()
	return nil
}

func (s *MemorySlotStore) Load(_ context.Context, accountID string) (authdomain.Slot, error) {
	sh := s.shard(accountID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	slot, ok := sh.slots[accountID]
	if !ok || slot.Empty() {
		return authdomain.Slot{}, ErrSlotEmpty
	}
	return slot, nil
}

func (s *MemorySlotStore) CompareAndSwap(_ context.Context, accountID, expectedHash string, next authdomain.Slot) (bool, error) {
	sh := s.shard(accountID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, ok := sh.slots[accountID]
	if !ok || current.TokenHash != expectedHash || current.ExpiredAt(s.clock.Now()) {
		return false, nil
	}
	sh.slots[accountID] = next
	return true, nil
}

func (s *MemorySlotStore) Clear(_ context.Context, accountID string) error {
	sh := s.shard(accountID)
	sh.mu.Lock()
	delete(sh.slots, accountID)
	sh.mu.Unlock()
	return nil
}

func (s *MemorySlotStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	var deleted int64

	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		sh.mu.Lock()
		for id, slot := range sh.slots {
			if slot.ExpiredAt(now) {
				delete(sh.slots, id)
				deleted++
			}
		}
		sh.mu.Unlock()
	}

	return deleted, nil
}
