package draft

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/savefood/backoffice_core/config"
	"github.com/savefood/backoffice_core/storage"
	"github.com/savefood/backoffice_core/utils"
)

const (
	// sibling key holding the save time as epoch milliseconds
	timestampSuffix = "_timestamp"

	// NoDraft is the sentinel DescribeDraftAge returns when nothing is stored.
	NoDraft = "no draft"

	defaultMaxAge  = 24 * time.Hour
	defaultLockTTL = 3 * time.Second
)

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	// MaxAge is how long a draft stays restorable. A draft aged exactly
	// MaxAge is already expired.
	MaxAge time.Duration

	// LockTTL bounds the per-key write lock when draft locking is enabled.
	LockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAge:  defaultMaxAge,
		LockTTL: defaultLockTTL,
	}
}

// Service persists in-progress form state so navigation, refresh or a crash
// never silently loses user input. Storage failures are absorbed and logged:
// a draft is a safety net, not a correctness-critical store, so every failure
// mode collapses to "no draft".
type Service struct {
	store   storage.Store
	maxAge  time.Duration
	lockTTL time.Duration

	now func() time.Time
}

func NewService(store storage.Store, cfg Config) *Service {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Service{
		store:   store,
		maxAge:  cfg.MaxAge,
		lockTTL: cfg.LockTTL,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SaveDraft writes payload under key together with the current timestamp,
// replacing any prior draft. Safe to call on every autosave tick: failures
// are logged and swallowed, never returned to the form.
func (s *Service) SaveDraft(ctx context.Context, key string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		config.LogError(config.GetLogger(), "draft", "SaveDraft", key, nil, err)
		return
	}

	// on shared backends, writers from different sessions can race on the
	// same key; the lock upgrades last-write-wins to serialized writes
	if locker := config.GetRedisLock(); locker != nil && config.DraftLockingEnabled() {
		lock, lockErr := locker.Obtain(ctx, "draftlock:"+key, s.lockTTL, nil)
		if lockErr == nil {
			defer lock.Release(ctx)
		} else if lockErr != redislock.ErrNotObtained {
			config.LogWarn(config.GetLogger(), "draft", "SaveDraft", "obtain lock "+key, lockErr)
		}
		// lock not obtained: fall through, last write wins
	}

	savedAt := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.Set(ctx, key, raw, s.maxAge); err != nil {
		config.LogError(config.GetLogger(), "draft", "SaveDraft", key, nil, err)
		return
	}
	if err := s.store.Set(ctx, key+timestampSuffix, []byte(savedAt), s.maxAge); err != nil {
		config.LogError(config.GetLogger(), "draft", "SaveDraft", key+timestampSuffix, nil, err)
	}
}

// GetDraft reads the stored payload into dest. Returns false when no entry
// exists, the entry fails to parse, or the draft has reached max age; an
// expired entry is deleted as a side effect of the read.
func (s *Service) GetDraft(ctx context.Context, key string, dest any) bool {
	raw, _, ok := s.GetDraftRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		config.LogWarn(config.GetLogger(), "draft", "GetDraft", "corrupt payload "+key, err)
		s.ClearDraft(ctx, key)
		return false
	}
	return true
}

// GetDraftRaw is GetDraft without deserialization, for callers that relay
// the payload as-is (the draft-sync service).
func (s *Service) GetDraftRaw(ctx context.Context, key string) ([]byte, time.Time, bool) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		config.LogError(config.GetLogger(), "draft", "GetDraftRaw", key, nil, err)
		return nil, time.Time{}, false
	}
	if !found {
		return nil, time.Time{}, false
	}

	savedAt, ok := s.savedAt(ctx, key)
	if !ok {
		// payload without a readable timestamp is unusable
		s.ClearDraft(ctx, key)
		return nil, time.Time{}, false
	}
	if s.now().Sub(savedAt) >= s.maxAge {
		s.ClearDraft(ctx, key)
		return nil, time.Time{}, false
	}
	return raw, savedAt, true
}

// ClearDraft deletes the entry unconditionally. Idempotent.
func (s *Service) ClearDraft(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key, key+timestampSuffix); err != nil {
		config.LogError(config.GetLogger(), "draft", "ClearDraft", key, nil, err)
	}
}

func (s *Service) HasDraft(ctx context.Context, key string) bool {
	_, _, ok := s.GetDraftRaw(ctx, key)
	return ok
}

// DescribeDraftAge renders how old the stored draft is, for the restore
// prompt. Returns the NoDraft sentinel when nothing restorable exists.
func (s *Service) DescribeDraftAge(ctx context.Context, key string) string {
	_, savedAt, ok := s.GetDraftRaw(ctx, key)
	if !ok {
		return NoDraft
	}
	return utils.FormatRelativeTime(savedAt, s.now())
}

// SavedAt exposes the raw save time, used by the cleanup tool.
func (s *Service) SavedAt(ctx context.Context, key string) (time.Time, bool) {
	return s.savedAt(ctx, key)
}

// MaxAge returns the configured expiry window.
func (s *Service) MaxAge() time.Duration {
	return s.maxAge
}

// Keys lists draft keys with the given prefix, skipping timestamp siblings.
func (s *Service) Keys(ctx context.Context, prefix string) ([]string, error) {
	all, err := s.store.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, key := range all {
		if strings.HasSuffix(key, timestampSuffix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) savedAt(ctx context.Context, key string) (time.Time, bool) {
	raw, found, err := s.store.Get(ctx, key+timestampSuffix)
	if err != nil || !found {
		if err != nil {
			config.LogError(config.GetLogger(), "draft", "savedAt", key, nil, err)
		}
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		config.LogWarn(config.GetLogger(), "draft", "savedAt", "corrupt timestamp "+key, err)
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
