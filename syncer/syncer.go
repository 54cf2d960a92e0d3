// Package syncer reconciles a local document store against a remote
// namespaced key-value memory under four strategies with pluggable
// conflict resolution.
//
// Sync never raises: every per-document failure is captured into the
// result's error list and remaining documents are still processed.
// There is no automatic retry; callers re-invoke sync.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agentdb/remote"
	"agentdb/store"
)

// Strategy selects how a collection is reconciled.
type Strategy string

const (
	StrategyPush    Strategy = "push"    // local overwrites remote
	StrategyPull    Strategy = "pull"    // remote overwrites local
	StrategyMerge   Strategy = "merge"   // two-way with conflict resolution
	StrategyReplace Strategy = "replace" // clear remote, then full push
)

// Resolution picks the winner when the same id diverged on both sides.
type Resolution string

const (
	ResolutionLocal  Resolution = "local"  // local copy wins
	ResolutionRemote Resolution = "remote" // remote copy wins
	ResolutionLatest Resolution = "latest" // later updatedAt wins

	// ResolutionManual resolves automatically despite its name: the
	// higher version wins. Kept as-is for compatibility with existing
	// sync configurations.
	ResolutionManual Resolution = "manual"
)

// ErrInvalidConfig is returned by New for unknown strategies or
// resolutions.
var ErrInvalidConfig = errors.New("syncer: invalid config")

// namespacePrefix scopes this store's data within the remote memory.
const namespacePrefix = "agentdb/"

// Config is fixed for the lifetime of a Manager.
type Config struct {
	Enabled            bool
	Strategy           Strategy
	ConflictResolution Resolution
	AutoSync           bool
	SyncInterval       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyMerge
	}
	if c.ConflictResolution == "" {
		c.ConflictResolution = ResolutionLatest
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 5 * time.Minute
	}
	return c
}

func (c Config) validate() error {
	switch c.Strategy {
	case StrategyPush, StrategyPull, StrategyMerge, StrategyReplace:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	switch c.ConflictResolution {
	case ResolutionLocal, ResolutionRemote, ResolutionLatest, ResolutionManual:
	default:
		return fmt.Errorf("%w: unknown conflict resolution %q", ErrInvalidConfig, c.ConflictResolution)
	}
	return nil
}

// Result is the outcome of one sync call. Success means the errors list
// is empty; callers should check both.
type Result struct {
	Success   bool
	Synced    int
	Conflicts int
	Errors    []string
	Timestamp time.Time
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) finish() *Result {
	r.Success = len(r.Errors) == 0
	r.Timestamp = time.Now().UTC()
	return r
}

// Manager reconciles the local store against a remote memory.
type Manager struct {
	store  *store.Store
	remote remote.Memory
	cfg    Config

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// New creates a sync manager. The config is validated once and immutable
// afterwards.
func New(st *store.Store, mem remote.Memory, cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{store: st, remote: mem, cfg: cfg}, nil
}

// Config returns the manager's immutable configuration.
func (m *Manager) Config() Config { return m.cfg }

func namespace(collection string) string {
	return namespacePrefix + collection
}

func documentKey(collection, id string) string {
	return collection + "/" + id
}

// SyncCollection reconciles one collection under the configured
// strategy.
func (m *Manager) SyncCollection(ctx context.Context, collection string) *Result {
	res := &Result{}
	if !m.cfg.Enabled {
		res.fail("Sync is disabled")
		return res.finish()
	}

	local, err := m.store.List(ctx, collection, nil)
	if err != nil {
		res.fail("Failed to list local documents: %v", err)
		return res.finish()
	}
	remoteKeys, err := m.remote.List(ctx, namespace(collection))
	if err != nil {
		res.fail("Failed to list remote keys: %v", err)
		return res.finish()
	}

	switch m.cfg.Strategy {
	case StrategyPush:
		m.pushAll(ctx, collection, local.Documents, res)
	case StrategyPull:
		m.pullAll(ctx, collection, remoteKeys, res)
	case StrategyMerge:
		m.merge(ctx, collection, local.Documents, remoteKeys, res)
	case StrategyReplace:
		m.replace(ctx, collection, local.Documents, remoteKeys, res)
	}
	return res.finish()
}

// pushAll writes every local document to the remote. Per-document
// failures are recorded and do not abort the rest.
func (m *Manager) pushAll(ctx context.Context, collection string, docs []store.Document, res *Result) {
	for _, doc := range docs {
		if err := m.pushOne(ctx, collection, doc); err != nil {
			res.fail("Failed to push %s: %v", doc.ID(), err)
			continue
		}
		res.Synced++
	}
}

func (m *Manager) pushOne(ctx context.Context, collection string, doc store.Document) error {
	body, err := store.Encode(doc)
	if err != nil {
		return err
	}
	return m.remote.Store(ctx, documentKey(collection, doc.ID()), string(body), namespace(collection), 0)
}

// pullAll saves every remote document into the local store. Absent
// values are skipped, not counted and not errors.
func (m *Manager) pullAll(ctx context.Context, collection string, keys []string, res *Result) {
	for _, key := range keys {
		skipped, err := m.pullOne(ctx, collection, key)
		if err != nil {
			res.fail("Failed to pull %s: %v", key, err)
			continue
		}
		if !skipped {
			res.Synced++
		}
	}
}

func (m *Manager) pullOne(ctx context.Context, collection, key string) (skipped bool, err error) {
	value, ok, err := m.remote.Retrieve(ctx, key, namespace(collection))
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	doc, err := store.Decode([]byte(value))
	if err != nil {
		return false, err
	}
	_, err = m.store.Save(ctx, collection, doc)
	return false, err
}

// merge partitions ids into local-only (pushed), remote-only (pulled)
// and present-on-both (resolved per the configured resolution, with the
// winner written to both sides).
func (m *Manager) merge(ctx context.Context, collection string, docs []store.Document, remoteKeys []string, res *Result) {
	localByID := make(map[string]store.Document, len(docs))
	for _, doc := range docs {
		localByID[doc.ID()] = doc
	}
	remoteIDs := make(map[string]string, len(remoteKeys)) // id -> key
	for _, key := range remoteKeys {
		remoteIDs[strings.TrimPrefix(key, collection+"/")] = key
	}

	for id, doc := range localByID {
		if _, both := remoteIDs[id]; both {
			continue
		}
		if err := m.pushOne(ctx, collection, doc); err != nil {
			res.fail("Failed to push %s: %v", id, err)
			continue
		}
		res.Synced++
	}

	for id, key := range remoteIDs {
		local, both := localByID[id]
		if !both {
			skipped, err := m.pullOne(ctx, collection, key)
			if err != nil {
				res.fail("Failed to pull %s: %v", key, err)
				continue
			}
			if !skipped {
				res.Synced++
			}
			continue
		}
		if err := m.resolveConflict(ctx, collection, key, local); err != nil {
			res.fail("Failed to resolve conflict for %s: %v", id, err)
			continue
		}
		res.Conflicts++
	}
}

// resolveConflict picks a winner between the local document and the
// remote value under key, then writes the winner to both sides so they
// converge.
func (m *Manager) resolveConflict(ctx context.Context, collection, key string, local store.Document) error {
	value, ok, err := m.remote.Retrieve(ctx, key, namespace(collection))
	if err != nil {
		return err
	}
	winner := local
	if ok {
		remoteDoc, err := store.Decode([]byte(value))
		if err != nil {
			return err
		}
		winner = resolve(m.cfg.ConflictResolution, local, remoteDoc)
	}

	if _, err := m.store.Save(ctx, collection, winner); err != nil {
		return err
	}
	return m.pushOne(ctx, collection, winner)
}

// resolve applies a resolution rule. Ties keep the local copy.
func resolve(rule Resolution, local, remoteDoc store.Document) store.Document {
	switch rule {
	case ResolutionLocal:
		return local
	case ResolutionRemote:
		return remoteDoc
	case ResolutionLatest:
		if remoteDoc.UpdatedAt().After(local.UpdatedAt()) {
			return remoteDoc
		}
		return local
	case ResolutionManual:
		// Version-wins. See ResolutionManual.
		if remoteDoc.Version() > local.Version() {
			return remoteDoc
		}
		return local
	default:
		return local
	}
}

// replace deletes every existing remote key first, then pushes all local
// documents: a full mirror where local wins unconditionally.
func (m *Manager) replace(ctx context.Context, collection string, docs []store.Document, remoteKeys []string, res *Result) {
	for _, key := range remoteKeys {
		if _, err := m.remote.Delete(ctx, key, namespace(collection)); err != nil {
			res.fail("Failed to delete remote %s: %v", key, err)
		}
	}
	m.pushAll(ctx, collection, docs, res)
}

// SyncDocument pushes a single document, independent of strategy.
// Returns false on any failure, including sync being disabled.
func (m *Manager) SyncDocument(ctx context.Context, collection string, doc store.Document) bool {
	if !m.cfg.Enabled {
		return false
	}
	if err := m.pushOne(ctx, collection, doc); err != nil {
		log.Printf("[Syncer] Failed to sync document %s/%s: %v", collection, doc.ID(), err)
		return false
	}
	return true
}

// SyncAll runs SyncCollection for every known collection and aggregates
// the results.
func (m *Manager) SyncAll(ctx context.Context) *Result {
	res := &Result{}
	if !m.cfg.Enabled {
		res.fail("Sync is disabled")
		return res.finish()
	}

	collections, err := m.store.Collections(ctx)
	if err != nil {
		res.fail("Failed to list collections: %v", err)
		return res.finish()
	}

	for _, collection := range collections {
		r := m.SyncCollection(ctx, collection)
		res.Synced += r.Synced
		res.Conflicts += r.Conflicts
		res.Errors = append(res.Errors, r.Errors...)
	}
	return res.finish()
}

// StartAutoSync schedules SyncAll on a repeating interval. Calling it
// again replaces the existing schedule; two timers never run at once.
func (m *Manager) StartAutoSync(interval time.Duration) error {
	if interval <= 0 {
		interval = m.cfg.SyncInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron == nil {
		m.cron = cron.New()
		m.cron.Start()
	}
	if m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}

	id, err := m.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		result := m.SyncAll(context.Background())
		if !result.Success {
			log.Printf("[Syncer] Auto-sync finished with %d errors (synced %d, conflicts %d)",
				len(result.Errors), result.Synced, result.Conflicts)
		}
	})
	if err != nil {
		return fmt.Errorf("syncer: schedule auto-sync: %w", err)
	}
	m.entryID = id
	log.Printf("[Syncer] Auto-sync every %s", interval)
	return nil
}

// StopAutoSync removes the auto-sync schedule. The cron runner stays
// alive for a later StartAutoSync.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron != nil && m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}
}

// Destroy stops the timer and waits for any in-flight tick. No tick
// fires after Destroy returns.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron != nil {
		<-m.cron.Stop().Done()
		m.cron = nil
		m.entryID = 0
	}
}
