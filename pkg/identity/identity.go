package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corvid-labs/ago/pkg/types"
)

// tombstoneTTL is how long a removed instance ID still resolves by exact
// match after Remove, so a client that calls stop twice in a row gets
// NotRunning from pkg/process.Manager.Stop instead of NoSuchAgent from
// ResolveAgent never finding the (already reaped) ID at all.
const tombstoneTTL = 30 * time.Second

// Mint generates a new instance ID of the form "<templateName>-<8 hex>".
// The suffix is drawn from a cryptographic PRNG; collisions are checked
// against taken (typically the Index's current membership) and re-rolled
// on the vanishingly rare hit.
func Mint(templateName string, taken map[string]bool) (string, error) {
	for attempt := 0; attempt < 32; attempt++ {
		suffix, err := randomHex(4)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s-%s", templateName, suffix)
		if !taken[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("identity: exhausted attempts minting an id for %q", templateName)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// record is one live instance tracked by the Index.
type record struct {
	templateName string
	customName   string
}

// Index is the daemon's name→ID lookup, kept in memory and rebuilt from
// the registry mirror on startup. It is the single owner of instance
// identity; pkg/process consults it before spawning and after reaping.
type Index struct {
	mu         sync.RWMutex
	records    map[string]record   // instanceID -> record
	tombstones map[string]time.Time // instanceID -> time of Remove
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		records:    make(map[string]record),
		tombstones: make(map[string]time.Time),
	}
}

// Add registers a newly spawned instance under instanceID, with an
// optional custom name (empty if the instance was created unnamed).
func (idx *Index) Add(instanceID, templateName, customName string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records[instanceID] = record{templateName: templateName, customName: customName}
}

// Remove drops instanceID, e.g. after it is reaped. A tombstone is kept
// for tombstoneTTL so a ResolveAgent lookup by exact ID shortly after
// still finds it, letting the caller's subsequent manager.Stop report
// NotRunning rather than ResolveAgent reporting NoSuchAgent.
func (idx *Index) Remove(instanceID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.records, instanceID)
	idx.tombstones[instanceID] = time.Now()
	idx.pruneTombstonesLocked()
}

func (idx *Index) pruneTombstonesLocked() {
	now := time.Now()
	for id, removedAt := range idx.tombstones {
		if now.Sub(removedAt) > tombstoneTTL {
			delete(idx.tombstones, id)
		}
	}
}

// Taken returns the current instance ID membership, for use with Mint to
// avoid a fresh collision against a live instance.
func (idx *Index) Taken() map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]bool, len(idx.records))
	for id := range idx.records {
		out[id] = true
	}
	return out
}

// ResolveAgent resolves a human-friendly reference — an exact instance
// ID, a custom name, or a template name — to the single matching instance
// ID. Matching an instance ID is always exact and always wins outright.
// Otherwise, if name matches exactly one instance's custom name, that
// instance is returned; if none, and name matches exactly one instance's
// template name, that instance is returned. More than one candidate at
// either step is AmbiguousAgent; none at all is NoSuchAgent.
func (idx *Index) ResolveAgent(name string) (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, ok := idx.records[name]; ok {
		return name, nil
	}
	if removedAt, ok := idx.tombstones[name]; ok && time.Since(removedAt) < tombstoneTTL {
		return name, nil
	}

	byCustomName := idx.matchingIDs(func(r record) bool { return r.customName == name })
	if len(byCustomName) == 1 {
		return byCustomName[0], nil
	}
	if len(byCustomName) > 1 {
		return "", ambiguous(name, byCustomName)
	}

	byTemplate := idx.matchingIDs(func(r record) bool { return r.templateName == name })
	if len(byTemplate) == 1 {
		return byTemplate[0], nil
	}
	if len(byTemplate) > 1 {
		return "", ambiguous(name, byTemplate)
	}

	return "", types.NewError(types.KindNoSuchAgent, name, nil)
}

func (idx *Index) matchingIDs(match func(record) bool) []string {
	var ids []string
	for id, r := range idx.records {
		if match(r) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func ambiguous(name string, candidates []string) error {
	return types.NewError(types.KindAmbiguousAgent, fmt.Sprintf("%s: candidates %v", name, candidates), nil)
}
