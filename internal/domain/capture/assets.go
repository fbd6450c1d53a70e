package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/id"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
	"github.com/gabriel-vasile/mimetype"
)

// Asset is a stored screenshot with its content identity
type Asset struct {
	ID        id.AssetID `json:"id"`
	SessionID string     `json:"sessionId"`
	MIME      string     `json:"mime"`
	Extension string     `json:"extension"`
	Size      int64      `json:"size"`
	Hash      string     `json:"hash"`
	ShortHash string     `json:"shortHash"`
	CreatedAt time.Time  `json:"createdAt"`

	data []byte
}

// Data returns a copy of the asset bytes
func (a *Asset) Data() []byte {
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

// AssetStats summarizes the store contents
type AssetStats struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"totalBytes"`
	Evicted    int   `json:"evicted"`
}

// AssetStore is a bounded in-memory store for screenshot assets.
// Content is addressed by hash so re-captures of an unchanged page do not
// consume additional slots. When the store is full the oldest asset is
// evicted.
type AssetStore struct {
	mu       sync.RWMutex
	assets   map[id.AssetID]*Asset
	byHash   map[string]id.AssetID
	order    []id.AssetID // insertion order, oldest first
	evicted  int
	identity *utils.AssetIdentifier
	maxBytes int64
	maxCount int
}

// NewAssetStore creates a store capped at maxCount assets of at most
// maxBytes each
func NewAssetStore(maxBytes int64, maxCount int) *AssetStore {
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	if maxCount <= 0 {
		maxCount = 100
	}
	return &AssetStore{
		assets:   make(map[id.AssetID]*Asset),
		byHash:   make(map[string]id.AssetID),
		identity: utils.NewAssetIdentifier(nil),
		maxBytes: maxBytes,
		maxCount: maxCount,
	}
}

// Ingest validates and stores screenshot bytes for a session.
// Only image content is accepted; the MIME type is sniffed from the bytes,
// never trusted from the sender. Returns the existing asset when the same
// content was already stored.
func (s *AssetStore) Ingest(sessionID string, content []byte) (*Asset, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("asset content required")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("asset exceeds maximum size of %d bytes", s.maxBytes)
	}

	mtype := mimetype.Detect(content)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("unsupported asset type %s, only images are accepted", mtype.String())
	}

	hash := s.identity.ContentHash(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byHash[hash]; ok {
		if existing, ok := s.assets[existingID]; ok {
			assetCopy := *existing
			return &assetCopy, nil
		}
	}

	for len(s.order) >= s.maxCount {
		s.evictOldest()
	}

	stored := make([]byte, len(content))
	copy(stored, content)

	asset := &Asset{
		ID:        id.NewAssetID(),
		SessionID: sessionID,
		MIME:      mtype.String(),
		Extension: mtype.Extension(),
		Size:      int64(len(content)),
		Hash:      hash,
		ShortHash: s.identity.ShortHash(hash),
		CreatedAt: time.Now(),
		data:      stored,
	}

	s.assets[asset.ID] = asset
	s.byHash[hash] = asset.ID
	s.order = append(s.order, asset.ID)

	return asset, nil
}

// Get retrieves an asset by ID
func (s *AssetStore) Get(assetID id.AssetID) (*Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[assetID]
	if !ok {
		return nil, false
	}
	assetCopy := *asset
	return &assetCopy, true
}

// List returns assets for a session in capture order, or all assets when
// sessionID is empty
func (s *AssetStore) List(sessionID string) []*Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]*Asset, 0, len(s.order))
	for _, assetID := range s.order {
		asset, ok := s.assets[assetID]
		if !ok {
			continue
		}
		if sessionID != "" && asset.SessionID != sessionID {
			continue
		}
		assetCopy := *asset
		assets = append(assets, &assetCopy)
	}
	return assets
}

// Remove deletes an asset by ID
func (s *AssetStore) Remove(assetID id.AssetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[assetID]
	if !ok {
		return false
	}
	s.drop(asset)
	return true
}

// PruneSession deletes all assets belonging to a session and returns the
// number removed
func (s *AssetStore) PruneSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, asset := range s.assets {
		if asset.SessionID == sessionID {
			s.drop(asset)
			removed++
		}
	}
	return removed
}

// Stats returns store statistics
func (s *AssetStore) Stats() AssetStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, asset := range s.assets {
		total += asset.Size
	}
	return AssetStats{
		Count:      len(s.assets),
		TotalBytes: total,
		Evicted:    s.evicted,
	}
}

// evictOldest removes the oldest asset (internal, must hold lock)
func (s *AssetStore) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	if asset, ok := s.assets[oldest]; ok {
		s.drop(asset)
	} else {
		s.order = s.order[1:]
	}
	s.evicted++
}

// drop removes an asset from all indexes (internal, must hold lock)
func (s *AssetStore) drop(asset *Asset) {
	delete(s.assets, asset.ID)
	delete(s.byHash, asset.Hash)
	for i, assetID := range s.order {
		if assetID == asset.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
