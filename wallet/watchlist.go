package wallet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const assetKeyPrefix = "asset:"

// Asset is a token the user asked their wallet to track.
type Asset struct {
	Standard string
	Address  common.Address
	TokenID  *big.Int
	AddedAt  time.Time
}

func (a Asset) key() []byte {
	id := ""
	if a.TokenID != nil {
		id = a.TokenID.String()
	}
	return []byte(assetKeyPrefix + strings.ToUpper(a.Standard) + ":" + strings.ToLower(a.Address.Hex()) + ":" + id)
}

func parseAssetKey(key []byte) (Asset, bool) {
	parts := strings.SplitN(strings.TrimPrefix(string(key), assetKeyPrefix), ":", 3)
	if len(parts) != 3 || !common.IsHexAddress(parts[1]) {
		return Asset{}, false
	}
	asset := Asset{Standard: parts[0], Address: common.HexToAddress(parts[1])}
	if parts[2] != "" {
		id, ok := new(big.Int).SetString(parts[2], 10)
		if !ok {
			return Asset{}, false
		}
		asset.TokenID = id
	}
	return asset, true
}

// Watchlist persists watched assets in LevelDB, standing in for a browser
// wallet's token list.
type Watchlist struct {
	db *leveldb.DB
}

// OpenWatchlist opens (or creates) the store at path.
func OpenWatchlist(path string) (*Watchlist, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("watchlist path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve watchlist path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	return &Watchlist{db: db}, nil
}

// Close releases the underlying LevelDB resources.
func (w *Watchlist) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Add records asset. It reports false when the asset was already present.
func (w *Watchlist) Add(asset Asset) (bool, error) {
	if w == nil || w.db == nil {
		return false, fmt.Errorf("watchlist not configured")
	}
	if strings.TrimSpace(asset.Standard) == "" {
		return false, fmt.Errorf("asset standard required")
	}
	key := asset.key()
	_, err := w.db.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("load asset: %w", err)
	default:
		return false, nil
	}
	added := asset.AddedAt
	if added.IsZero() {
		added = time.Now()
	}
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(added.UTC().UnixNano()))
	if err := w.db.Put(key, value, nil); err != nil {
		return false, fmt.Errorf("record asset: %w", err)
	}
	return true, nil
}

// List returns every watched asset ordered by key.
func (w *Watchlist) List() ([]Asset, error) {
	if w == nil || w.db == nil {
		return nil, fmt.Errorf("watchlist not configured")
	}
	iter := w.db.NewIterator(util.BytesPrefix([]byte(assetKeyPrefix)), nil)
	defer iter.Release()
	var out []Asset
	for iter.Next() {
		asset, ok := parseAssetKey(iter.Key())
		if !ok {
			continue
		}
		if v := iter.Value(); len(v) == 8 {
			asset.AddedAt = time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC()
		}
		out = append(out, asset)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return out, nil
}
