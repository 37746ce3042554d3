package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// expiryLen is the length of the expiry prefix stored before each value.
const expiryLen = 8

// LevelDB is a persistent Store kept in a local LevelDB directory.  Each value
// is prefixed with its expiry time; expired keys are removed lazily on read.
type LevelDB struct {
	db  *leveldb.DB
	now func() time.Time
}

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: opening %s: %w", path, err)
	}
	return &LevelDB{db: db, now: time.Now}, nil
}

// type check
var _ Store = (*LevelDB)(nil)

// Get implements the Store interface for *LevelDB.
func (l *LevelDB) Get(_ context.Context, key string) (val []byte, ok bool, err error) {
	raw, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leveldb: get %q: %w", key, err)
	}

	if len(raw) < expiryLen {
		return nil, false, fmt.Errorf("leveldb: value for %q is truncated", key)
	}

	expires := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:expiryLen])))
	if !l.now().Before(expires) {
		_ = l.db.Delete([]byte(key), nil)
		return nil, false, nil
	}

	return raw[expiryLen:], true, nil
}

// Set implements the Store interface for *LevelDB.
func (l *LevelDB) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	raw := make([]byte, expiryLen+len(val))
	binary.BigEndian.PutUint64(raw[:expiryLen], uint64(l.now().Add(ttl).UnixNano()))
	copy(raw[expiryLen:], val)

	if err := l.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("leveldb: put %q: %w", key, err)
	}
	return nil
}

// Name implements the Store interface for *LevelDB.
func (l *LevelDB) Name() string { return BackendLevelDB }

// Close implements the Store interface for *LevelDB.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
