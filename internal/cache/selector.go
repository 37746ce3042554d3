package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/myip/pkg/errors"
)

// Config describes the cache backends that may be selected
type Config struct {
	// Adapter names the backend to use; empty or "auto" tries redis,
	// memcached and memory in that order.
	Adapter string

	RedisAddr     string
	RedisDB       int
	RedisPassword string

	MemcachedServers []string

	LevelDBPath string
	LRUSize     int

	DialTimeout time.Duration
}

// Candidate is one backend that Select may try.
type Candidate struct {
	Name string
	New  func(ctx context.Context) (Store, error)
}

// autoOrder is the fallback order used when no adapter is configured.
var autoOrder = []string{BackendRedis, BackendMemcached, BackendMemory}

var adapterAliases = map[string]string{
	"redis":          BackendRedis,
	"rediscache":     BackendRedis,
	"redisadapter":   BackendRedis,
	"mcache":         BackendMemcached,
	"memcache":       BackendMemcached,
	"memcached":      BackendMemcached,
	"memcachedcache": BackendMemcached,
	"ram":            BackendMemory,
	"mem":            BackendMemory,
	"memory":         BackendMemory,
	"memorycache":    BackendMemory,
	"lru":            BackendLRU,
	"gcache":         BackendLRU,
	"leveldb":        BackendLevelDB,
	"level":          BackendLevelDB,
	"ldb":            BackendLevelDB,
	"disk":           BackendLevelDB,
	"sqlite":         BackendLevelDB,
	"sqlite3":        BackendLevelDB,
	"sqlitedb":       BackendLevelDB,
}

// BackendOrder returns the backend names to try for adapter.
func BackendOrder(adapter string) ([]string, error) {
	a := strings.ToLower(strings.TrimSpace(adapter))
	if a == "" || a == "auto" || a == "automatic" {
		return append([]string(nil), autoOrder...), nil
	}

	name, ok := adapterAliases[a]
	if !ok {
		return nil, fmt.Errorf("unknown cache adapter %q", adapter)
	}
	return []string{name}, nil
}

// Candidates returns the ordered backend constructors for c.
func Candidates(c Config) ([]Candidate, error) {
	order, err := BackendOrder(c.Adapter)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(order))
	for _, name := range order {
		cands = append(cands, c.candidate(name))
	}
	return cands, nil
}

func (c Config) candidate(name string) Candidate {
	switch name {
	case BackendRedis:
		return Candidate{Name: name, New: func(context.Context) (Store, error) {
			return NewRedis(RedisConfig{
				Addr:        c.RedisAddr,
				DB:          c.RedisDB,
				Password:    c.RedisPassword,
				DialTimeout: c.DialTimeout,
			}), nil
		}}
	case BackendMemcached:
		return Candidate{Name: name, New: func(context.Context) (Store, error) {
			return NewMemcached(c.MemcachedServers, c.DialTimeout), nil
		}}
	case BackendLRU:
		return Candidate{Name: name, New: func(context.Context) (Store, error) {
			return NewLRU(c.LRUSize), nil
		}}
	case BackendLevelDB:
		return Candidate{Name: name, New: func(context.Context) (Store, error) {
			return OpenLevelDB(c.LevelDBPath)
		}}
	default:
		return Candidate{Name: BackendMemory, New: func(context.Context) (Store, error) {
			return NewMemory(time.Minute), nil
		}}
	}
}

// Select constructs and probes each candidate in order, returning the first
// one that passes Probe.  Candidates that fail are closed.
func Select(ctx context.Context, cands []Candidate, logger *logrus.Logger) (Store, error) {
	var errs []error
	for _, cand := range cands {
		log := logger.WithField("backend", cand.Name)
		log.Debug("Trying cache backend")

		s, err := cand.New(ctx)
		if err == nil {
			err = Probe(ctx, s)
			if err != nil {
				_ = s.Close()
			}
		}

		if err != nil {
			log.WithError(err).Warn("Cache backend unavailable, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", cand.Name, err))
			continue
		}

		log.Info("Cache backend works, using it for caching")
		return s, nil
	}

	return nil, errors.Wrap(errors.Join(errs...), "no usable cache backend")
}
