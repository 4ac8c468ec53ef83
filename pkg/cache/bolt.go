package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltCache is a Cache implementation backed by a single BoltDB file,
// storing one JSON-marshaled Entry per key in a flat bucket.
type BoltCache struct {
	db *bolt.DB
}

// NewBoltCache opens (creating if necessary) a cache database under dataDir.
func NewBoltCache(dataDir string) (*BoltCache, error) {
	path := filepath.Join(dataDir, "cache.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating bucket: %w", err)
	}
	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

func (c *BoltCache) Get(key string) (Entry, bool, error) {
	var entry Entry
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("cache: decoding entry %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	if !found || entry.Expired(time.Now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *BoltCache) Set(entry Entry) error {
	if entry.Birthtime.IsZero() {
		entry.Birthtime = time.Now()
	}
	return c.put(entry)
}

func (c *BoltCache) SetMerge(entry Entry) error {
	existing, ok, err := c.Get(entry.Key)
	if err != nil {
		return err
	}
	if ok {
		entry.Tags = unionTags(existing.Tags, entry.Tags)
		if entry.Birthtime.IsZero() {
			entry.Birthtime = existing.Birthtime
		}
	} else if entry.Birthtime.IsZero() {
		entry.Birthtime = time.Now()
	}
	return c.put(entry)
}

func (c *BoltCache) put(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encoding entry %q: %w", entry.Key, err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(entry.Key), data)
	})
}

func (c *BoltCache) Pop(key string) (Entry, bool, error) {
	entry, ok, err := c.Get(key)
	if err != nil || !ok {
		return entry, ok, err
	}
	if err := c.Delete(key); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// PopItem scans every entry for the oldest Birthtime and removes it,
// matching iodict.py's linear-scan popitem(): there is no secondary index
// maintained for this, since cache sizes in practice are bounded by the
// number of distinct job/file fingerprints a single worker has seen.
func (c *BoltCache) PopItem() (Entry, bool, error) {
	var oldest *Entry
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("cache: decoding entry %q: %w", k, err)
			}
			if entry.Expired(time.Now()) {
				return nil
			}
			if oldest == nil || entry.Birthtime.Before(oldest.Birthtime) {
				e := entry
				oldest = &e
			}
			return nil
		})
	})
	if err != nil || oldest == nil {
		return Entry{}, false, err
	}
	if err := c.Delete(oldest.Key); err != nil {
		return Entry{}, false, err
	}
	return *oldest, true, nil
}

func (c *BoltCache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	})
}

func (c *BoltCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
}

func (c *BoltCache) Evict(tag string) (int, error) {
	var removed int
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("cache: decoding entry %q: %w", k, err)
			}
			if entry.HasTag(tag) {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (c *BoltCache) Keys() ([]string, error) {
	items, err := c.Items()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, e := range items {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

func (c *BoltCache) Items() ([]Entry, error) {
	var entries []Entry
	now := time.Now()
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("cache: decoding entry %q: %w", k, err)
			}
			if !entry.Expired(now) {
				entries = append(entries, entry)
			}
			return nil
		})
	})
	return entries, err
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
