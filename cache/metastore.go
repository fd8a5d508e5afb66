package cache

import (
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

// Metastore is a bolt-backed accelerator over the filesystem cache,
// memoizing SHA-1s (so a repeat download can reject a known
// mirror-manifest mismatch before refetching) and registry ETags (sent
// with the conditional GET of the ETag-gated refresh).
// It is never the source of truth: Cache.Exists always re-checks the
// filesystem.
type Metastore struct {
	db    *bolt.DB
	epoch int64
}

var (
	hashBucket = []byte("hash")
	etagBucket = []byte("etag")
)

// OpenMetastore opens (creating if absent) a bolt database under elmHome
// for hash/ETag memoization.
func OpenMetastore(elmHome string) (*Metastore, error) {
	path := filepath.Join(elmHome, "wrap-meta.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening metastore %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(hashBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(etagBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing metastore buckets")
	}
	return &Metastore{db: db, epoch: time.Now().Unix()}, nil
}

// Close releases the bolt database.
func (m *Metastore) Close() error {
	return errors.Wrap(m.db.Close(), "closing metastore")
}

// epochKey encodes m.epoch as a nuts variable-length ordered key, keeping
// bolt bucket iteration order consistent with numeric order rather than
// lexical byte order.
func (m *Metastore) epochKey() []byte {
	buf := make([]byte, nuts.KeyLen(uint64(m.epoch)))
	nuts.Key(buf).Put(uint64(m.epoch))
	return buf
}

// RememberHash records the SHA-1 computed for an archive URL so a repeat
// download of the same URL within this process's epoch can reject a known
// mirror-manifest mismatch before refetching (see Cache.Download).
func (m *Metastore) RememberHash(url, sha1Hex string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(hashBucket)
		sub, err := b.CreateBucketIfNotExists(m.epochKey())
		if err != nil {
			return err
		}
		return sub.Put([]byte(url), []byte(sha1Hex))
	})
}

// LookupHash returns a previously remembered hash for url within the
// current epoch, if any.
func (m *Metastore) LookupHash(url string) (string, bool) {
	var out string
	var ok bool
	m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(hashBucket)
		sub := b.Bucket(m.epochKey())
		if sub == nil {
			return nil
		}
		v := sub.Get([]byte(url))
		if v != nil {
			out, ok = string(v), true
		}
		return nil
	})
	return out, ok
}

// RememberETag records the ETag last seen for a registry URL.
func (m *Metastore) RememberETag(registryURL, etag string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(etagBucket).Put([]byte(registryURL), []byte(etag))
	})
}

// LookupETag returns the last-seen ETag for registryURL, if any.
func (m *Metastore) LookupETag(registryURL string) (string, bool) {
	var out string
	var ok bool
	m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(etagBucket).Get([]byte(registryURL))
		if v != nil {
			out, ok = string(v), true
		}
		return nil
	})
	return out, ok
}
