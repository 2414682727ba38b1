package eventchain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltArchiver files removed events into a bbolt database, one bucket per
// event type. Keys sort by timestamp, then by arrival
type BoltArchiver struct {
	db *bolt.DB
}

const (
	BoltOpenTimeout = time.Second

	boltKeySize = 16
	signFlip    = uint64(1) << 63
)

// OpenBoltArchiver opens, or creates, the database at path
func OpenBoltArchiver(path string) (*BoltArchiver, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: BoltOpenTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &BoltArchiver{db: db}, nil
}

func (a *BoltArchiver) Archive(
	ctx context.Context, typ EventType, evs []Event,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(evs) == 0 {
		return nil
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(typ))
		if err != nil {
			return err
		}
		for _, ev := range evs {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := b.Put(boltKey(ev.Timestamp, seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Events returns the archived events of typ in timestamp order
func (a *BoltArchiver) Events(typ EventType) ([]Event, error) {
	var res []Event
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(typ))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			res = append(res, ev)
			return nil
		})
	})
	return res, err
}

// Types returns every event type with an archive bucket
func (a *BoltArchiver) Types() ([]EventType, error) {
	var res []EventType
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			res = append(res, EventType(name))
			return nil
		})
	})
	return res, err
}

func (a *BoltArchiver) Close() error {
	return a.db.Close()
}

// boltKey flips the sign bit so negative timestamps sort first
func boltKey(ts int64, seq uint64) []byte {
	key := make([]byte, boltKeySize)
	binary.BigEndian.PutUint64(key, uint64(ts)^signFlip)
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}
