/*
Package state persists processed session output per participant. The
engine itself never touches storage; the web daemon and CLI own a
SessionStore and append what the engine emits.
*/
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/drivelab/drived/params"
	"github.com/drivelab/drived/types/driving"
	"github.com/drivelab/drived/types/sample"
)

// SessionStore is the bbolt-backed store of one participant's session.
// Opening a writable store takes a file lock, which is the intended
// one-writer-per-participant discipline.
type SessionStore struct {
	ParticipantID string
	DB            *bbolt.DB
}

// Open opens (creating if needed) the participant's session store under
// dataDir.
func Open(dataDir, participantID string, readOnly bool) (*SessionStore, error) {
	dir := params.ParticipantDataDir(dataDir, participantID)
	if !readOnly {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, params.SessionDBName), 0600,
		&bbolt.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	s := &SessionStore{
		ParticipantID: participantID,
		DB:            db,
	}
	if !readOnly {
		if err := s.ensureBuckets(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SessionStore) ensureBuckets() error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{params.RecordsBucket, params.EventsBucket, params.MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SessionStore) Close() error {
	return s.DB.Close()
}

// AppendRecord appends one enriched sample to the records bucket.
func (s *SessionStore) AppendRecord(es *sample.EnrichedSample) error {
	return s.append(params.RecordsBucket, es)
}

// AppendEvent appends one driving event to the events bucket.
func (s *SessionStore) AppendEvent(ev *driving.Event) error {
	return s.append(params.EventsBucket, ev)
}

// append stores value as JSON under the bucket's next sequence key.
// Sequence keys keep insertion order, which is the sample feed order.
func (s *SessionStore) append(bucket []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("missing bucket %q", bucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// WriteCounters persists the session's final counters into the meta bucket.
func (s *SessionStore) WriteCounters(c driving.Counters) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.MetaBucket)
		if b == nil {
			return fmt.Errorf("missing bucket %q", params.MetaBucket)
		}
		return b.Put([]byte("counters"), data)
	})
}

// ReadCounters returns the persisted counters, or fresh zero counters if
// none were written.
func (s *SessionStore) ReadCounters() (driving.Counters, error) {
	c := driving.NewCounters()
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.MetaBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte("counters"))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &c)
	})
	return c, err
}

// ReadRecords returns all stored enriched samples in insertion order.
func (s *SessionStore) ReadRecords() ([]*sample.EnrichedSample, error) {
	var out []*sample.EnrichedSample
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.RecordsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			es := &sample.EnrichedSample{}
			if err := json.Unmarshal(v, es); err != nil {
				return err
			}
			out = append(out, es)
			return nil
		})
	})
	return out, err
}

// ReadEvents returns all stored events in insertion order.
func (s *SessionStore) ReadEvents() ([]*driving.Event, error) {
	var out []*driving.Event
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.EventsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			ev := &driving.Event{}
			if err := json.Unmarshal(v, ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}

// itob returns an 8-byte big endian representation of v, so bucket keys
// sort in insertion order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
