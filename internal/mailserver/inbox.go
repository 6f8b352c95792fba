// Package mailserver is a development SMTP sink: it accepts every mail,
// prints it and keeps it in a bolt file for inspection over HTTP.
package mailserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var mailsBucket = []byte("mails")

type Mail struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	To       []string  `json:"to"`
	Subject  string    `json:"subject,omitempty"`
	Received time.Time `json:"received"`
	Size     int       `json:"size"`
	Body     string    `json:"body"`
}

// Inbox stores received mails keyed by a time-ordered id, so a cursor
// walk yields them in arrival order.
type Inbox struct {
	db *bolt.DB
}

func OpenInbox(path string) (*Inbox, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open inbox %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mailsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create mails bucket: %w", err)
	}
	return &Inbox{db: db}, nil
}

func (i *Inbox) Close() error {
	return i.db.Close()
}

// Ping reports whether the underlying file is still usable.
func (i *Inbox) Ping() error {
	return i.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(mailsBucket) == nil {
			return fmt.Errorf("bucket %s missing", mailsBucket)
		}
		return nil
	})
}

// Store assigns the id and persists m.
func (i *Inbox) Store(m *Mail) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(mailsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		m.ID = fmt.Sprintf("%019d-%06d", m.Received.UnixNano(), seq%1_000_000)

		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put([]byte(m.ID), data)
	})
}

// List returns up to limit mails, newest first. limit <= 0 means all.
func (i *Inbox) List(limit int) ([]Mail, error) {
	mails := []Mail{}
	err := i.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(mailsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(mails) >= limit {
				break
			}
			var m Mail
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("decode mail %s: %w", k, err)
			}
			mails = append(mails, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mails, nil
}

// Get returns nil, nil when id is unknown.
func (i *Inbox) Get(id string) (*Mail, error) {
	var m *Mail
	err := i.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(mailsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		m = &Mail{}
		return json.Unmarshal(v, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Clear removes every mail and reports how many were dropped.
func (i *Inbox) Clear() (int, error) {
	var n int
	err := i.db.Update(func(tx *bolt.Tx) error {
		n = tx.Bucket(mailsBucket).Stats().KeyN
		if err := tx.DeleteBucket(mailsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(mailsBucket)
		return err
	})
	return n, err
}
