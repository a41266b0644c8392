package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "contacts"

// ErrNotFound is returned when no contact has the requested ID
var ErrNotFound = errors.New("contact not found")

// DB defines the interface for the contact store
type DB interface {
	// SaveContact inserts or replaces a contact
	SaveContact(contact *Contact) error

	// GetContact retrieves a contact by ID
	GetContact(id string) (*Contact, error)

	// ListContacts returns all contacts
	ListContacts() ([]*Contact, error)

	// DeleteContact removes a contact
	DeleteContact(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveContact saves a contact to the database
func (b *BoltDB) SaveContact(contact *Contact) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(contact)
		if err != nil {
			return fmt.Errorf("marshaling contact: %w", err)
		}
		return bucket.Put([]byte(contact.ID), data)
	})
}

// GetContact retrieves a contact by ID
func (b *BoltDB) GetContact(id string) (*Contact, error) {
	var contact *Contact
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &contact)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// ListContacts returns all contacts in key order
func (b *BoltDB) ListContacts() ([]*Contact, error) {
	contacts := make([]*Contact, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var contact Contact
			if err := json.Unmarshal(v, &contact); err != nil {
				return fmt.Errorf("unmarshaling contact: %w", err)
			}
			contacts = append(contacts, &contact)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// DeleteContact removes a contact, failing with ErrNotFound if it is missing
func (b *BoltDB) DeleteContact(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
