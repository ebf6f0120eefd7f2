package db

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/giwty/save-backup-manager/settings"
	"go.uber.org/zap"
)

const (
	DB_INTERNAL_TABLENAME = "internal-metadata"
)

type PersistentDB struct {
	db *bolt.DB
}

func NewPersistentDB(baseFolder string) (*PersistentDB, error) {
	db, err := bolt.Open(filepath.Join(baseFolder, settings.JOURNAL_DB_FILENAME), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	//set DB version
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(DB_INTERNAL_TABLENAME))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		err = b.Put([]byte("app_version"), []byte(settings.SBM_VERSION))
		if err != nil {
			zap.S().Warnf("failed to save app_version - %v", err)
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PersistentDB{db: db}, nil
}

func (pd *PersistentDB) Close() error {
	return pd.db.Close()
}

func (pd *PersistentDB) ClearTable(tableName string) error {
	err := pd.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(tableName))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	return err
}

func (pd *PersistentDB) AddEntry(tableName string, key string, value interface{}) error {
	return pd.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(tableName))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		data, err := encodeEntry(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// AppendEntry stores value under the next sequence number of the table and
// returns it. Keys are zero padded so iteration follows insertion order.
func (pd *PersistentDB) AppendEntry(tableName string, value interface{}) (uint64, error) {
	var seq uint64
	err := pd.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(tableName))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encodeEntry(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(fmt.Sprintf("%020d", seq)), data)
	})
	return seq, err
}

func (pd *PersistentDB) GetEntry(tableName string, key string, value interface{}) error {
	err := pd.db.View(func(tx *bolt.Tx) error {

		b := tx.Bucket([]byte(tableName))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		return decodeEntry(v, value)
	})
	return err
}

// ForEachEntry calls fn for every entry of the table, in key order.
// Returning an error from fn stops the iteration.
func (pd *PersistentDB) ForEachEntry(tableName string, fn func(key string, decode func(value interface{}) error) error) error {
	return pd.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tableName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), func(value interface{}) error {
				return decodeEntry(v, value)
			})
		})
	})
}

func encodeEntry(value interface{}) ([]byte, error) {
	var bytesBuff bytes.Buffer
	encoder := gob.NewEncoder(&bytesBuff)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytesBuff.Bytes(), nil
}

func decodeEntry(data []byte, value interface{}) error {
	d := gob.NewDecoder(bytes.NewReader(data))
	return d.Decode(value)
}
