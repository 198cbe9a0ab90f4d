package publish

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

var (
	reposBucket   = []byte("repos")
	splitsBucket  = []byte("splits")
	commitsBucket = []byte("commits")
	metaKey       = []byte("meta")
)

// ErrRepoNotFound is returned when publishing into a repository that was
// never created.
var ErrRepoNotFound = errors.New("repository does not exist")

type repoMeta struct {
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

// Commit records one split publication in a bolt repository.
type Commit struct {
	ID        string    `json:"id"`
	Split     string    `json:"split"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Bolt is a dataset repository kept in a local bbolt file. Every repository
// is a bucket holding its metadata, one bucket per split and a commit log.
type Bolt struct {
	db *bolt.DB
}

var _ Publisher = (*Bolt)(nil)
var _ Previewer = (*Bolt)(nil)

// OpenBolt opens or creates the repository file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory failed: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(reposBucket)
		return createErr
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (store *Bolt) Close() error {
	if store == nil || store.db == nil {
		return nil
	}
	return store.db.Close()
}

// EnsureRepo creates the repository bucket. An existing repository keeps its
// metadata.
func (store *Bolt) EnsureRepo(ctx context.Context, target Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		repo, err := tx.Bucket(reposBucket).CreateBucketIfNotExists([]byte(target.ID()))
		if err != nil {
			return fmt.Errorf("create repository %s: %w", target.ID(), err)
		}
		if repo.Get(metaKey) != nil {
			return nil
		}
		payload, err := json.Marshal(repoMeta{Private: target.Private, CreatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return repo.Put(metaKey, payload)
	})
}

// PublishSplit replaces the split's records and appends a commit entry.
func (store *Bolt) PublishSplit(ctx context.Context, target Target, split string, records []dataset.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		repo := tx.Bucket(reposBucket).Bucket([]byte(target.ID()))
		if repo == nil {
			return fmt.Errorf("publish split %s: %w: %s", split, ErrRepoNotFound, target.ID())
		}
		splits, err := repo.CreateBucketIfNotExists(splitsBucket)
		if err != nil {
			return err
		}
		if splits.Bucket([]byte(split)) != nil {
			if err := splits.DeleteBucket([]byte(split)); err != nil {
				return fmt.Errorf("clear split %s: %w", split, err)
			}
		}
		bucket, err := splits.CreateBucket([]byte(split))
		if err != nil {
			return fmt.Errorf("create split %s: %w", split, err)
		}
		for position, record := range records {
			payload, err := record.MarshalJSON()
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", record.Index, err)
			}
			if err := bucket.Put(positionKey(position), payload); err != nil {
				return err
			}
		}

		commits, err := repo.CreateBucketIfNotExists(commitsBucket)
		if err != nil {
			return err
		}
		sequence, err := commits.NextSequence()
		if err != nil {
			return err
		}
		commit, err := json.Marshal(Commit{
			ID:        uuid.NewString(),
			Split:     split,
			Records:   len(records),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return commits.Put(positionKey(int(sequence)), commit)
	})
}

// ReadSplit returns every record of a published split in publication order.
func (store *Bolt) ReadSplit(target Target, split string) ([]dataset.Record, error) {
	records := make([]dataset.Record, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		bucket := splitBucket(tx, target, split)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			record := dataset.Record{}
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read split %s: %w", split, err)
	}
	return records, nil
}

// FetchFirst returns the first record of a published split.
func (store *Bolt) FetchFirst(ctx context.Context, target Target, split string) (dataset.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Record{}, false, err
	}
	var record dataset.Record
	found := false
	err := store.db.View(func(tx *bolt.Tx) error {
		bucket := splitBucket(tx, target, split)
		if bucket == nil {
			return nil
		}
		_, value := bucket.Cursor().First()
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &record)
	})
	if err != nil {
		return dataset.Record{}, false, fmt.Errorf("fetch split %s: %w", split, err)
	}
	return record, found, nil
}

// Commits lists the commit log of a repository, oldest first.
func (store *Bolt) Commits(target Target) ([]Commit, error) {
	commits := make([]Commit, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		repo := tx.Bucket(reposBucket).Bucket([]byte(target.ID()))
		if repo == nil {
			return ErrRepoNotFound
		}
		bucket := repo.Bucket(commitsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			commit := Commit{}
			if err := json.Unmarshal(value, &commit); err != nil {
				return err
			}
			commits = append(commits, commit)
			return nil
		})
	})
	return commits, err
}

func splitBucket(tx *bolt.Tx, target Target, split string) *bolt.Bucket {
	repo := tx.Bucket(reposBucket).Bucket([]byte(target.ID()))
	if repo == nil {
		return nil
	}
	splits := repo.Bucket(splitsBucket)
	if splits == nil {
		return nil
	}
	return splits.Bucket([]byte(split))
}

func positionKey(position int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(position))
	return key
}
