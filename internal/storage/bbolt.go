package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/items"
	"github.com/illarion/notelock/internal/notify"
)

const schemaVersion = "1"

// Bucket names
var (
	ConfigBucket = []byte("config") // Schema version, timestamps
	NotesBucket  = []byte(items.ContentTypeNote)
	TagsBucket   = []byte(items.ContentTypeTag)
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
)

var (
	ErrNotFound           = errors.New("item not found")
	ErrUnknownContentType = errors.New("unknown content type")
)

// Store is the bbolt-backed data layer. Every committed change is streamed
// to the handlers registered for the item's content type.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger

	mu      sync.Mutex
	streams map[items.ContentType]*notify.Registry[items.StreamHandler]
}

func bucketFor(kind items.ContentType) ([]byte, error) {
	switch kind {
	case items.ContentTypeNote:
		return NotesBucket, nil
	case items.ContentTypeTag:
		return TagsBucket, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, kind)
	}
}

// Open opens or creates a notes database
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger.Named("storage"),
		streams: make(map[items.ContentType]*notify.Registry[items.StreamHandler]),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// Close closes the database. Registered streams stay registered but will not
// fire again.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the bucket structure if missing
func (s *Store) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, NotesBucket, TagsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte(schemaVersion)); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

func touchModified(tx *bolt.Tx) error {
	modified, _ := time.Now().MarshalBinary()
	return tx.Bucket(ConfigBucket).Put(ConfigModified, modified)
}

// GetModified retrieves the last modified timestamp
func (s *Store) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

func decodeItem(data []byte) (*items.Item, error) {
	var item items.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return &item, nil
}

func putItem(tx *bolt.Tx, item *items.Item) error {
	name, err := bucketFor(item.ContentType)
	if err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.UUID, err)
	}
	return tx.Bucket(name).Put([]byte(item.UUID), data)
}

func getItem(tx *bolt.Tx, uuid string) (*items.Item, error) {
	for _, name := range [][]byte{NotesBucket, TagsBucket} {
		if data := tx.Bucket(name).Get([]byte(uuid)); data != nil {
			// Decoding copies, the slice is only valid during the transaction
			return decodeItem(data)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
}

// FindItem looks up an item of any content type by identity
func (s *Store) FindItem(uuid string) (*items.Item, error) {
	var item *items.Item
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		item, err = getItem(tx, uuid)
		return err
	})
	return item, err
}

// Items returns all items of a content type, most recently updated first
func (s *Store) Items(kind items.ContentType) ([]*items.Item, error) {
	name, err := bucketFor(kind)
	if err != nil {
		return nil, err
	}

	var result []*items.Item
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(name).ForEach(func(k, v []byte) error {
			item, err := decodeItem(v)
			if err != nil {
				return err
			}
			result = append(result, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// CreateTemplateItem builds an unpersisted item. Use InsertItem to save it.
func (s *Store) CreateTemplateItem(kind items.ContentType, content items.Content) (*items.Item, error) {
	if _, err := bucketFor(kind); err != nil {
		return nil, err
	}
	return items.New(kind, content), nil
}

// InsertItem persists item and streams it as a local change
func (s *Store) InsertItem(ctx context.Context, item *items.Item) (*items.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved := item.Clone()
	saved.UpdatedAt = time.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putItem(tx, saved); err != nil {
			return err
		}
		return touchModified(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	s.emit([]*items.Item{saved}, items.SourceLocalChanged)
	return saved.Clone(), nil
}

// ChangeItem loads the item, applies mutate to a working copy and saves the
// result in a single transaction, then streams it as a local change.
func (s *Store) ChangeItem(ctx context.Context, uuid string, mutate func(*items.Mutator)) (*items.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var changed *items.Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := getItem(tx, uuid)
		if err != nil {
			return err
		}
		m := items.NewMutator(current)
		mutate(m)
		changed = m.Result()
		if err := putItem(tx, changed); err != nil {
			return err
		}
		return touchModified(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change item: %w", err)
	}

	s.emit([]*items.Item{changed}, items.SourceLocalChanged)
	return changed.Clone(), nil
}

// ApplyRemote saves items received from a sync source and streams them with
// SourceRemoteRetrieved.
func (s *Store) ApplyRemote(ctx context.Context, batch ...*items.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	saved := make([]*items.Item, len(batch))
	for i, item := range batch {
		saved[i] = item.Clone()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, item := range saved {
			if err := putItem(tx, item); err != nil {
				return err
			}
		}
		return touchModified(tx)
	})
	if err != nil {
		return fmt.Errorf("failed to apply remote items: %w", err)
	}

	s.emit(saved, items.SourceRemoteRetrieved)
	return nil
}

func (s *Store) registry(kind items.ContentType) *notify.Registry[items.StreamHandler] {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.streams[kind]
	if !ok {
		r = notify.New[items.StreamHandler]("stream:"+string(kind), s.logger)
		s.streams[kind] = r
	}
	return r
}

// StreamItems registers handler for every change to items of kind. The
// handler is first called with the current items (SourceLocalRetrieved).
// The returned cancel func is idempotent.
func (s *Store) StreamItems(kind items.ContentType, handler items.StreamHandler) (cancel func()) {
	r := s.registry(kind)
	token := r.Add(handler)

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			r.Remove(token)
		})
	}

	existing, err := s.Items(kind)
	if err != nil {
		s.logger.Warn("initial stream load failed", zap.String("kind", string(kind)), zap.Error(err))
		return cancel
	}
	if len(existing) > 0 {
		deliver(r, token, existing, items.SourceLocalRetrieved)
	}
	return cancel
}

// deliver calls a single registration, isolating panics like Notify does
func deliver(r *notify.Registry[items.StreamHandler], token notify.Token, batch []*items.Item, source items.PayloadSource) {
	r.NotifyOne(token, func(h items.StreamHandler) {
		h(batch, source)
	})
}

// emit fans a committed batch out per content type. Each handler receives
// its own copies.
func (s *Store) emit(batch []*items.Item, source items.PayloadSource) {
	byKind := make(map[items.ContentType][]*items.Item)
	var order []items.ContentType
	for _, item := range batch {
		if _, seen := byKind[item.ContentType]; !seen {
			order = append(order, item.ContentType)
		}
		byKind[item.ContentType] = append(byKind[item.ContentType], item)
	}

	for _, kind := range order {
		s.logger.Debug("streaming items",
			zap.String("kind", string(kind)),
			zap.Int("count", len(byKind[kind])),
			zap.Stringer("source", source))
		kindBatch := byKind[kind]
		s.registry(kind).Notify(func(h items.StreamHandler) {
			copies := make([]*items.Item, len(kindBatch))
			for i, item := range kindBatch {
				copies[i] = item.Clone()
			}
			h(copies, source)
		})
	}
}

// Compact creates a compacted copy of the database, removing unused space.
func (s *Store) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = bolt.Compact(dst, s.db, 0)
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
