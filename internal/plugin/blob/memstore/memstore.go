package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registryblob.Store, error) {
			return New(), nil
		},
	})
}

type object struct {
	data     []byte
	modified time.Time
}

// Store is an in-process blob store. Contents are lost on restart.
type Store struct {
	mu       sync.RWMutex
	objects  map[string]object
	getFails map[string]error
	putFail  error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects:  map[string]object{},
		getFails: map[string]error{},
	}
}

// Seed stores raw bytes under key with an explicit modification time.
func (s *Store) Seed(key string, data []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), modified: modified}
}

// Bytes returns the raw stored bytes for key.
func (s *Store) Bytes(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Keys returns all stored keys in order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailGet makes GetJSON on key return err.
func (s *Store) FailGet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getFails[key] = err
}

// FailPut makes every PutJSON and Delete return err. A nil err clears it.
func (s *Store) FailPut(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putFail = err
}

func (s *Store) List(_ context.Context, prefix string, limit int) ([]registryblob.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	result := make([]registryblob.ObjectInfo, len(keys))
	for i, k := range keys {
		obj := s.objects[k]
		result[i] = registryblob.ObjectInfo{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified}
	}
	return result, nil
}

func (s *Store) GetJSON(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.getFails[key]; err != nil {
		return nil, false, err
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, false, nil
	}
	if !json.Valid(obj.data) {
		return nil, false, fmt.Errorf("memstore: object %q: %w", key, registryblob.ErrInvalidJSON)
	}
	return append(json.RawMessage(nil), obj.data...), true, nil
}

func (s *Store) PutJSON(_ context.Context, key string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putFail != nil {
		return s.putFail
	}
	s.objects[key] = object{data: append([]byte(nil), doc...), modified: time.Now()}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putFail != nil {
		return s.putFail
	}
	delete(s.objects, key)
	return nil
}

var _ registryblob.Store = (*Store)(nil)
