package remote

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps documents in process. Documents go through the same bson
// encoding as MongoStore so tags and types behave identically.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string]map[string]bson.M
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls: make(map[string]map[string]bson.M),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, coll string, doc any) (string, error) {
	m, err := prepareCreate(doc, s.now())
	if err != nil {
		return "", err
	}
	id := m["_id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.colls[coll]
	if docs == nil {
		docs = make(map[string]bson.M)
		s.colls[coll] = docs
	}
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("insert into %s: duplicate id %s", coll, id)
	}
	docs[id] = m
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, coll, id string, out any) error {
	s.mu.RLock()
	m, ok := s.colls[coll][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return decode(m, out)
}

func (s *MemoryStore) Update(_ context.Context, coll, id string, fields map[string]any) error {
	set, err := toM(bson.M(fields))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.colls[coll][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range set {
		m[k] = v
	}
	m["updated_at"] = primitive.NewDateTimeFromTime(s.now())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, coll, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.colls[coll][id]; !ok {
		return ErrNotFound
	}
	delete(s.colls[coll], id)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, coll string, q Query, out any) error {
	slice := reflect.ValueOf(out)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return errors.New("find: out must be a pointer to a slice")
	}

	want, err := normalizeFilters(q.Where)
	if err != nil {
		return err
	}

	s.mu.RLock()
	var matched []bson.M
	for _, m := range s.colls[coll] {
		if matches(m, want) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i]["_id"].(string) < matched[j]["_id"].(string)
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := reflect.MakeSlice(slice.Elem().Type(), 0, len(matched))
	elemType := slice.Elem().Type().Elem()
	for _, m := range matched {
		item := reflect.New(elemType)
		if err := decode(m, item.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, item.Elem())
	}
	slice.Elem().Set(result)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Count returns the number of documents in coll.
func (s *MemoryStore) Count(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.colls[coll])
}

func decode(m bson.M, out any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalizeFilters runs filter values through bson so they compare equal to
// stored values of the same logical type.
func normalizeFilters(filters []Filter) (bson.M, error) {
	raw := bson.M{}
	for _, f := range filters {
		raw[f.Field] = f.Value
	}
	return toM(raw)
}

func matches(doc, want bson.M) bool {
	for field, value := range want {
		if !reflect.DeepEqual(doc[field], value) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case primitive.DateTime:
		bv, _ := b.(primitive.DateTime)
		return compareInt(int64(av), int64(bv))
	case int32:
		bv, _ := b.(int32)
		return compareInt(int64(av), int64(bv))
	case int64:
		bv, _ := b.(int64)
		return compareInt(av, bv)
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
