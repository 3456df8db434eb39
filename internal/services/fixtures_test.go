package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/stretchr/testify/require"
)

var (
	doctorT1     = &tenant.Session{UserID: "u-doc1", Email: "doc1@example.com", Role: tenant.RoleDoctor, TeamID: "t1"}
	secretariaT1 = &tenant.Session{UserID: "u-sec1", Email: "sec1@example.com", Role: tenant.RoleSecretaria, TeamID: "t1"}
	doctorT2     = &tenant.Session{UserID: "u-doc2", Email: "doc2@example.com", Role: tenant.RoleDoctor, TeamID: "t2"}
)

// fakeCamera counts hardware accesses.
type fakeCamera struct {
	mu    sync.Mutex
	frame []byte
	err   error
	calls int
}

func (c *fakeCamera) GetFrame() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.frame, c.err
}

func (c *fakeCamera) CaptureHighRes() ([]byte, error) { return c.GetFrame() }

func (c *fakeCamera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeCache records the ids it holds.
type fakeCache struct {
	mu       sync.Mutex
	patients map[string]remote.Patient
	captures map[string]remote.Capture
	err      error
	rebuilt  map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		patients: map[string]remote.Patient{},
		captures: map[string]remote.Capture{},
		rebuilt:  map[string]int{},
	}
}

func (c *fakeCache) UpsertPatient(p *remote.Patient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.patients[p.ID] = *p
	return nil
}

func (c *fakeCache) UpsertCapture(cp *remote.Capture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.captures[cp.ID] = *cp
	return nil
}

func (c *fakeCache) DeletePatient(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.patients, id)
	for cid, cp := range c.captures {
		if cp.PatientID == id {
			delete(c.captures, cid)
		}
	}
	return c.err
}

func (c *fakeCache) DeleteCapture(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.captures, id)
	return c.err
}

func (c *fakeCache) Rebuild(teamID string, patients []remote.Patient, captures []remote.Capture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuilt[teamID] = len(patients) + len(captures)
	return c.err
}

// flakyStore fails selected operations on top of a MemoryStore.
type flakyStore struct {
	*remote.MemoryStore
	failCreate   map[string]bool
	failDelete   map[string]bool
	beforeUpdate func()
}

var errInjected = errors.New("injected failure")

func (s *flakyStore) Create(ctx context.Context, coll string, doc any) (string, error) {
	if s.failCreate[coll] {
		return "", errInjected
	}
	return s.MemoryStore.Create(ctx, coll, doc)
}

func (s *flakyStore) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	return s.MemoryStore.Update(ctx, coll, id, fields)
}

func (s *flakyStore) Delete(ctx context.Context, coll, id string) error {
	if s.failDelete[id] {
		return errInjected
	}
	return s.MemoryStore.Delete(ctx, coll, id)
}

// flakyBlobs fails uploads or deletes on top of blob.Memory.
type flakyBlobs struct {
	*blob.Memory
	failPut    bool
	failDelete bool
}

func (b *flakyBlobs) Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	if b.failPut {
		return "", errInjected
	}
	return b.Memory.Put(ctx, path, r, contentType)
}

func (b *flakyBlobs) Delete(ctx context.Context, path string) error {
	if b.failDelete {
		return errInjected
	}
	return b.Memory.Delete(ctx, path)
}

type env struct {
	store    *flakyStore
	blobs    *flakyBlobs
	cache    *fakeCache
	camera   *fakeCamera
	cfg      *config.Config
	patients *PatientService
	captures *CaptureService
	sync     *SyncService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := &config.Config{
		CaptureTempDir:     t.TempDir(),
		MaxAnnotationBytes: 1 << 20,
		ImageFetchTimeout:  5 * time.Second,
		SessionExpiry:      time.Hour,
		JWTSecret:          "test-secret",
	}
	e := &env{
		store:  &flakyStore{MemoryStore: remote.NewMemoryStore(), failCreate: map[string]bool{}, failDelete: map[string]bool{}},
		blobs:  &flakyBlobs{Memory: blob.NewMemory(blob.NewLinks("http://cam.local", []byte("test-key")))},
		cache:  newFakeCache(),
		camera: &fakeCamera{frame: []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'g'}},
		cfg:    cfg,
	}
	e.patients = NewPatientService(e.store, e.blobs, e.cache)
	e.captures = NewCaptureService(e.store, e.blobs, e.cache, e.camera, cfg)
	e.sync = NewSyncService(e.store, e.blobs, e.cache)

	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	e.captures.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return e
}

func (e *env) registerPatient(t *testing.T, actor *tenant.Session, cedula string) *remote.Patient {
	t.Helper()
	p, err := e.patients.Register(context.Background(), actor, &dto.PatientRequest{
		Cedula: cedula, Nombre: "Ana", Apellido: "Gomez", Edad: 30,
	})
	require.NoError(t, err)
	return p
}
