package resolver_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/filemeta"
	"github.com/tripsnap/api/pkg/imageref"
)

var errBackendDown = errors.New("files API unavailable")

type signCall struct {
	Subject string
	Object  string
	TTL     time.Duration
}

// FakeBackend is an in-memory files API that records every call
type FakeBackend struct {
	mu sync.Mutex

	meta       map[string]*filemeta.FileMetadata
	lookupErrs map[string]error
	panics     map[string]bool
	gates      map[string]chan struct{}
	signed     map[string]string // object -> url
	signErr    error

	lookupCalls map[string]int
	signCalls   []signCall
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		meta:        make(map[string]*filemeta.FileMetadata),
		lookupErrs:  make(map[string]error),
		panics:      make(map[string]bool),
		gates:       make(map[string]chan struct{}),
		signed:      make(map[string]string),
		lookupCalls: make(map[string]int),
	}
}

func (f *FakeBackend) AddFile(id, object, owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[id] = &filemeta.FileMetadata{Object: object, Owner: owner}
	delete(f.lookupErrs, id)
}

func (f *FakeBackend) AddSigned(object, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed[object] = url
}

func (f *FakeBackend) FailLookup(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupErrs[id] = err
}

func (f *FakeBackend) PanicOn(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[id] = true
}

func (f *FakeBackend) FailSign(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signErr = err
}

// Gate makes lookups for id block until the returned func is called
func (f *FakeBackend) Gate(id string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeBackend) LookupCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupCalls[id]
}

func (f *FakeBackend) TotalLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.lookupCalls {
		total += n
	}
	return total
}

func (f *FakeBackend) SignCalls() []signCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]signCall(nil), f.signCalls...)
}

func (f *FakeBackend) LookupFile(ctx context.Context, fileID string) (*filemeta.FileMetadata, error) {
	f.mu.Lock()
	f.lookupCalls[fileID]++
	gate := f.gates[fileID]
	shouldPanic := f.panics[fileID]
	err := f.lookupErrs[fileID]
	meta := f.meta[fileID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if shouldPanic {
		panic("lookup exploded")
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (f *FakeBackend) SignURL(ctx context.Context, subject, object string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls = append(f.signCalls, signCall{Subject: subject, Object: object, TTL: ttl})
	if f.signErr != nil {
		return "", f.signErr
	}
	return f.signed[object], nil
}

func (f *FakeBackend) LegacyURL(fileID string) string {
	f.mu.Lock()
	shouldPanic := f.panics[fileID]
	f.mu.Unlock()
	if shouldPanic {
		panic("legacy url exploded")
	}
	return imageref.LegacyURL("https://legacy.example.com", fileID)
}

// heldCache parks the first miss for key until released, after the miss has been read
type heldCache struct {
	cache.Cache

	key      string
	once     sync.Once
	missed   chan struct{}
	released chan struct{}
}

func newHeldCache(inner cache.Cache, key string) *heldCache {
	return &heldCache{
		Cache:    inner,
		key:      key,
		missed:   make(chan struct{}),
		released: make(chan struct{}),
	}
}

func (h *heldCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := h.Cache.Get(ctx, key, dest)
	if key == h.key && err != nil {
		h.once.Do(func() {
			close(h.missed)
			<-h.released
		})
	}
	return err
}
