package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docvault/docvault/cache"
	"github.com/docvault/docvault/docstore"
	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/ledger"
)

// fakeBackend is an in-memory StorageBackend with injectable failures.
type fakeBackend struct {
	scheme string

	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	puts    int
	gets    int
}

var _ interfaces.StorageBackend = (*fakeBackend)(nil)

func newFakeBackend(scheme string) *fakeBackend {
	return &fakeBackend{scheme: scheme, objects: make(map[string][]byte)}
}

func (b *fakeBackend) Put(ctx context.Context, data []byte, tags map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.putErr != nil {
		return "", b.putErr
	}
	locator := interfaces.ComputeID(data).String()
	b.objects[locator] = append([]byte(nil), data...)
	return locator, nil
}

func (b *fakeBackend) Get(ctx context.Context, locator string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.objects[locator]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *fakeBackend) corrupt(locator string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[locator] = data
}

func (b *fakeBackend) PublicURL(locator string) string {
	return fmt.Sprintf("%s://%s", b.scheme, locator)
}

func (b *fakeBackend) Available(ctx context.Context) bool { return b.putErr == nil }
func (b *fakeBackend) Name() string                       { return "fake-" + b.scheme }
func (b *fakeBackend) Scheme() string                     { return b.scheme }
func (b *fakeBackend) LocationURI() string                { return b.scheme + "://test" }

// flakyStore lets tests fail Save on demand.
type flakyStore struct {
	*docstore.MemoryStore
	saveErr error
}

func (s *flakyStore) Save(ctx context.Context, record *interfaces.DocumentRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, record)
}

type fixture struct {
	service   *Service
	primary   *fakeBackend
	secondary *fakeBackend
	registrar *ledger.MockRegistrar
	store     *flakyStore
	cache     *cache.Cache
}

func newFixture(cfg Config) *fixture {
	primary := newFakeBackend("ipfs")
	secondary := newFakeBackend("s3")
	registrar := new(ledger.MockRegistrar)
	store := &flakyStore{MemoryStore: docstore.NewMemoryStore()}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	contentCache := cache.New(cache.Config{TTL: time.Minute}, log)

	return &fixture{
		service:   NewService([]interfaces.StorageBackend{primary, secondary}, registrar, store, contentCache, cfg, log),
		primary:   primary,
		secondary: secondary,
		registrar: registrar,
		store:     store,
		cache:     contentCache,
	}
}

func testMeta() interfaces.DocumentMeta {
	return interfaces.DocumentMeta{Name: "report.txt", FileType: "text/plain"}
}

func testRef(seed byte) interfaces.RecordRef {
	var ref interfaces.RecordRef
	ref[0] = seed
	ref[31] = seed
	return ref
}

var errBackendDown = errors.New("backend down")
