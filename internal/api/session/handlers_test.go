package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tripsnap/api/internal/api/common"
	"github.com/tripsnap/api/internal/api/session"
	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/filemeta"
	"github.com/tripsnap/api/pkg/resolver"
)

// gatedBackend signs every file as https://signed/<id> once its gate opens
type gatedBackend struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func (g *gatedBackend) hold(id string) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[id] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (g *gatedBackend) LookupFile(ctx context.Context, id string) (*filemeta.FileMetadata, error) {
	g.mu.Lock()
	gate := g.gates[id]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &filemeta.FileMetadata{Object: id, Owner: "alice"}, nil
}

func (g *gatedBackend) SignURL(_ context.Context, _, object string, _ time.Duration) (string, error) {
	return "https://signed/" + object, nil
}

func (g *gatedBackend) LegacyURL(id string) string { return "" }

var _ = Describe("Handler", func() {
	var (
		e        *echo.Echo
		backend  *gatedBackend
		store    *cache.MemoryCache
		registry *session.Registry
	)

	do := func(method, target, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) common.SessionImagesResponse {
		var resp common.SessionImagesResponse
		ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	BeforeEach(func() {
		backend = &gatedBackend{gates: map[string]chan struct{}{}}
		store = cache.NewMemoryCache()

		var err error
		registry, err = session.NewRegistry(resolver.New(backend, store, resolver.Options{}), 2)
		Expect(err).NotTo(HaveOccurred())

		e = echo.New()
		e.Validator = common.NewValidator()
		auth := middleware.NewAuthenticator(middleware.StaticKeys([]config.APIKey{
			{Name: "web", Role: "user", APIKey: "key-web"},
			{Name: "kiosk", Role: "user", APIKey: "key-kiosk"},
		}), "")
		session.RegisterRoutes(e.Group("/api/v1/sessions", auth.Middleware()), session.NewHandler(registry))
	})

	AfterEach(func() {
		registry.Close()
		Expect(store.Close()).To(Succeed())
	})

	It("binds a gallery and reports results once resolved", func() {
		rec := do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["a","b"],"viewer":"bob"}`, "key-web")
		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Expect(decode(rec).Generation).To(Equal(uint64(1)))

		Eventually(func() common.SessionImagesResponse {
			return decode(do(http.MethodGet, "/api/v1/sessions/trip-1/images", "", "key-web"))
		}).Should(And(
			HaveField("Busy", BeFalse()),
			HaveField("URLs", Equal([]string{"https://signed/a", "https://signed/b"})),
		))
	})

	It("reports busy while a batch is in flight", func() {
		release := backend.hold("slow")
		defer release()

		rec := do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["slow"]}`, "key-web")
		Expect(decode(rec).Busy).To(BeTrue())

		resp := decode(do(http.MethodGet, "/api/v1/sessions/trip-1/images", "", "key-web"))
		Expect(resp.Busy).To(BeTrue())

		release()
		resp = decode(do(http.MethodGet, "/api/v1/sessions/trip-1/images?wait=5", "", "key-web"))
		Expect(resp.Busy).To(BeFalse())
		Expect(resp.URLs).To(Equal([]string{"https://signed/slow"}))
	})

	It("does not restart a batch for identical input", func() {
		do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["a"]}`, "key-web")
		rec := do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["a"]}`, "key-web")

		Expect(decode(rec).Generation).To(Equal(uint64(1)))
	})

	It("keeps sessions private to the principal", func() {
		do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["a"]}`, "key-web")

		rec := do(http.MethodGet, "/api/v1/sessions/trip-1/images", "", "key-kiosk")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects a non-numeric wait", func() {
		release := backend.hold("slow")
		defer release()
		do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["slow"]}`, "key-web")

		rec := do(http.MethodGet, "/api/v1/sessions/trip-1/images?wait=soon", "", "key-web")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("deletes a session", func() {
		do(http.MethodPut, "/api/v1/sessions/trip-1/images", `{"ids":["a"]}`, "key-web")

		Expect(do(http.MethodDelete, "/api/v1/sessions/trip-1/images", "", "key-web").Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/api/v1/sessions/trip-1/images", "", "key-web").Code).To(Equal(http.StatusNotFound))
		Expect(do(http.MethodDelete, "/api/v1/sessions/trip-1/images", "", "key-web").Code).To(Equal(http.StatusNotFound))
	})

	It("starts a fresh gallery when a removed session is bound again", func() {
		_, changed := registry.Bind("web/trip-1", []string{"a"}, "bob")
		Expect(changed).To(BeTrue())
		old, ok := registry.Get("web/trip-1")
		Expect(ok).To(BeTrue())
		Expect(registry.Remove("web/trip-1")).To(BeTrue())

		state, changed := registry.Bind("web/trip-1", []string{"b"}, "bob")
		Expect(changed).To(BeTrue())
		Expect(state.Generation).To(Equal(uint64(1)))

		current, ok := registry.Get("web/trip-1")
		Expect(ok).To(BeTrue())
		Expect(current).NotTo(BeIdenticalTo(old))
		Expect(old.Update([]string{"c"}, "bob")).To(BeFalse())
		Eventually(func() []string { return current.State().URLs }).Should(Equal([]string{"https://signed/b"}))
	})

	It("binds concurrently with removal without leaking batches", func() {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				registry.Bind("web/trip-2", []string{"a"}, "bob")
			}()
			go func() {
				defer wg.Done()
				registry.Remove("web/trip-2")
			}()
		}
		wg.Wait()

		if b, ok := registry.Get("web/trip-2"); ok {
			Eventually(func() bool { return b.State().Busy }).Should(BeFalse())
			Expect(b.State().URLs).To(Equal([]string{"https://signed/a"}))
		}
	})

	It("evicts the least recently used session", func() {
		for _, id := range []string{"s1", "s2", "s3"} {
			do(http.MethodPut, "/api/v1/sessions/"+id+"/images", `{"ids":["a"]}`, "key-web")
		}

		Expect(registry.Len()).To(Equal(2))
		Expect(do(http.MethodGet, "/api/v1/sessions/s1/images", "", "key-web").Code).To(Equal(http.StatusNotFound))
		Expect(do(http.MethodGet, "/api/v1/sessions/s3/images", "", "key-web").Code).To(Equal(http.StatusOK))
	})
})
