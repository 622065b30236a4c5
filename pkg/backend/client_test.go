package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tripsnap/api/pkg/backend"
	"github.com/tripsnap/api/pkg/filemeta"
)

type recordedRequest struct {
	Path   string
	Auth   string
	Body   map[string]interface{}
	Method string
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		client   *backend.Client
		mu       sync.Mutex
		recorded []recordedRequest
		handler  http.HandlerFunc
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		recorded = nil
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			var body map[string]interface{}
			_ = json.Unmarshal(raw, &body)
			mu.Lock()
			recorded = append(recorded, recordedRequest{
				Path:   r.URL.Path,
				Auth:   r.Header.Get("Authorization"),
				Body:   body,
				Method: r.Method,
			})
			mu.Unlock()
			handler(w, r)
		}))
		client = backend.NewClient(backend.Options{
			BaseURL: server.URL + "/",
			Token:   "svc-token",
			Timeout: 2 * time.Second,
		})
	})

	AfterEach(func() {
		server.Close()
	})

	requests := func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), recorded...)
	}

	Describe("LookupFile", func() {
		It("posts the file id and extracts metadata", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"files":[{"object":"o1","owner":"alice"}]}`))
			}

			meta, err := client.LookupFile(ctx, "file-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(Equal(&filemeta.FileMetadata{Object: "o1", Owner: "alice"}))
			Expect(requests()).To(HaveLen(1))
			Expect(requests()[0].Method).To(Equal(http.MethodPost))
			Expect(requests()[0].Path).To(Equal("/files/lookup"))
			Expect(requests()[0].Auth).To(Equal("Bearer svc-token"))
			Expect(requests()[0].Body).To(HaveKeyWithValue("file", "file-1"))
		})

		It("treats 404 as no metadata", func() {
			meta, err := client.LookupFile(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(BeNil())
		})

		It("treats an unrecognised body as no metadata", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`null`))
			}
			meta, err := client.LookupFile(ctx, "file-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(BeNil())
		})

		It("returns an error on server failure", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}
			_, err := client.LookupFile(ctx, "file-1")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, backend.ErrUnexpectedStatus)).To(BeTrue())
		})

		It("returns an error when the API is unreachable", func() {
			server.Close()
			_, err := client.LookupFile(ctx, "file-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SignURL", func() {
		It("sends subject, object and expiry in seconds", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"url":"https://signed/o1"}`))
			}

			url, err := client.SignURL(ctx, "alice", "o1", time.Hour)

			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://signed/o1"))
			Expect(requests()).To(HaveLen(1))
			Expect(requests()[0].Path).To(Equal("/files/sign"))
			Expect(requests()[0].Body).To(HaveKeyWithValue("subject", "alice"))
			Expect(requests()[0].Body).To(HaveKeyWithValue("object", "o1"))
			Expect(requests()[0].Body).To(HaveKeyWithValue("expiresInSeconds", BeNumerically("==", 3600)))
		})

		It("returns empty when the API omits the url", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			}
			url, err := client.SignURL(ctx, "alice", "o1", time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(BeEmpty())
		})

		It("fails on a malformed body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"url":`))
			}
			_, err := client.SignURL(ctx, "alice", "o1", time.Hour)
			Expect(err).To(HaveOccurred())
		})

		It("fails on non-2xx", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			}
			_, err := client.SignURL(ctx, "alice", "o1", time.Hour)
			Expect(errors.Is(err, backend.ErrUnexpectedStatus)).To(BeTrue())
		})
	})

	Describe("LegacyURL", func() {
		It("uses the base URL when no legacy base is set", func() {
			Expect(client.LegacyURL("img_42")).To(Equal(server.URL + "/static/img_42"))
		})

		It("prefers the legacy base URL", func() {
			c := backend.NewClient(backend.Options{BaseURL: "https://api.example.com", LegacyBaseURL: "https://old.example.com/"})
			Expect(c.LegacyURL("img_7")).To(Equal("https://old.example.com/static/img_7"))
		})
	})

	It("omits the authorization header without a token", func() {
		c := backend.NewClient(backend.Options{BaseURL: server.URL, Timeout: time.Second})
		_, _ = c.LookupFile(ctx, "file-1")
		Expect(requests()).To(HaveLen(1))
		Expect(requests()[0].Auth).To(BeEmpty())
	})
})
