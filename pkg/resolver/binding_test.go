package resolver_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/resolver"
)

var _ = Describe("Binding", func() {
	var (
		fake    *FakeBackend
		store   *cache.MemoryCache
		binding *resolver.Binding
	)

	BeforeEach(func() {
		fake = NewFakeBackend()
		store = cache.NewMemoryCache()
		binding = resolver.NewBinding(resolver.New(fake, store, resolver.Options{}))

		fake.AddFile("file-1", "o1", "alice")
		fake.AddSigned("o1", "https://signed/o1")
		fake.AddFile("file-2", "o2", "alice")
		fake.AddSigned("o2", "https://signed/o2")
	})

	AfterEach(func() {
		binding.Close()
		Expect(store.Close()).To(Succeed())
	})

	It("starts empty and idle", func() {
		state := binding.State()
		Expect(state.URLs).To(BeEmpty())
		Expect(state.Busy).To(BeFalse())
		Expect(state.Generation).To(BeZero())
	})

	It("is busy while a batch is in flight", func() {
		release := fake.Gate("file-1")
		defer release()

		Expect(binding.Update([]string{"file-1"}, "bob")).To(BeTrue())
		Expect(binding.State().Busy).To(BeTrue())

		release()
		Eventually(func() bool { return binding.State().Busy }).Should(BeFalse())
		Expect(binding.State().URLs).To(Equal([]string{"https://signed/o1"}))
	})

	It("ignores an update with unchanged inputs", func() {
		Expect(binding.Update([]string{"file-1"}, "bob")).To(BeTrue())
		_, err := binding.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(binding.Update([]string{"file-1"}, "bob")).To(BeFalse())
		Expect(binding.State().Generation).To(Equal(uint64(1)))
		Expect(fake.LookupCalls("file-1")).To(Equal(1))
	})

	It("restarts when only the viewer changes", func() {
		Expect(binding.Update([]string{"file-1"}, "bob")).To(BeTrue())
		Expect(binding.Update([]string{"file-1"}, "carol")).To(BeTrue())
		Expect(binding.State().Generation).To(Equal(uint64(2)))
	})

	It("discards results from a superseded batch", func() {
		release := fake.Gate("file-1")
		defer release()

		binding.Update([]string{"file-1"}, "bob")
		Eventually(func() int { return fake.LookupCalls("file-1") }).Should(Equal(1))

		binding.Update([]string{"file-2"}, "bob")
		state, err := binding.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(state.URLs).To(Equal([]string{"https://signed/o2"}))
		Expect(state.Generation).To(Equal(uint64(2)))

		release()
		Consistently(func() []string { return binding.State().URLs }, 100*time.Millisecond).
			Should(Equal([]string{"https://signed/o2"}))
	})

	It("reports the context error when Wait gives up", func() {
		release := fake.Gate("file-1")
		defer release()

		binding.Update([]string{"file-1"}, "bob")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		state, err := binding.Wait(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(state.Busy).To(BeTrue())
	})

	It("returns a copy of the URLs", func() {
		binding.Update([]string{"file-1"}, "bob")
		state, err := binding.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())

		state.URLs[0] = "mutated"
		Expect(binding.State().URLs).To(Equal([]string{"https://signed/o1"}))
	})

	It("ignores updates once closed", func() {
		Expect(binding.Update([]string{"file-1"}, "bob")).To(BeTrue())
		_, err := binding.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())

		binding.Close()
		Expect(binding.Update([]string{"file-2"}, "bob")).To(BeFalse())

		state := binding.State()
		Expect(state.Busy).To(BeFalse())
		Expect(state.Generation).To(Equal(uint64(1)))
		Expect(state.URLs).To(Equal([]string{"https://signed/o1"}))
		Expect(fake.LookupCalls("file-2")).To(BeZero())
	})

	It("resolves an empty list to an empty result", func() {
		Expect(binding.Update([]string{}, "bob")).To(BeTrue())
		state, err := binding.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(state.URLs).To(BeEmpty())
		Expect(state.Busy).To(BeFalse())
	})
})
