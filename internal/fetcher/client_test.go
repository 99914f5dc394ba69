package fetcher_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFetcher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fetcher Suite")
}

var _ = Describe("DoJSON", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		fetcher.HttpClient = http.DefaultClient
	})

	It("should decode a JSON response", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"name":"pypsa"}`)
		}))
		defer srv.Close()

		var out struct {
			Name string `json:"name"`
		}
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Name).To(Equal("pypsa"))
	})

	It("should send the bearer token when one is given", func() {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "hemmelig", nil, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotAuth).To(Equal("Bearer hemmelig"))
	})

	It("should retry on 500 and succeed on the next attempt", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("should map 404 to ErrNotFound without retrying", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(errors.Is(err, fetcher.ErrNotFound)).To(BeTrue())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("should map 403 to ErrAccessDenied", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(errors.Is(err, fetcher.ErrAccessDenied)).To(BeTrue())
	})

	It("should not retry other 4xx responses", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(err).To(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("should wait for the rate limit reset and then retry", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Unix(), 10))
				fmt.Fprint(w, `{}`)
				return
			}
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer srv.Close()

		var out map[string]any
		err := fetcher.DoJSON(ctx, "GET", srv.URL, "", nil, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})
})

var _ = Describe("GetRaw", func() {
	BeforeEach(func() {
		fetcher.HttpClient = http.DefaultClient
	})

	It("should return the raw bytes", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "landscape:\n  - name: x\n")
		}))
		defer srv.Close()

		raw, err := fetcher.GetRaw(context.Background(), srv.URL, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring("landscape:"))
	})

	It("should fail on a permanent 4xx", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := fetcher.GetRaw(context.Background(), srv.URL, "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("CheckURL og ResolveURL", func() {
	BeforeEach(func() {
		fetcher.HttpClient = http.DefaultClient
	})

	It("should report existing and missing URLs", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/finnes" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		Expect(fetcher.CheckURL(context.Background(), srv.URL+"/finnes")).To(BeTrue())
		Expect(fetcher.CheckURL(context.Background(), srv.URL+"/borte")).To(BeFalse())
	})

	It("should follow redirects to the final URL", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/gammel" {
				http.Redirect(w, r, "/ny", http.StatusMovedPermanently)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		resolved := fetcher.ResolveURL(context.Background(), srv.URL+"/gammel")
		Expect(resolved).To(Equal(srv.URL + "/ny"))
	})
})
