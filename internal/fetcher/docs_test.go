package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// hostTransport ruter alle kall til testserveren og tar med det
// opprinnelige vertsnavnet, så én handler kan spille alle tjenestene.
type hostTransport struct {
	target string
}

func (t hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u, err := url.Parse(t.target)
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Original-Host", req.URL.Host)
	clone.URL.Scheme = u.Scheme
	clone.URL.Host = u.Host
	resp, err := http.DefaultTransport.RoundTrip(clone)
	if resp != nil {
		// Svaret skal se ut som om det kom fra den opprinnelige verten.
		resp.Request = req
	}
	return resp, err
}

var _ = Describe("SplitRepoURL", func() {
	It("should split host, owner and repo", func() {
		host, owner, repo, err := fetcher.SplitRepoURL("https://github.com/PyPSA/pypsa-eur")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("github.com"))
		Expect(owner).To(Equal("PyPSA"))
		Expect(repo).To(Equal("pypsa-eur"))
	})

	It("should reject URLs without owner/repo", func() {
		_, _, _, err := fetcher.SplitRepoURL("https://github.com/bare-eier")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RTDSlugCandidates", func() {
	It("should try the repo name first and variants after", func() {
		slugs := fetcher.RTDSlugCandidates("org", "my_tool")
		Expect(slugs).To(Equal([]string{"my_tool", "my-tool", "org-my_tool", "my_tool-documentation"}))
	})
})

var _ = Describe("FindDocs", func() {
	var (
		srv     *httptest.Server
		handler func(originalHost, path string, w http.ResponseWriter)
	)

	BeforeEach(func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(r.Header.Get("X-Original-Host"), r.URL.Path, w)
		}))
		fetcher.HttpClient = &http.Client{Transport: hostTransport{target: srv.URL}}
	})

	AfterEach(func() {
		srv.Close()
		fetcher.HttpClient = http.DefaultClient
	})

	It("should return a readthedocs site that points back at the repo", func() {
		handler = func(host, path string, w http.ResponseWriter) {
			switch {
			case host == "mytool.readthedocs.io":
				w.WriteHeader(http.StatusOK)
			case host == "readthedocs.org" && path == "/api/v3/projects/mytool/":
				fmt.Fprint(w, `{"repository": {"url": "https://github.com/org/mytool.git"}}`)
			case host == "github.com" && path == "/org/mytool.git":
				w.WriteHeader(http.StatusOK)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}

		docs := fetcher.FindDocs(context.Background(), "https://github.com/org/mytool")
		Expect(docs).To(Equal("https://mytool.readthedocs.io"))
	})

	It("should reject a readthedocs slug that belongs to another repo", func() {
		handler = func(host, path string, w http.ResponseWriter) {
			switch {
			case strings.HasSuffix(host, ".readthedocs.io"):
				w.WriteHeader(http.StatusOK)
			case host == "readthedocs.org":
				fmt.Fprint(w, `{"repository": {"url": "https://github.com/helt/annet"}}`)
			case host == "github.com" && path == "/helt/annet":
				w.WriteHeader(http.StatusOK)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}

		docs := fetcher.FindDocs(context.Background(), "https://github.com/org/mytool")
		Expect(docs).To(Equal(""))
	})

	It("should fall back to the pages site", func() {
		handler = func(host, path string, w http.ResponseWriter) {
			if host == "org.github.io" && path == "/mytool" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}

		docs := fetcher.FindDocs(context.Background(), "https://github.com/org/mytool")
		Expect(docs).To(Equal("https://org.github.io/mytool"))
	})

	It("should fall back to the wiki when pages is missing", func() {
		handler = func(host, path string, w http.ResponseWriter) {
			if host == "github.com" && path == "/org/mytool.wiki.git" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}

		docs := fetcher.FindDocs(context.Background(), "https://github.com/org/mytool")
		Expect(docs).To(Equal("https://github.com/org/mytool.wiki.git"))
	})

	It("should return empty when nothing verifies", func() {
		handler = func(host, path string, w http.ResponseWriter) {
			w.WriteHeader(http.StatusNotFound)
		}

		docs := fetcher.FindDocs(context.Background(), "https://github.com/org/mytool")
		Expect(docs).To(Equal(""))
	})
})
