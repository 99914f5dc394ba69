package fetcher_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LookupRepo", func() {
	BeforeEach(func() {
		fetcher.HttpClient = http.DefaultClient
	})

	It("should decode the repository fields we care about", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("url")).To(Equal("https://github.com/pypsa/pypsa"))
			fmt.Fprint(w, `{
				"full_name": "PyPSA/PyPSA",
				"host": {"name": "GitHub"},
				"stargazers_count": 1200,
				"forks_count": 400,
				"language": "Python",
				"archived": false,
				"commit_stats": {"dds": 0.71, "total_committers": 85}
			}`)
		}))
		defer srv.Close()
		fetcher.RepoLookupAPI = srv.URL + "/lookup?url="

		data, err := fetcher.LookupRepo(context.Background(), "https://github.com/pypsa/pypsa")
		Expect(err).NotTo(HaveOccurred())
		Expect(data.FullName).To(Equal("PyPSA/PyPSA"))
		Expect(data.Stars).To(Equal(int64(1200)))
		Expect(data.CommitStats).NotTo(BeNil())
		Expect(*data.CommitStats.DDS).To(BeNumerically("~", 0.71, 1e-9))
	})

	It("should keep a missing dds as nil, not zero", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"full_name": "x/y", "commit_stats": {"total_committers": 3}}`)
		}))
		defer srv.Close()
		fetcher.RepoLookupAPI = srv.URL + "/lookup?url="

		data, err := fetcher.LookupRepo(context.Background(), "https://github.com/x/y")
		Expect(err).NotTo(HaveOccurred())
		Expect(data.CommitStats.DDS).To(BeNil())
	})

	It("should surface ErrNotFound for unknown repositories", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()
		fetcher.RepoLookupAPI = srv.URL + "/lookup?url="

		_, err := fetcher.LookupRepo(context.Background(), "https://github.com/x/borte")
		Expect(errors.Is(err, fetcher.ErrNotFound)).To(BeTrue())
		Expect(fetcher.RepoExists(context.Background(), "https://github.com/x/borte")).To(BeFalse())
	})
})

var _ = Describe("LookupPackages", func() {
	BeforeEach(func() {
		fetcher.HttpClient = http.DefaultClient
	})

	It("should decode packages and keep null downloads as nil", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[
				{"name": "pypsa", "ecosystem": "pypi", "downloads": 50000, "downloads_period": "last-month", "dependent_repos_count": 12},
				{"name": "PowerModels", "ecosystem": "julia", "downloads": null, "downloads_period": "", "dependent_repos_count": null}
			]`)
		}))
		defer srv.Close()
		fetcher.PackagesLookupAPI = srv.URL + "/lookup?repository_url="

		pkgs, err := fetcher.LookupPackages(context.Background(), "https://github.com/x/y")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkgs).To(HaveLen(2))
		Expect(*pkgs[0].Downloads).To(Equal(int64(50000)))
		Expect(pkgs[1].Downloads).To(BeNil())
		Expect(pkgs[1].DependentReposCount).To(BeNil())
	})
})

var _ = Describe("RegistryDownloads", func() {
	BeforeEach(func() {
		fetcher.HttpClient = http.DefaultClient
	})

	It("should use juliapkgstats for julia packages", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/PowerModels"))
			fmt.Fprint(w, `{"total_requests": 4321}`)
		}))
		defer srv.Close()
		fetcher.JuliaStatsAPI = srv.URL + "/"

		n, err := fetcher.RegistryDownloads(context.Background(), "julia", "PowerModels")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(4321)))
	})

	It("should use pypistats for pypi packages", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/pypsa/recent"))
			fmt.Fprint(w, `{"data": {"last_month": 98765}}`)
		}))
		defer srv.Close()
		fetcher.PyPIStatsAPI = srv.URL + "/"

		n, err := fetcher.RegistryDownloads(context.Background(), "pypi", "pypsa")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(98765)))
	})

	It("should return ErrNoRegistry for ecosystems without a fallback", func() {
		_, err := fetcher.RegistryDownloads(context.Background(), "cargo", "noe")
		Expect(errors.Is(err, fetcher.ErrNoRegistry)).To(BeTrue())
	})
})
