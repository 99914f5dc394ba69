package refresh_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonmartinstorm/esmsnusern/internal/mocks"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
	"github.com/jonmartinstorm/esmsnusern/internal/refresh"
	"github.com/stretchr/testify/mock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRefresh(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Refresh Suite")
}

var _ = Describe("Fingerprint", func() {
	It("should be stable for identical input", func() {
		merged := []models.ToolRecord{{ID: "a", Name: "A", URL: "https://github.com/x/a"}}
		Expect(refresh.Fingerprint(nil, merged)).To(Equal(refresh.Fingerprint(nil, merged)))
	})

	It("should change when a record changes", func() {
		a := []models.ToolRecord{{ID: "a", URL: "https://github.com/x/a"}}
		b := []models.ToolRecord{{ID: "a", URL: "https://github.com/x/b"}}
		Expect(refresh.Fingerprint(nil, a)).NotTo(Equal(refresh.Fingerprint(nil, b)))
	})

	It("should change when an input file changes or appears", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "exclusions.csv")

		before := refresh.Fingerprint([]string{path}, nil)

		Expect(os.WriteFile(path, []byte("id_or_url,reason\n"), 0o644)).To(Succeed())
		after := refresh.Fingerprint([]string{path}, nil)

		Expect(before).NotTo(Equal(after))

		Expect(os.WriteFile(path, []byte("id_or_url,reason\nx,y\n"), 0o644)).To(Succeed())
		Expect(refresh.Fingerprint([]string{path}, nil)).NotTo(Equal(after))
	})
})

var _ = Describe("Controller", func() {
	var (
		ctx   context.Context
		store *mocks.MockStore
		ctrl  *refresh.Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &mocks.MockStore{}
		ctrl = &refresh.Controller{Store: store}
	})

	It("should run when there is no previous state", func() {
		store.On("GetRefreshState", ctx).Return(nil, nil)

		run, err := ctrl.ShouldRun(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeTrue())
	})

	It("should run when the fingerprint changed", func() {
		store.On("GetRefreshState", ctx).
			Return(&models.RefreshState{Fingerprint: "gammel"}, nil)

		run, err := ctrl.ShouldRun(ctx, "ny")
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeTrue())
	})

	It("should run when the stats table is empty even if nothing changed", func() {
		store.On("GetRefreshState", ctx).
			Return(&models.RefreshState{Fingerprint: "abc"}, nil)
		store.On("StatsCount", ctx).Return(0, nil)

		run, err := ctrl.ShouldRun(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeTrue())
	})

	It("should skip when nothing changed and output exists", func() {
		store.On("GetRefreshState", ctx).
			Return(&models.RefreshState{Fingerprint: "abc"}, nil)
		store.On("StatsCount", ctx).Return(42, nil)

		run, err := ctrl.ShouldRun(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(run).To(BeFalse())
	})

	It("should propagate store errors", func() {
		store.On("GetRefreshState", ctx).Return(nil, errors.New("db borte"))

		_, err := ctrl.ShouldRun(ctx, "abc")
		Expect(err).To(HaveOccurred())
	})

	It("should persist the fingerprint on success", func() {
		store.On("GetRefreshState", ctx).Return(nil, nil)
		store.On("SetRefreshState", ctx, mock.MatchedBy(func(state models.RefreshState) bool {
			return state.Fingerprint == "abc" && !state.CompletedAt.IsZero() && state.Version == 1
		})).Return(nil)

		Expect(ctrl.MarkSuccess(ctx, "abc")).To(Succeed())
		store.AssertExpectations(GinkgoT())
	})

	It("should bump the version on every successful run", func() {
		store.On("GetRefreshState", ctx).
			Return(&models.RefreshState{Fingerprint: "gammel", Version: 4}, nil)
		store.On("SetRefreshState", ctx, mock.MatchedBy(func(state models.RefreshState) bool {
			return state.Version == 5
		})).Return(nil)

		Expect(ctrl.MarkSuccess(ctx, "abc")).To(Succeed())
		store.AssertExpectations(GinkgoT())
	})
})
