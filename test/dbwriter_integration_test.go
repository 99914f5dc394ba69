package test

import (
	"context"
	"testing"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/dbwriter"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
	"github.com/jonmartinstorm/esmsnusern/test/testutils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDBWriterIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DBWriter Integrasjon")
}

var _ = Describe("PostgresWriter", Ordered, func() {
	var (
		testDB *testutils.TestDB
		writer *dbwriter.PostgresWriter
		ctx    context.Context
	)

	BeforeAll(func() {
		ctx = context.Background()
		testDB = testutils.StartTestPostgresContainer()
		writer = &dbwriter.PostgresWriter{DB: testDB.DB}
		Expect(writer.EnsureSchema(ctx)).To(Succeed())
	})

	AfterAll(func() {
		testDB.Close()
	})

	It("skriver stats-tabellen og skiller null fra ingen data", func() {
		downloads := int64(1500)
		stats := []models.ToolStats{
			{
				ToolRecord: models.ToolRecord{
					ID: "pypsa", Name: "PyPSA", URL: "https://github.com/pypsa/pypsa",
					Sources: []string{"lf-energy-landscape", "manual"},
				},
				Stars:     1200,
				Downloads: &downloads,
				DDS:       models.DDS{Score: 0.7, HasData: true},
				DocsURL:   "https://pypsa.readthedocs.io",
			},
			{
				ToolRecord: models.ToolRecord{
					ID: "sparsetool", Name: "SparseTool", URL: "https://github.com/org/sparsetool",
				},
				// Downloads nil, DDS uten data, ingen docs
			},
		}

		Expect(writer.ReplaceStats(ctx, stats, time.Now().UTC())).To(Succeed())

		count, err := writer.StatsCount(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))

		var dl *int64
		var hasData bool
		var docs *string
		row := testDB.DB.QueryRow(`SELECT downloads_last_month, dds_has_data, docs_url FROM tool_stats WHERE id = 'sparsetool'`)
		Expect(row.Scan(&dl, &hasData, &docs)).To(Succeed())
		Expect(dl).To(BeNil())
		Expect(hasData).To(BeFalse())
		Expect(docs).To(BeNil())

		urls, err := writer.StatsURLs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(urls).To(Equal([]string{"https://github.com/pypsa/pypsa", "https://github.com/org/sparsetool"}))
	})

	It("erstatter stats-tabellen helt ved neste kjøring", func() {
		stats := []models.ToolStats{
			{ToolRecord: models.ToolRecord{ID: "eneste", Name: "Eneste", URL: "https://github.com/org/eneste"}},
		}
		Expect(writer.ReplaceStats(ctx, stats, time.Now().UTC())).To(Succeed())

		count, err := writer.StatsCount(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("fletter interaksjoner med set-union og teller bare nye", func() {
		when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		first := []models.Interaction{
			{Login: "alice", Repo: "org/tool", Kind: models.InteractionStargazer, When: &when},
			{Login: "bob", Repo: "org/tool", Kind: models.InteractionWatcher}, // uten tidspunkt
		}

		added, err := writer.AppendInteractions(ctx, first)
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(Equal(int64(2)))

		// Samme observasjoner pluss én ny – bare den nye skal telle.
		second := append(first, models.Interaction{
			Login: "carol", Repo: "org/tool", Kind: models.InteractionFork, When: &when,
		})
		added, err = writer.AppendInteractions(ctx, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(Equal(int64(1)))
	})

	It("finner logins uten profilrad og bevarer klassifisering ved ny henting", func() {
		logins, err := writer.UnseenLogins(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(logins).To(Equal([]string{"alice", "bob", "carol"}))

		Expect(writer.UpsertUserDetails(ctx, models.UserDetails{
			Login: "alice", Company: "Some University", EmailDomain: "uni.edu",
		})).To(Succeed())

		logins, err = writer.UnseenLogins(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(logins).To(Equal([]string{"bob", "carol"}))

		Expect(writer.UpdateClassification(ctx, "alice", "research", "academic-email")).To(Succeed())

		// En ny profilhenting skal ikke nullstille kategorien.
		Expect(writer.UpsertUserDetails(ctx, models.UserDetails{
			Login: "alice", Company: "Some University", EmailDomain: "uni.edu", Followers: 99,
		})).To(Succeed())

		users, err := writer.ListUserDetails(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(1))
		Expect(users[0].Category).To(Equal("research"))
		Expect(users[0].RuleID).To(Equal("academic-email"))
		Expect(users[0].Followers).To(Equal(int64(99)))
	})

	It("persisterer og nullstiller innsamler-markøren", func() {
		repo, err := writer.GetCursor(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo).To(Equal(""))

		Expect(writer.SetCursor(ctx, "org/tool")).To(Succeed())
		repo, err = writer.GetCursor(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo).To(Equal("org/tool"))

		Expect(writer.SetCursor(ctx, "org/annet")).To(Succeed())
		repo, _ = writer.GetCursor(ctx)
		Expect(repo).To(Equal("org/annet"))

		Expect(writer.ClearCursor(ctx)).To(Succeed())
		repo, err = writer.GetCursor(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo).To(Equal(""))
	})

	It("persisterer refresh-tilstanden", func() {
		state, err := writer.GetRefreshState(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())

		Expect(writer.SetRefreshState(ctx, models.RefreshState{
			Fingerprint: "abc123", CompletedAt: time.Now().UTC(), Version: 1,
		})).To(Succeed())

		state, err = writer.GetRefreshState(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.Fingerprint).To(Equal("abc123"))
		Expect(state.Version).To(Equal(int64(1)))
	})

	It("skriver verktøytabellen og revisjonssporet", func() {
		tools := []models.ToolRecord{
			{ID: "pypsa", Name: "PyPSA", URL: "https://github.com/pypsa/pypsa", Sources: []string{"manual"}},
		}
		dropped := []models.Dropped{
			{Key: "nettsted", Reason: "ingen gyldig git-repo-URL"},
		}
		snapshot := time.Now().UTC()

		Expect(writer.ReplaceTools(ctx, tools, snapshot)).To(Succeed())
		Expect(writer.RecordDropped(ctx, dropped, snapshot)).To(Succeed())

		var reason string
		row := testDB.DB.QueryRow(`SELECT reason FROM dropped_tools WHERE key = 'nettsted'`)
		Expect(row.Scan(&reason)).To(Succeed())
		Expect(reason).To(Equal("ingen gyldig git-repo-URL"))
	})
})
