package models

import (
	"sort"
	"time"
)

// ToolRecord er én rad i verktøysinventaret etter sammenslåing.
// ID (normalisert navn) og URL (normalisert repo-URL) er dedup-nøklene.
type ToolRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Sources     []string `json:"sources"`
}

// AddSource legger til en kilde i proveniens-settet, sortert og uten duplikater.
func (t *ToolRecord) AddSource(source string) {
	for _, s := range t.Sources {
		if s == source {
			return
		}
	}
	t.Sources = append(t.Sources, source)
	sort.Strings(t.Sources)
}

// Dropped dokumenterer hvorfor en rad forsvant fra inventaret.
// Hver droppet rad skal kunne spores til en konkret grunn.
type Dropped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// DDS er "development distribution score" fra ecosyste.ms.
// Score 0 fra API-et kan bety både "ingen data" og "perfekt fordelt",
// så vi bærer HasData eksplisitt i stedet for å gjette.
type DDS struct {
	Score   float64 `json:"score"`
	HasData bool    `json:"has_data"`
}

// ToolStats er en beriket inventarrad. Downloads er nil når ingen
// pakkeregistre har data, og 0 bare når et register faktisk svarte 0.
type ToolStats struct {
	ToolRecord

	CreatedAt     time.Time `json:"created_at"`
	PushedAt      time.Time `json:"pushed_at"`
	Stars         int64     `json:"stars"`
	Forks         int64     `json:"forks"`
	Contributors  int64     `json:"contributors"`
	Dependents    int64     `json:"dependents"`
	Downloads     *int64    `json:"downloads_last_month"`
	DDS           DDS       `json:"dds"`
	DocsURL       string    `json:"docs_url"`
	Language      string    `json:"language"`
	License       string    `json:"license"`
	Archived      bool      `json:"archived"`
	LatestRelease string    `json:"latest_release"`

	DataGap   bool   `json:"data_gap"`
	GapReason string `json:"gap_reason"`
}

// Interaction er én observert bruker-interaksjon med et repo.
// Identiteten er hele tuppelen (login, repo, kind, tidspunkt);
// ledgeren er append-only og merges med set-union.
type Interaction struct {
	Login string     `json:"login"`
	Repo  string     `json:"repo"` // owner/name
	Kind  string     `json:"kind"`
	When  *time.Time `json:"when"` // watchers har ikke tidspunkt
}

// Interaksjonstyper vi henter fra hosting-API-et.
const (
	InteractionStargazer = "stargazer"
	InteractionFork      = "fork"
	InteractionIssue     = "issue"
	InteractionPull      = "pull"
	InteractionWatcher   = "watcher"
)

// UserDetails er profilfeltene vi klassifiserer på. Hentes én gang per
// første gang en login observeres; Category/RuleID skrives av klassifisereren.
type UserDetails struct {
	Login       string   `json:"login"`
	Company     string   `json:"company"`
	Blog        string   `json:"blog"`
	Location    string   `json:"location"`
	EmailDomain string   `json:"email_domain"`
	Bio         string   `json:"bio"`
	Twitter     string   `json:"twitter"`
	Followers   int64    `json:"followers"`
	Following   int64    `json:"following"`
	Readme      string   `json:"readme"`
	Orgs        []string `json:"orgs"`

	Category string `json:"category"`
	RuleID   string `json:"rule_id"`
}

// OrgDetails er beskrivelsen av en organisasjon en bruker er medlem av.
type OrgDetails struct {
	Login       string `json:"login"`
	Description string `json:"description"`
}

// RefreshState er fingeravtrykket av pipeline-inputene fra forrige
// vellykkede kjøring. Leses ved start, skrives kun ved suksess.
// Version teller fullførte kjøringer, så tilstanden kan spores i
// etterkant uten å sammenligne tidsstempler.
type RefreshState struct {
	Fingerprint string    `json:"fingerprint"`
	CompletedAt time.Time `json:"completed_at"`
	Version     int64     `json:"version"`
}

// RunSummary oppsummerer en pipeline-kjøring, inkludert andelen
// verktøy med datagap, som er en del av kontrakten mot konsumentene.
type RunSummary struct {
	PerSource  map[string]int `json:"per_source"`
	Duplicates int            `json:"duplicates"`
	Excluded   int            `json:"excluded"`
	NoGit      int            `json:"no_git"`
	NotFound   int            `json:"not_found"`
	Gaps       int            `json:"gaps"`
	Total      int            `json:"total"`
}

// GapFraction er andelen berikede verktøy som endte med datagap.
func (s RunSummary) GapFraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Gaps) / float64(s.Total)
}
