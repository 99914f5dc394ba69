// Package classifier setter kategori på innsamlede brukere ut fra
// profilfeltene deres. Reglene er data (YAML), evalueres i filens
// rekkefølge, og første treff vinner. Funksjonen er ren: å kjøre den
// på nytt over hele ledgeren gir samme svar så lenge regler og
// profilfelter står stille.
package classifier

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// Kategorier som ikke kommer fra en regel.
const (
	CategoryUnclassified = "unclassified"
	// En bruker med selskap som ingen regel traff er i det minste
	// profesjonell – samme fallback som resten av kjeden forventer.
	CategoryProfessional = "professional"
	RuleIDCompanyDefault = "default-company"
)

// Feltene en regel kan matche mot.
var validFields = []string{"login", "company", "email_domain", "blog_domain", "bio", "orgs"}

// Matchetypene en regel kan bruke.
var validKinds = []string{"exact", "word", "suffix", "regex"}

type Rule struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Field    string   `yaml:"field"`
	Kind     string   `yaml:"kind"`
	Patterns []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules leser og kompilerer regelfilen. Ugyldige felter eller
// matchetyper er konfigurasjonsfeil og stopper oppstarten.
func LoadRules(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kunne ikke lese regelfil %s: %w", path, err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("kunne ikke parse regelfil: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("regelfilen inneholder ingen regler")
	}

	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.ID == "" || rule.Category == "" {
			return nil, fmt.Errorf("regel %d mangler id eller kategori", i)
		}
		if !contains(validFields, rule.Field) {
			return nil, fmt.Errorf("regel %s: ukjent felt %q", rule.ID, rule.Field)
		}
		if !contains(validKinds, rule.Kind) {
			return nil, fmt.Errorf("regel %s: ukjent matchetype %q", rule.ID, rule.Kind)
		}
		if err := rule.compile(); err != nil {
			return nil, fmt.Errorf("regel %s: %w", rule.ID, err)
		}
	}
	return &rs, nil
}

func (r *Rule) compile() error {
	for _, pattern := range r.Patterns {
		switch r.Kind {
		case "word":
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(pattern)) + `\b`)
			if err != nil {
				return err
			}
			r.compiled = append(r.compiled, re)
		case "regex":
			re, err := regexp.Compile(pattern)
			if err != nil {
				return err
			}
			r.compiled = append(r.compiled, re)
		}
	}
	return nil
}

func (r *Rule) matches(value string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	switch r.Kind {
	case "exact":
		for _, pattern := range r.Patterns {
			if lower == strings.ToLower(pattern) {
				return true
			}
		}
	case "suffix":
		for _, pattern := range r.Patterns {
			if strings.HasSuffix(lower, strings.ToLower(pattern)) {
				return true
			}
		}
	case "word", "regex":
		for _, re := range r.compiled {
			if re.MatchString(lower) {
				return true
			}
		}
	}
	return false
}

// Classify returnerer kategori og regelen som traff. Ingen treff gir
// "unclassified" – det er et gyldig svar, ikke en feil.
func (rs *RuleSet) Classify(user models.UserDetails) (category, ruleID string) {
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.matches(fieldValue(user, rule.Field)) {
			return rule.Category, rule.ID
		}
	}
	if strings.TrimSpace(user.Company) != "" {
		return CategoryProfessional, RuleIDCompanyDefault
	}
	return CategoryUnclassified, ""
}

// ClassifyAll skriver kategori/regel tilbake på radene og lar alle
// andre felter stå urørt.
func (rs *RuleSet) ClassifyAll(users []models.UserDetails) []models.UserDetails {
	out := make([]models.UserDetails, len(users))
	for i, user := range users {
		user.Category, user.RuleID = rs.Classify(user)
		out[i] = user
	}
	return out
}

func fieldValue(user models.UserDetails, field string) string {
	switch field {
	case "login":
		return user.Login
	case "company":
		return user.Company
	case "email_domain":
		return user.EmailDomain
	case "blog_domain":
		return blogDomain(user.Blog)
	case "bio":
		// Profil-README-en er en forlengelse av bioen for vårt formål.
		return strings.TrimSpace(user.Bio + " " + user.Readme)
	case "orgs":
		return strings.Join(user.Orgs, " ")
	}
	return ""
}

func blogDomain(blog string) string {
	if blog == "" {
		return ""
	}
	if !strings.Contains(blog, "://") {
		blog = "https://" + blog
	}
	parsed, err := url.Parse(blog)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
