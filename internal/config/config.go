package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

type StorageType string

const (
	StoragePostgres StorageType = "postgres"
	StorageBigQuery StorageType = "bigquery"
)

// Filene i DataDir som pipeline-en leser ved oppstart.
const (
	ManualListFile = "manual_esm_list.csv"
	ExclusionsFile = "exclusions.csv"
	RulesFile      = "classification.yaml"
)

type Config struct {
	Token         string
	Debug         bool
	Storage       StorageType
	PostgresDSN   string
	BQProjectID   string
	BQDataset     string
	BQCredentials string // Valgfritt hvis GCP auth skjer automatisk
	Parallelism   int    // maks antall samtidige berikelses-kall
	DataDir       string // katalog med manuell liste, eksklusjoner og regler

	// GitHub App-auth for innsamleren. Valgfritt; token brukes ellers.
	AppID             int64
	AppInstallationID int64
	AppPrivateKey     string
}

// LoadConfigWithEnv bygger konfigurasjon fra en getenv-funksjon (testbar).
func LoadConfigWithEnv(getenv func(string) string) Config {
	parallelism := 4
	if pStr := getenv("ESMSNUSERN_PARALL"); pStr != "" {
		if p, err := strconv.Atoi(pStr); err == nil && p > 0 {
			parallelism = p
		}
	}

	dataDir := getenv("ESM_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	appID, _ := strconv.ParseInt(getenv("GITHUB_APP_ID"), 10, 64)
	instID, _ := strconv.ParseInt(getenv("GITHUB_APP_INSTALLATION_ID"), 10, 64)

	return Config{
		Token:             getenv("GITHUB_TOKEN"),
		Debug:             getenv("ESMSNUSERN_DEBUG") == "true",
		Storage:           StorageType(getenv("ESM_STORAGE")),
		PostgresDSN:       getenv("POSTGRES_DSN"),
		BQProjectID:       getenv("BQ_PROJECT_ID"),
		BQDataset:         getenv("BQ_DATASET"),
		BQCredentials:     getenv("BQ_CREDENTIALS"),
		Parallelism:       parallelism,
		DataDir:           dataDir,
		AppID:             appID,
		AppInstallationID: instID,
		AppPrivateKey:     getenv("GITHUB_APP_PRIVATE_KEY"),
	}
}

// ValidateConfig sjekker at påkrevde variabler er satt for valgt lagring.
func ValidateConfig(cfg Config) error {
	if cfg.Storage == "" {
		return errors.New("ESM_STORAGE må være satt til 'postgres' eller 'bigquery'")
	}

	// Tilstanden (refresh, markør, ledger) bor alltid i Postgres.
	// BigQuery er en eksport i tillegg.
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN må være satt")
	}

	switch cfg.Storage {
	case StoragePostgres:
	case StorageBigQuery:
		if cfg.BQProjectID == "" || cfg.BQDataset == "" {
			return errors.New("BQ_PROJECT_ID og BQ_DATASET må være satt for bigquery-eksport")
		}
	default:
		return errors.New("ugyldig verdi for ESM_STORAGE – må være 'postgres' eller 'bigquery'")
	}

	if cfg.DataDir == "" {
		return errors.New("ESM_DATA_DIR må peke på katalogen med inputfilene")
	}

	return nil
}

// ValidateUserConfig sjekker variablene innsamleren trenger i tillegg.
func ValidateUserConfig(cfg Config) error {
	if cfg.Token == "" && (cfg.AppID == 0 || cfg.AppInstallationID == 0 || cfg.AppPrivateKey == "") {
		return errors.New("GITHUB_TOKEN eller GITHUB_APP_ID/GITHUB_APP_INSTALLATION_ID/GITHUB_APP_PRIVATE_KEY må være satt")
	}
	return nil
}

// LoadAndValidateConfig er snarveien for cmd-binærene.
func LoadAndValidateConfig() (Config, error) {
	cfg := LoadConfigWithEnv(os.Getenv)
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ManualListPath er stien til den manuelt kuraterte verktøylisten.
func (c Config) ManualListPath() string { return filepath.Join(c.DataDir, ManualListFile) }

// ExclusionsPath er stien til eksklusjonslisten.
func (c Config) ExclusionsPath() string { return filepath.Join(c.DataDir, ExclusionsFile) }

// RulesPath er stien til klassifiseringsreglene.
func (c Config) RulesPath() string { return filepath.Join(c.DataDir, RulesFile) }
