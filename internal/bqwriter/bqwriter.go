// Package bqwriter eksporterer stats-tabellen til BigQuery, som er
// lagringen dashbordet leser fra når pipeline-en ikke kjører mot
// PostgreSQL.
package bqwriter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

type BigQueryWriter struct {
	Client  *bigquery.Client
	Dataset string
}

func NewBigQueryWriter(ctx context.Context, cfg *config.Config) (*BigQueryWriter, error) {
	var opts []option.ClientOption
	if cfg.BQCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.BQCredentials))
	}

	client, err := bigquery.NewClient(ctx, cfg.BQProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("kan ikke opprette BigQuery-klient: %w", err)
	}

	// Sørg for at hver tabell finnes
	tables := map[string]any{
		"tool_stats":    BGToolStats{},
		"dropped_tools": BGDropped{},
	}
	for tableName, schemaExample := range tables {
		if err := ensureTableExists(ctx, client, cfg.BQDataset, tableName, schemaExample); err != nil {
			return nil, fmt.Errorf("kunne ikke sikre tabell %s: %w", tableName, err)
		}
	}

	return &BigQueryWriter{
		Client:  client,
		Dataset: cfg.BQDataset,
	}, nil
}

// ExportStats skriver stats-radene og revisjonssporet for kjøringen.
func (w *BigQueryWriter) ExportStats(ctx context.Context, stats []models.ToolStats, dropped []models.Dropped, snapshot time.Time) error {
	rows := make([]BGToolStats, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, ConvertToBG(s, snapshot))
	}
	droppedRows := make([]BGDropped, 0, len(dropped))
	for _, d := range dropped {
		droppedRows = append(droppedRows, BGDropped{
			Key:           d.Key,
			Reason:        d.Reason,
			WhenCollected: snapshot,
		})
	}

	if err := insert(ctx, w.Client, w.Dataset, "tool_stats", rows); err != nil {
		return fmt.Errorf("tool_stats insert failed: %w", err)
	}
	if err := insert(ctx, w.Client, w.Dataset, "dropped_tools", droppedRows); err != nil {
		return fmt.Errorf("dropped_tools insert failed: %w", err)
	}
	return nil
}

func insert[T any](ctx context.Context, client *bigquery.Client, dataset, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := client.Dataset(dataset).Table(table).Inserter()
	return inserter.Put(ctx, rows)
}

// ==== Data-strukturer ====

type BGToolStats struct {
	ID            string              `bigquery:"id"`
	WhenCollected time.Time           `bigquery:"when_collected"`
	Name          string              `bigquery:"name"`
	URL           string              `bigquery:"url"`
	Description   string              `bigquery:"description"`
	Category      string              `bigquery:"category"`
	Sources       string              `bigquery:"sources"`
	CreatedAt     time.Time           `bigquery:"created_at"`
	PushedAt      time.Time           `bigquery:"pushed_at"`
	Stars         int64               `bigquery:"stars"`
	Forks         int64               `bigquery:"forks"`
	Contributors  int64               `bigquery:"contributors"`
	Dependents    int64               `bigquery:"dependents"`
	Downloads     bigquery.NullInt64  `bigquery:"downloads_last_month"`
	DDS           float64             `bigquery:"dds"`
	DDSHasData    bool                `bigquery:"dds_has_data"`
	DocsURL       bigquery.NullString `bigquery:"docs_url"`
	Language      string              `bigquery:"language"`
	License       string              `bigquery:"license"`
	Archived      bool                `bigquery:"archived"`
	LatestRelease string              `bigquery:"latest_release"`
	DataGap       bool                `bigquery:"data_gap"`
	GapReason     string              `bigquery:"gap_reason"`
}

type BGDropped struct {
	Key           string    `bigquery:"key"`
	Reason        string    `bigquery:"reason"`
	WhenCollected time.Time `bigquery:"when_collected"`
}

func ConvertToBG(s models.ToolStats, snapshot time.Time) BGToolStats {
	row := BGToolStats{
		ID:            s.ID,
		WhenCollected: snapshot,
		Name:          s.Name,
		URL:           s.URL,
		Description:   s.Description,
		Category:      s.Category,
		Sources:       strings.Join(s.Sources, ","),
		CreatedAt:     s.CreatedAt,
		PushedAt:      s.PushedAt,
		Stars:         s.Stars,
		Forks:         s.Forks,
		Contributors:  s.Contributors,
		Dependents:    s.Dependents,
		DDS:           s.DDS.Score,
		DDSHasData:    s.DDS.HasData,
		Language:      s.Language,
		License:       s.License,
		Archived:      s.Archived,
		LatestRelease: s.LatestRelease,
		DataGap:       s.DataGap,
		GapReason:     s.GapReason,
	}
	// Et ekte null-tall og "ingen data" skal ikke blandes i eksporten heller.
	if s.Downloads != nil {
		row.Downloads = bigquery.NullInt64{Int64: *s.Downloads, Valid: true}
	}
	if s.DocsURL != "" {
		row.DocsURL = bigquery.NullString{StringVal: s.DocsURL, Valid: true}
	}
	return row
}

func ensureTableExists(ctx context.Context, client *bigquery.Client, dataset, table string, exampleStruct any) error {
	tbl := client.Dataset(dataset).Table(table)
	_, err := tbl.Metadata(ctx)
	if err == nil {
		return nil // tabellen finnes
	}

	if gErr, ok := err.(*googleapi.Error); !ok || gErr.Code != 404 {
		return fmt.Errorf("feil ved henting av tabell-metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(exampleStruct)
	if err != nil {
		return fmt.Errorf("kunne ikke utlede skjema for %s: %w", table, err)
	}
	if err := tbl.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("kunne ikke opprette tabell %s: %w", table, err)
	}
	return nil
}
