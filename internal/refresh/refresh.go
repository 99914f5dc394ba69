// Package refresh avgjør om en ny berikelse i det hele tatt trengs.
// Uendrede inputer pluss eksisterende output betyr null eksterne kall –
// det beskytter metrikk-tjenesten mot redundant last og holder
// kjøringene idempotente.
package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// Store er den persisterte tilstanden kontrolleren eier. Ingen andre
// komponenter skriver til den.
type Store interface {
	GetRefreshState(ctx context.Context) (*models.RefreshState, error)
	SetRefreshState(ctx context.Context, state models.RefreshState) error
	StatsCount(ctx context.Context) (int, error)
}

type Controller struct {
	Store Store
}

// Fingerprint er sha256 over de lokale inputfilene pluss den
// kanoniske serialiseringen av den sammenslåtte inventartabellen.
// En fil som mangler bidrar med tomt innhold, ikke feil – da slår
// fingeravtrykket ut når filen dukker opp.
func Fingerprint(inputFiles []string, merged []models.ToolRecord) string {
	h := sha256.New()

	for _, path := range inputFiles {
		fmt.Fprintf(h, "file:%s\n", path)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		_, _ = io.Copy(h, f)
		f.Close()
	}

	for _, rec := range merged {
		fmt.Fprintf(h, "tool:%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\n",
			rec.ID, rec.Name, rec.URL, rec.Description, rec.Category,
			strings.Join(rec.Sources, ","))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ShouldRun er sann hvis fingeravtrykket har endret seg siden forrige
// vellykkede kjøring, eller hvis output-tabellen er borte. Å tvinge en
// ny kjøring gjøres ved å slette outputen – kontrolleren har ingen
// tidsbasert utløping.
func (c *Controller) ShouldRun(ctx context.Context, fingerprint string) (bool, error) {
	state, err := c.Store.GetRefreshState(ctx)
	if err != nil {
		return false, fmt.Errorf("kunne ikke lese refresh-tilstand: %w", err)
	}
	if state == nil || state.Fingerprint != fingerprint {
		return true, nil
	}

	count, err := c.Store.StatsCount(ctx)
	if err != nil {
		return false, fmt.Errorf("kunne ikke telle stats-tabellen: %w", err)
	}
	if count == 0 {
		slog.Info("Stats-tabellen er tom – kjører på nytt tross uendrede inputer")
		return true, nil
	}

	slog.Info("Inputene er uendret siden forrige kjøring – hopper over berikelsen",
		"fullført", state.CompletedAt.Format(time.RFC3339))
	return false, nil
}

// MarkSuccess persisterer fingeravtrykket med et nytt versjonsnummer.
// Kalles kun etter en fullt vellykket kjøring, aldri underveis.
func (c *Controller) MarkSuccess(ctx context.Context, fingerprint string) error {
	var version int64
	if prev, err := c.Store.GetRefreshState(ctx); err == nil && prev != nil {
		version = prev.Version
	}
	return c.Store.SetRefreshState(ctx, models.RefreshState{
		Fingerprint: fingerprint,
		CompletedAt: time.Now().UTC(),
		Version:     version + 1,
	})
}
