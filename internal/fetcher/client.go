package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Injecter en klient (for testbarhet)
var HttpClient = http.DefaultClient

// MaxRetries er antall ekstra forsøk per kall før vi gir oss og
// markerer verktøyet med datagap.
const MaxRetries = 3

var (
	// ErrNotFound betyr at tjenesten svarte 404 for ressursen.
	ErrNotFound = errors.New("ressurs ikke funnet")
	// ErrAccessDenied betyr at tjenesten svarte 403.
	ErrAccessDenied = errors.New("tilgang nektet")
)

// DoJSON gjør et HTTP-kall og dekoder JSON-svaret inn i out.
// Rate limit (X-RateLimit-Remaining: 0) håndteres ved å vente til reset.
// Transiente feil (nettverk, 5xx, 429) prøves på nytt med eksponentiell
// backoff, maks MaxRetries ganger. 404 og 403 er permanente.
func DoJSON(ctx context.Context, method, url, token string, body []byte, out any) error {
	op := func() error {
		return doOnce(ctx, method, url, token, body, out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)

	return backoff.Retry(op, policy)
}

func doOnce(ctx context.Context, method, url, token string, body []byte, out any) error {
	for {
		slog.Debug("Henter URL", "url", url)

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		if method == http.MethodPost {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := HttpClient.Do(req)
		if err != nil {
			return err
		}

		if rl := resp.Header.Get("X-RateLimit-Remaining"); rl == "0" {
			reset := resp.Header.Get("X-RateLimit-Reset")
			drainAndClose(resp.Body)
			if ts, err := strconv.ParseInt(reset, 10, 64); err == nil {
				wait := time.Until(time.Unix(ts, 0)) + time.Second
				slog.Warn("Rate limit nådd", "venter", wait.Truncate(time.Second))
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return fmt.Errorf("rate limit uten gyldig reset-header")
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			drainAndClose(resp.Body)
			return backoff.Permanent(fmt.Errorf("%s: %w", url, ErrNotFound))
		case resp.StatusCode == http.StatusForbidden:
			drainAndClose(resp.Body)
			return backoff.Permanent(fmt.Errorf("%s: %w", url, ErrAccessDenied))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			bodyBytes, _ := io.ReadAll(resp.Body)
			drainAndClose(resp.Body)
			err := fmt.Errorf("API-feil: status %d – %s", resp.StatusCode, string(bodyBytes))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		drainAndClose(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("kunne ikke dekode svar fra %s: %w", url, err))
		}
		return nil
	}
}

// GetRaw henter rå bytes fra en URL, med samme retry-oppførsel som
// DoJSON. Brukes for kilder som ikke er JSON (f.eks. YAML).
func GetRaw(ctx context.Context, url, token string) ([]byte, error) {
	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := HttpClient.Do(req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("API-feil: status %d for %s", resp.StatusCode, url)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		out, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckURL sjekker at en URL finnes ved å spørre etter headeren
// (med automatisk følging av redirects).
func CheckURL(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := HttpClient.Do(req)
	if err != nil {
		return false
	}
	drainAndClose(resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ResolveURL følger redirects og returnerer den endelige URL-en.
func ResolveURL(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return url
	}
	resp, err := HttpClient.Do(req)
	if err != nil {
		return url
	}
	drainAndClose(resp.Body)
	return resp.Request.URL.String()
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	if err := body.Close(); err != nil {
		slog.Warn("Klarte ikke å lukke body", "error", err)
	}
}
