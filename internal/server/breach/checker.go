// Package breach screens candidate passwords. Strength estimates run offline
// with zxcvbn; breach lookups use the Have I Been Pwned range API, which only
// ever sees the first five hex characters of the password's SHA-1.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/nbutton23/zxcvbn-go"
)

const (
	DefaultBaseURL   = "https://api.pwnedpasswords.com"
	defaultUserAgent = "budget-api-breach-check"
	prefixLength     = 5
)

type Options struct {
	Enabled   bool
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Checker struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	enabled    bool
	logger     logging.Logger
}

func NewChecker(opts Options, logger logging.Logger) *Checker {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Checker{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    baseURL,
		userAgent:  ua,
		enabled:    opts.Enabled,
		logger:     logger.With("module", "breach_checker"),
	}
}

// IsBreached reports whether password appears in the breach corpus. A
// disabled checker always answers false.
func (c *Checker) IsBreached(ctx context.Context, password string) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hash[:prefixLength], hash[prefixLength:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("error creating breach request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Add-Padding", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("breach request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("breach API returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		candidate, count, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		// padding entries carry a zero count
		if strings.EqualFold(candidate, suffix) && strings.TrimSpace(count) != "0" {
			c.logger.Debug(ctx, "password found in breach corpus", "prefix", prefix)
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("error reading breach response: %w", err)
	}

	return false, nil
}

// Strength returns the zxcvbn score from 0 (trivially guessable) to 4.
// userInputs are words an attacker would try first, such as the email address.
func Strength(password string, userInputs ...string) int {
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
