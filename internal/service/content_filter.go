package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"modhub/internal/cache"
	"modhub/internal/middleware"
	"modhub/internal/models"
	"modhub/internal/repository"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WordMatch is one blocklisted token found in submitted text.
type WordMatch struct {
	Word     string          `json:"word"`
	Severity models.Severity `json:"severity"`
}

// ContentFilter classifies submitted text. Blocklist hits are policy
// violations; malicious patterns are security violations. The two are
// reported separately and punished differently.
type ContentFilter struct {
	words repository.ForbiddenWordRepository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewContentFilter builds a filter whose blocklist is cached in Redis for ttl.
func NewContentFilter(words repository.ForbiddenWordRepository, rdb *redis.Client, ttl time.Duration) *ContentFilter {
	if ttl <= 0 {
		ttl = cache.DefaultBlocklistTTL
	}
	return &ContentFilter{words: words, rdb: rdb, ttl: ttl}
}

// NormalizeToken lowercases a token and strips combining marks so that
// accented or full-width variants match the stored form.
func NormalizeToken(token string) string {
	chain := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, token)
	if err != nil {
		out = token
	}
	return strings.ToLower(out)
}

// Tokenize splits text on whitespace and normalizes every token.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, NormalizeToken(f))
	}
	return tokens
}

// DetectForbiddenWords returns one match per distinct blocklisted token in
// text, in order of first appearance, or nil when the text is clean.
// Matching is by whole token, never by substring.
func (f *ContentFilter) DetectForbiddenWords(ctx context.Context, text string) ([]WordMatch, error) {
	blocklist, err := f.blocklist(ctx)
	if err != nil {
		return nil, err
	}
	if len(blocklist) == 0 {
		return nil, nil
	}

	var matches []WordMatch
	seen := make(map[string]bool)
	for _, token := range Tokenize(text) {
		severity, ok := blocklist[token]
		if !ok || seen[token] {
			continue
		}
		seen[token] = true
		matches = append(matches, WordMatch{Word: token, Severity: severity})
	}
	return matches, nil
}

// blocklist returns the word→severity index, served from Redis when warm.
func (f *ContentFilter) blocklist(ctx context.Context) (map[string]models.Severity, error) {
	var index map[string]models.Severity
	err := cache.Aside(ctx, f.rdb, cache.BlocklistKey, &index, f.ttl, func() error {
		words, err := f.words.List(ctx)
		if err != nil {
			return fmt.Errorf("load forbidden words: %w", err)
		}
		index = make(map[string]models.Severity, len(words))
		for _, w := range words {
			index[NormalizeToken(w.Word)] = w.Severity
		}
		return nil
	})
	return index, err
}

// InvalidateBlocklist drops the cached blocklist after an admin change.
func (f *ContentFilter) InvalidateBlocklist(ctx context.Context) {
	cache.Invalidate(ctx, f.rdb, cache.BlocklistKey)
}

// ClassifySeverity reduces matches to the highest severity among them.
func ClassifySeverity(matches []WordMatch) models.Severity {
	severity := models.SeverityNone
	for _, m := range matches {
		severity = models.MaxSeverity(severity, m.Severity)
	}
	return severity
}

var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|applet|meta|link|style|svg|base|form)\b`),
	regexp.MustCompile(`(?i)<[^>]*\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)(javascript|vbscript|livescript)\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	regexp.MustCompile(`(?i)\b(eval|expression)\s*\(`),
	regexp.MustCompile(`(?i)document\s*\.\s*(cookie|write|location)`),
	regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
	regexp.MustCompile(`(?i);\s*(drop|truncate|alter)\s+(table|database|schema)\b`),
	regexp.MustCompile(`(?i);\s*(delete\s+from|insert\s+into|update\s+\w+\s+set)\b`),
	regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+`),
}

// IsMalicious reports whether text carries script, markup or SQL injection patterns.
func IsMalicious(text string) bool {
	for _, p := range maliciousPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// logSecurityEvent records a blocked malicious submission. ip and user agent
// stay in logs and never reach the caller.
func logSecurityEvent(ctx context.Context, actor Actor, target string, content string) {
	preview := truncateRunes(content, 120)
	middleware.Logger.WarnContext(ctx, "malicious content blocked",
		slog.String("event", "security"),
		slog.Uint64("actor_id", uint64(actor.UserID)),
		slog.String("target", target),
		slog.String("ip", actor.IP),
		slog.String("user_agent", actor.UserAgent),
		slog.String("content_preview", preview),
	)
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
