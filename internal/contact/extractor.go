package contact

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/scoutgraph/internal/model"
)

// Input is the text a profile exposes.
type Input struct {
	Bio          string
	ExternalLink string
	DisplayName  string
	Category     string
	// ExtraText holds additional text such as business contact fields or
	// anchors collected from a link-in-bio page.
	ExtraText []string
}

// minPhoneDigits is the minimum number of digits for a phone number.
const minPhoneDigits = 8

// placeholderEmailDomains and placeholderEmailLocals filter obviously fake
// or unusable addresses. Domains match exactly or as a parent domain.
var (
	placeholderEmailDomains = []string{"example.com", "test.com", "yourdomain.com", "yoursite.com"}
	placeholderEmailLocals  = []string{"noreply", "no-reply"}
)

// socialDomains maps each platform to the hosts that identify it.
var socialDomains = map[model.Platform][]string{
	model.PlatformYouTube:   {"youtube.com", "youtu.be"},
	model.PlatformTwitter:   {"twitter.com", "x.com"},
	model.PlatformFacebook:  {"facebook.com", "fb.com", "fb.me"},
	model.PlatformLinkedIn:  {"linkedin.com"},
	model.PlatformTikTok:    {"tiktok.com"},
	model.PlatformSnapchat:  {"snapchat.com"},
	model.PlatformPinterest: {"pinterest.com"},
	model.PlatformTwitch:    {"twitch.tv"},
}

var (
	messagingDomains = []string{"t.me", "telegram.me"}
	chatAppDomains   = []string{"wa.me", "whatsapp.com"}
)

// Extractor holds the compiled pattern tables.
type Extractor struct {
	emailRegex        *regexp.Regexp
	urlRegex          *regexp.Regexp
	phoneRegex        *regexp.Regexp
	phoneLabelRegex   *regexp.Regexp
	messagingLink     *regexp.Regexp
	messagingKeyword  *regexp.Regexp
	messagingAtHandle *regexp.Regexp
	chatAppLink       *regexp.Regexp
	chatAppQuery      *regexp.Regexp
	chatAppKeyword    *regexp.Regexp
	yearRange         *regexp.Regexp
	nonDigit          *regexp.Regexp
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		emailRegex: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		urlRegex:   regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+"),
		phoneRegex: regexp.MustCompile(
			`(?i)(?:(?:call|text|phone|mobile|tel)[:.\s]*)?(\+?\(?\d[\d\s\-().]{6,}\d)`),
		phoneLabelRegex: regexp.MustCompile(`(?i)(call|text|phone|mobile|tel)[:.\s]*`),
		messagingLink: regexp.MustCompile(
			`(?i)(?:^|[^\w.])(?:https?://)?(?:www\.)?(?:t|telegram)\.me/([A-Za-z0-9_]{5,32})\b`),
		messagingKeyword: regexp.MustCompile(
			`(?i)\b(?:telegram|tg)\b[\s:\-]*@?([A-Za-z0-9_]{5,32})\b`),
		messagingAtHandle: regexp.MustCompile(`(?:^|[\s(,;:!|])@([A-Za-z0-9_]{5,32})\b`),
		chatAppLink: regexp.MustCompile(
			`(?i)(?:^|[^\w.])(?:https?://)?(?:www\.)?wa\.me/\+?(\d{8,15})`),
		chatAppQuery: regexp.MustCompile(
			`(?i)(?:api\.)?whatsapp\.com/send/?\?(?:[^\s]*&)?phone=\+?(\d{8,15})`),
		chatAppKeyword: regexp.MustCompile(
			`(?i)\bwhats\s?app\b[^\d+]{0,20}(\+?\d[\d\s\-().]{6,}\d)`),
		yearRange: regexp.MustCompile(`^(?:19|20)\d{2}\s*[-/]\s*(?:19|20)\d{2}$`),
		nonDigit:  regexp.MustCompile(`\D`),
	}
}

// Extract returns the contact record found in in.
func (e *Extractor) Extract(in Input) model.ContactRecord {
	text := combine(in)

	var rec model.ContactRecord
	rec.Emails = e.emails(text)
	if len(rec.Emails) > 0 {
		rec.Email = rec.Emails[0]
	}

	rec.AllLinks = e.urls(text)

	rec.Phones = e.phones(e.emailRegex.ReplaceAllString(e.urlRegex.ReplaceAllString(text, " "), " "))
	if len(rec.Phones) > 0 {
		rec.Phone = rec.Phones[0]
	}

	if h := e.messagingHandle(text); h != "" {
		rec.MessagingHandle = h
		rec.MessagingLink = "https://t.me/" + h
	}
	if digits := e.chatAppNumber(text); digits != "" {
		rec.ChatAppLink = "https://wa.me/" + digits
	}

	rec.SocialLinks = categorize(rec.AllLinks)
	rec.Website = website(in.ExternalLink, rec.AllLinks)
	return rec
}

func combine(in Input) string {
	parts := make([]string, 0, 4+len(in.ExtraText))
	for _, p := range []string{in.Bio, in.ExternalLink, in.DisplayName, in.Category} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	for _, p := range in.ExtraText {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (e *Extractor) emails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range e.emailRegex.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".")
		lower := strings.ToLower(m)
		if seen[lower] || isPlaceholderEmail(lower) {
			continue
		}
		seen[lower] = true
		out = append(out, m)
	}
	return out
}

// isPlaceholderEmail expects a lower-cased address.
func isPlaceholderEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return true
	}
	if slices.Contains(placeholderEmailLocals, local) {
		return true
	}
	for _, d := range placeholderEmailDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func (e *Extractor) urls(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range e.urlRegex.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,!?;:)")
		lower := strings.ToLower(u)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, u)
	}
	return out
}

// phones expects text with URLs already removed.
func (e *Extractor) phones(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range e.phoneRegex.FindAllStringSubmatch(text, -1) {
		if e.yearRange.MatchString(strings.TrimSpace(m[1])) {
			continue
		}
		phone := e.cleanPhone(m[1])
		if phone == "" || seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, phone)
	}
	return out
}

// cleanPhone strips label words and punctuation, keeping a leading "+".
// It returns "" when fewer than minPhoneDigits digits remain.
func (e *Extractor) cleanPhone(raw string) string {
	raw = strings.TrimSpace(e.phoneLabelRegex.ReplaceAllString(raw, ""))
	digits := e.nonDigit.ReplaceAllString(raw, "")
	if len(digits) < minPhoneDigits {
		return ""
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}
	return digits
}

// messagingHandle looks for a t.me short link first, then a keyword
// such as "telegram: name", then a bare @name mention.
func (e *Extractor) messagingHandle(text string) string {
	if m := e.messagingLink.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := e.messagingKeyword.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, idx := range e.messagingAtHandle.FindAllStringSubmatchIndex(text, -1) {
		end := idx[3]
		// "@name.domain" is part of an address, not a mention.
		if end < len(text) && (text[end] == '.' || text[end] == '@') {
			continue
		}
		return text[idx[2]:idx[3]]
	}
	return ""
}

// chatAppNumber returns the digits of a WhatsApp number, preferring links
// over keyword-adjacent numbers.
func (e *Extractor) chatAppNumber(text string) string {
	if m := e.chatAppLink.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := e.chatAppQuery.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := e.chatAppKeyword.FindStringSubmatch(text); m != nil {
		digits := e.nonDigit.ReplaceAllString(m[1], "")
		if len(digits) >= minPhoneDigits {
			return digits
		}
	}
	return ""
}

func categorize(links []string) map[model.Platform]string {
	out := make(map[model.Platform]string)
	for _, link := range links {
		p, ok := platformOf(hostOf(link))
		if !ok {
			continue
		}
		if _, exists := out[p]; !exists {
			out[p] = link
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func platformOf(host string) (model.Platform, bool) {
	if host == "" {
		return "", false
	}
	for _, p := range model.AllPlatforms() {
		if matchesAny(host, socialDomains[p]) {
			return p, true
		}
	}
	return "", false
}

// website prefers the declared external link unless it points at a
// social, messaging or chat-app host.
func website(external string, links []string) string {
	if external = strings.TrimSpace(external); external != "" && !isKnownNonWebsite(hostOf(external)) {
		return external
	}
	for _, link := range links {
		if !isKnownNonWebsite(hostOf(link)) {
			return link
		}
	}
	return ""
}

func isKnownNonWebsite(host string) bool {
	if _, ok := platformOf(host); ok {
		return true
	}
	return matchesAny(host, messagingDomains) || matchesAny(host, chatAppDomains)
}

// hostOf returns the lower-cased host of raw without "www.".
// raw may omit the scheme.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// matchesAny reports whether host equals one of domains or is a subdomain of one.
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// String renders a one-line summary of rec for logs.
func String(rec model.ContactRecord) string {
	var parts []string
	if rec.Email != "" {
		parts = append(parts, "email")
	}
	if rec.Phone != "" {
		parts = append(parts, "phone")
	}
	if rec.MessagingHandle != "" {
		parts = append(parts, "telegram")
	}
	if rec.ChatAppLink != "" {
		parts = append(parts, "whatsapp")
	}
	if rec.Website != "" {
		parts = append(parts, "website")
	}
	if len(rec.SocialLinks) > 0 {
		parts = append(parts, fmt.Sprintf("social(%d)", len(rec.SocialLinks)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
