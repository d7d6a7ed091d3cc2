package translate

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/vlaradar/vlaradar/internal/logging"
)

const (
	defaultGoogleEndpoint   = "https://translate.googleapis.com/translate_a/single"
	defaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"

	maxInputRunes    = 500
	maxResponseBytes = 256 * 1024
	clientTimeout    = 20 * time.Second
)

// Translator converts free-text fields to the target language on a
// best-effort basis: any failure returns the input unchanged, never an
// error. An empty target language disables translation entirely.
type Translator struct {
	target           string
	googleEndpoint   string
	myMemoryEndpoint string
	client           *http.Client
	logger           *logging.Logger
}

func New(target string, logger *logging.Logger) *Translator {
	return &Translator{
		target:           target,
		googleEndpoint:   defaultGoogleEndpoint,
		myMemoryEndpoint: defaultMyMemoryEndpoint,
		client:           &http.Client{Timeout: clientTimeout},
		logger:           logger,
	}
}

// Enabled reports whether a target language is configured.
func (t *Translator) Enabled() bool {
	return t.target != ""
}

// Translate tries the Google gtx endpoint, then MyMemory, and falls back
// to the original text when both fail or the text already reads as the
// target language.
func (t *Translator) Translate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || !t.Enabled() {
		return text
	}
	if strings.HasPrefix(t.target, "zh") && isMostlyChinese(text) {
		return text
	}
	if rs := []rune(text); len(rs) > maxInputRunes {
		text = string(rs[:maxInputRunes])
	}

	if out := t.viaGoogle(text); out != "" {
		return out
	}
	if out := t.viaMyMemory(text); out != "" {
		return out
	}
	return text
}

// viaGoogle uses the public gtx client endpoint, which needs no API key.
func (t *Translator) viaGoogle(text string) string {
	apiURL := t.googleEndpoint + "?client=gtx&sl=auto&tl=" + url.QueryEscape(t.target) + "&dt=t&q=" + url.QueryEscape(text)
	req, err := http.NewRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("translate (google-gtx) failed", logging.WithField("error", err.Error()))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("translate (google-gtx) failed", logging.WithField("status", resp.StatusCode))
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ""
	}

	// Response shape: [[["translated","original",...],...],...]
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return ""
	}
	outer, ok := raw[0].([]any)
	if !ok {
		return ""
	}

	var result strings.Builder
	for _, seg := range outer {
		pair, ok := seg.([]any)
		if !ok || len(pair) < 1 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			result.WriteString(s)
		}
	}
	return strings.TrimSpace(result.String())
}

func (t *Translator) viaMyMemory(text string) string {
	pair := sourceLang(text) + "|" + t.target
	apiURL := t.myMemoryEndpoint + "?langpair=" + url.QueryEscape(pair) + "&q=" + url.QueryEscape(text)

	resp, err := t.client.Get(apiURL)
	if err != nil {
		t.logger.Debug("translate (mymemory) failed", logging.WithField("error", err.Error()))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("translate (mymemory) failed", logging.WithField("status", resp.StatusCode))
		return ""
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return ""
	}
	return strings.TrimSpace(out.ResponseData.TranslatedText)
}

// Normalize applies NFKC normalization and collapses whitespace runs; used
// on titles and summaries before they enter the feed.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}

func sourceLang(s string) string {
	for _, r := range s {
		if r >= 0x3040 && r <= 0x309f || r >= 0x30a0 && r <= 0x30ff {
			return "ja"
		}
	}
	return "en"
}

func isMostlyChinese(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	var cjk, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return true
	}
	return cjk >= 1 && (cjk*4 >= total || cjk >= 2)
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4e00 && r <= 0x9fff:
		return true
	case r >= 0x3400 && r <= 0x4dbf:
		return true
	case r >= 0x3000 && r <= 0x303f:
		return true
	}
	return false
}
