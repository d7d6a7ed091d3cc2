package translate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vlaradar/vlaradar/internal/testutil"
)

func newTestTranslator(target string) *Translator {
	return New(target, testutil.NullLogger())
}

func TestTranslate_DisabledReturnsInput(t *testing.T) {
	tr := newTestTranslator("")
	if got := tr.Translate("hello world"); got != "hello world" {
		t.Errorf("Translate() = %q, want input unchanged", got)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true with empty target")
	}
}

func TestTranslate_EmptyInput(t *testing.T) {
	tr := newTestTranslator("zh-CN")
	if got := tr.Translate("   "); got != "" {
		t.Errorf("Translate() = %q, want empty", got)
	}
}

func TestTranslate_AlreadyChineseSkipped(t *testing.T) {
	tr := newTestTranslator("zh-CN")
	// Endpoints are unset on purpose; reaching them would fail the test
	// with a non-Chinese result.
	tr.googleEndpoint = "http://127.0.0.1:0"
	tr.myMemoryEndpoint = "http://127.0.0.1:0"

	in := "视觉语言动作模型的最新进展"
	if got := tr.Translate(in); got != in {
		t.Errorf("Translate() = %q, want Chinese input unchanged", got)
	}
}

func TestTranslate_ViaGoogle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tl") != "zh-CN" {
			t.Errorf("tl = %q, want zh-CN", r.URL.Query().Get("tl"))
		}
		w.Write([]byte(`[[["你好","hello",null,null,10],["世界","world",null,null,10]],null,"en"]`))
	}))
	defer server.Close()

	tr := newTestTranslator("zh-CN")
	tr.googleEndpoint = server.URL

	if got := tr.Translate("hello world"); got != "你好世界" {
		t.Errorf("Translate() = %q, want 你好世界", got)
	}
}

func TestTranslate_FallsBackToMyMemory(t *testing.T) {
	googleCalls := 0
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		googleCalls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer google.Close()

	myMemory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pair := r.URL.Query().Get("langpair"); pair != "en|zh-CN" {
			t.Errorf("langpair = %q, want en|zh-CN", pair)
		}
		w.Write([]byte(`{"responseData": {"translatedText": "你好"}}`))
	}))
	defer myMemory.Close()

	tr := newTestTranslator("zh-CN")
	tr.googleEndpoint = google.URL
	tr.myMemoryEndpoint = myMemory.URL

	if got := tr.Translate("hello"); got != "你好" {
		t.Errorf("Translate() = %q, want 你好", got)
	}
	if googleCalls != 1 {
		t.Errorf("google calls = %d, want 1", googleCalls)
	}
}

func TestTranslate_BothFailReturnsOriginal(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	tr := newTestTranslator("zh-CN")
	tr.googleEndpoint = failing.URL
	tr.myMemoryEndpoint = failing.URL

	if got := tr.Translate("hello"); got != "hello" {
		t.Errorf("Translate() = %q, want original text", got)
	}
}

func TestTranslate_LongInputTruncated(t *testing.T) {
	var gotQ string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		w.Write([]byte(`[[["好","x"]]]`))
	}))
	defer server.Close()

	tr := newTestTranslator("zh-CN")
	tr.googleEndpoint = server.URL

	tr.Translate(strings.Repeat("a", 800))
	if len([]rune(gotQ)) != 500 {
		t.Errorf("sent %d runes, want 500", len([]rune(gotQ)))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "a  b\n\tc", "a b c"},
		{"fullwidth to ascii", "ＶＬＡ　model", "VLA model"},
		{"trims edges", "  hi  ", "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSourceLang(t *testing.T) {
	if got := sourceLang("こんにちは"); got != "ja" {
		t.Errorf("sourceLang() = %q, want ja", got)
	}
	if got := sourceLang("hello"); got != "en" {
		t.Errorf("sourceLang() = %q, want en", got)
	}
}

func TestIsMostlyChinese(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"视觉语言动作模型", true},
		{"hello world", false},
		{"VLA 模型进展综述", true},
		{"", true},
	}

	for _, tt := range tests {
		if got := isMostlyChinese(tt.in); got != tt.want {
			t.Errorf("isMostlyChinese(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
