package aprs

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/paulrosania/go-charset/charset"
	_ "github.com/paulrosania/go-charset/data"
)

// Legacy clients send comments in windows-1252.
const fallbackCharset = "windows-1252"

// charset.Translator is stateful, mu serializes access.
var fallback struct {
	once sync.Once
	mu   sync.Mutex
	tr   charset.Translator
	err  error
}

// DecodeText returns valid UTF-8 input as is, otherwise transcodes from windows-1252.
// Translation failure yields string with invalid bytes replaced.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	fallback.once.Do(func() {
		fallback.tr, fallback.err = charset.TranslatorFrom(fallbackCharset)
	})
	if fallback.err == nil {
		fallback.mu.Lock()
		_, out, err := fallback.tr.Translate(b, true)
		s := string(out)
		fallback.mu.Unlock()
		if err == nil && utf8.ValidString(s) {
			return s
		}
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// Comment is Data decoded as text.
func (p *Packet) Comment() string { return DecodeText(p.Data) }
