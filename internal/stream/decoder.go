package stream

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decoder incrementally decodes UTF-8 text. Incomplete multi-byte sequences
// at the end of a chunk are held back until the next chunk, invalid bytes
// become U+FFFD.
type decoder struct {
	t       transform.Transformer
	pending []byte
}

func newDecoder() *decoder {
	return &decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes p, keeping any trailing partial character for later.
func (d *decoder) Decode(p []byte) string {
	return d.decode(p, false)
}

// Flush decodes whatever is still pending.
func (d *decoder) Flush() string {
	return d.decode(nil, true)
}

func (d *decoder) decode(p []byte, final bool) string {
	src := append(d.pending, p...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	// each invalid byte may grow into a 3 byte replacement character.
	dst := make([]byte, len(src)*3+utf8.UTFMax)
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, final)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch {
		case errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
		}
		return string(out)
	}
}
