package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names a detected input encoding.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO88599    Charset = "ISO-8859-9"
	ISO885915   Charset = "ISO-8859-15"
)

// sniffSize is how much of the input is inspected before decoding starts.
const sniffSize = 4096

var boms = []struct {
	prefix  []byte
	charset Charset
}{
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// chardetNames maps chardet results onto the decoders we support. Anything
// else falls back to Windows-1252.
var chardetNames = map[string]Charset{
	"UTF-8":        UTF8,
	"ISO-8859-1":   Windows1252,
	"windows-1252": Windows1252,
	"ISO-8859-9":   ISO88599,
	"ISO-8859-15":  ISO885915,
}

var decoders = map[Charset]encoding.Encoding{
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	Windows1252: charmap.Windows1252,
	ISO88599:    charmap.ISO8859_9,
	ISO885915:   charmap.ISO8859_15,
}

// Decode sniffs the encoding of r and returns a reader producing UTF-8
// along with the charset it settled on. A UTF-8 BOM is stripped.
func Decode(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("sniffing encoding: %w", err)
	}

	charset, bomLen := Detect(head)

	if charset == UTF8 {
		_, _ = br.Discard(bomLen)
		return br, UTF8, nil
	}

	return transform.NewReader(br, decoders[charset].NewDecoder()), charset, nil
}

// Detect guesses the charset of a sample. It reports the length of a UTF-8
// BOM so callers can skip it; UTF-16 decoders consume their own BOM.
func Detect(sample []byte) (Charset, int) {
	for _, b := range boms {
		if bytes.HasPrefix(sample, b.prefix) {
			if b.charset == UTF8 {
				return UTF8, len(b.prefix)
			}

			return b.charset, 0
		}
	}

	if utf8.Valid(sample) {
		return UTF8, 0
	}

	if result, err := chardet.NewTextDetector().DetectBest(sample); err == nil {
		if charset, ok := chardetNames[result.Charset]; ok {
			return charset, 0
		}
	}

	return Windows1252, 0
}
