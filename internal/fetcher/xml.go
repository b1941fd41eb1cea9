package fetcher

import (
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that transcodes any charset declared in the
// XML prolog (the light-list feeds declare windows-1252) to UTF-8.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder
}

// DecodeXML decodes a whole XML document from r into v.
func DecodeXML(r io.Reader, v any) error {
	if err := NewXMLDecoder(r).Decode(v); err != nil {
		if err == io.EOF {
			return eris.New("xml: empty document")
		}
		return eris.Wrap(err, "xml: decode document")
	}
	return nil
}
