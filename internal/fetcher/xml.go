package fetcher

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that understands any charset declared in
// the XML prolog (Shift_JIS and EUC-JP feeds included).
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return d
}

// DecodeXML unmarshals an entire document into v.
func DecodeXML(data []byte, v any) error {
	return eris.Wrap(NewXMLDecoder(bytes.NewReader(data)).Decode(v), "xml: decode")
}

// DecodeElements decodes every element whose local name is elementName,
// wherever it appears in the document.
func DecodeElements[T any](data []byte, elementName string) ([]T, error) {
	d := NewXMLDecoder(bytes.NewReader(data))
	var out []T
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, eris.Wrap(err, "xml: read token")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}
		var item T
		if err := d.DecodeElement(&item, &se); err != nil {
			return out, eris.Wrapf(err, "xml: decode %s", elementName)
		}
		out = append(out, item)
	}
}
