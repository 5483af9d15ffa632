package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	openDocumentContentPath = "content.xml"
	openDocumentTextNS      = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
)

// extractOpenDocument handles .odt, .odp and .ods, which share the
// content.xml layout.
func extractOpenDocument(content []byte, ext string) (string, error) {
	kind := strings.ToUpper(strings.TrimPrefix(ext, "."))
	zr, err := openZip(content, kind)
	if err != nil {
		return "", err
	}
	data, err := readEntry(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, openDocumentContentPath)
	}
	text, err := openDocumentBlocks(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	return text, nil
}

// openDocumentBlocks walks content.xml and returns the text of every
// paragraph and heading in document order, one space between blocks. Spans
// and other inline markup inside a block contribute their character data.
func openDocumentBlocks(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		out   []string
		block strings.Builder
		depth int
	)
	flush := func() {
		if text := strings.Join(strings.Fields(block.String()), " "); text != "" {
			out = append(out, text)
		}
		block.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !isTextElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p", "h":
				if depth == 0 {
					block.Reset()
				}
				depth++
			case "s", "tab", "line-break":
				if depth > 0 {
					block.WriteByte(' ')
				}
			}
		case xml.EndElement:
			if isTextElement(t.Name) && (t.Name.Local == "p" || t.Name.Local == "h") && depth > 0 {
				depth--
				if depth == 0 {
					flush()
				} else {
					block.WriteByte(' ')
				}
			}
		case xml.CharData:
			if depth > 0 {
				block.Write(t)
			}
		}
	}
	return strings.Join(out, " "), nil
}

func isTextElement(name xml.Name) bool {
	return name.Space == "text" || name.Space == openDocumentTextNS
}
