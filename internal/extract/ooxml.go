package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
)

var (
	// <w:t> runs carry the visible text of a Word document.
	wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// <a:t> runs carry the visible text of a slide.
	drawingText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	overrideTag = regexp.MustCompile(`<Override[^>]*>`)
	partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)
)

// docxBodyPath resolves the main document part from [Content_Types].xml.
// Attribute order inside <Override> varies between producers.
func docxBodyPath(zr *zip.Reader) string {
	types, err := readEntry(zr, contentTypesPath)
	if err != nil || types == nil {
		return docxDefaultBodyPath
	}
	for _, tag := range overrideTag.FindAllString(string(types), -1) {
		if !strings.Contains(tag, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameAttr.FindStringSubmatch(tag); m != nil {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return docxDefaultBodyPath
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	bodyPath := docxBodyPath(zr)
	body, err := readEntry(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", bodyPath)
	}
	var b strings.Builder
	collectText(&b, wordText, string(body))
	return b.String(), nil
}

func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i]) < slideNumber(slides[j]) })

	var b strings.Builder
	for _, name := range slides {
		data, err := readEntry(zr, name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		collectText(&b, drawingText, string(data))
	}
	return b.String(), nil
}

// slideNumber parses N out of ppt/slides/slideN.xml; zip order is not slide order.
func slideNumber(name string) int {
	n := 0
	for _, r := range strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePrefix), ".xml") {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
