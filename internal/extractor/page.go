package extractor

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Page-level extraction, distinct from the DOM content-isolation layers
above: this produces the page record (title, meta_description, links,
images, text_preview, metadata). The engine copies title,
meta_description, links and metadata into the sink document; images and
text_preview stay on the record, since storage.Document has no fields
for them. Links and
text_preview are derived by routing the isolated content node through
the same sanitize -> Markdown-render -> plain-text pipeline used
elsewhere in this module, rather than re-deriving that logic here.
*/

// Image describes an <img> discovered on a page.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Title  string `json:"title,omitempty"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// PageRecord is the content extractor's output: everything derivable
// from a single HTML page needed to populate a sink document.
type PageRecord struct {
	Title           string
	MetaDescription string
	Links           []url.URL
	Images          []Image
	TextPreview     string
	Metadata        map[string]string
}

const textPreviewMaxLen = 500

// PageExtractor derives a PageRecord from a raw HTML page, chaining the
// content isolation, sanitization and Markdown rendering stages.
type PageExtractor struct {
	dom       DomExtractor
	sanitizer sanitizer.Sanitizer
	convert   mdconvert.ConvertRule
}

// NewPageExtractor builds a PageExtractor reporting through metadataSink.
func NewPageExtractor(metadataSink metadata.MetadataSink, customSelectors ...string) PageExtractor {
	san := sanitizer.NewHTMLSanitizer(metadataSink)
	return PageExtractor{
		dom:       NewDomExtractor(metadataSink, customSelectors...),
		sanitizer: &san,
		convert:   mdconvert.NewRule(metadataSink),
	}
}

// Extract parses raw HTML and derives the page record against base, which
// is used to resolve relative links to absolute URLs. Failures isolating
// or rendering the content degrade to an empty links/text_preview rather
// than failing the whole extraction: title, meta_description, images and
// metadata are read directly off the full document and do not depend on
// content isolation succeeding.
func (p *PageExtractor) Extract(base url.URL, htmlBytes []byte) (PageRecord, failure.ClassifiedError) {
	domResult, err := p.dom.Extract(base, htmlBytes)
	root := domResult.DocumentRoot
	if err != nil || root == nil {
		parsed, parseErr := html.Parse(bytes.NewReader(htmlBytes))
		if parseErr != nil {
			return PageRecord{}, err
		}
		root = parsed
	}

	doc := goquery.NewDocumentFromNode(root)
	record := PageRecord{
		Title:           extractPageTitle(doc),
		MetaDescription: extractMetaDescription(doc),
		Images:          extractImages(doc, base),
		Metadata:        extractMetadata(doc),
	}

	if err == nil {
		links, textPreview := p.renderLinksAndPreview(domResult.ContentNode, base)
		record.Links = links
		record.TextPreview = textPreview
	}

	return record, nil
}

// renderLinksAndPreview sanitizes the isolated content node and renders it
// to Markdown to derive canonical links and a plain-text preview. Any
// failure in this sub-pipeline yields an empty (not erroring) result,
// matching the degrade-to-empty-extraction behavior for unparsable bodies.
func (p *PageExtractor) renderLinksAndPreview(contentNode *html.Node, base url.URL) ([]url.URL, string) {
	sanitized, sErr := p.sanitizer.Sanitize(contentNode)
	if sErr != nil {
		return nil, ""
	}

	converted, cErr := p.convert.Convert(sanitized)
	if cErr != nil {
		return nil, ""
	}

	return resolveLinks(converted.GetLinkRefs(), base), normalize.BuildTextPreview(converted.GetMarkdownContent(), textPreviewMaxLen)
}

// resolveLinks turns navigation LinkRefs into canonical absolute http(s)
// URLs, skipping fragment-only/javascript:/mailto: targets and
// deduplicating while preserving discovery order.
func resolveLinks(refs []mdconvert.LinkRef, base url.URL) []url.URL {
	var links []url.URL
	seen := make(map[string]bool)

	for _, ref := range refs {
		if ref.GetKind() != mdconvert.KindNavigation {
			continue
		}

		href := strings.TrimSpace(ref.GetRaw())
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			continue
		}

		parsed, err := url.Parse(href)
		if err != nil {
			continue
		}

		resolved := urlutil.Resolve(*parsed, base.Scheme, base.Host)
		if !urlutil.IsValidForCrawl(resolved) {
			continue
		}

		canonical := urlutil.Canonicalize(resolved)
		key := canonical.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, canonical)
	}

	return links
}

// extractPageTitle returns the first non-empty of <title>, og:title meta,
// first <h1>.
func extractPageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := metaContent(doc, "property", "og:title"); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return ""
}

// extractMetaDescription returns the first non-empty of
// meta[name=description], og:description, twitter:description.
func extractMetaDescription(doc *goquery.Document) string {
	if d := metaContent(doc, "name", "description"); d != "" {
		return d
	}
	if d := metaContent(doc, "property", "og:description"); d != "" {
		return d
	}
	if d := metaContent(doc, "name", "twitter:description"); d != "" {
		return d
	}
	return ""
}

// metaContent finds <meta attr=val content=...> and returns its trimmed
// content, or "" if absent/empty.
func metaContent(doc *goquery.Document, attr string, val string) string {
	sel := doc.Find("meta[" + attr + "='" + val + "']").First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// extractImages collects <img> elements with their attributes, resolving
// src against base.
func extractImages(doc *goquery.Document, base url.URL) []Image {
	var images []Image

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		src = strings.TrimSpace(src)
		if !ok || src == "" {
			return
		}

		parsed, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := urlutil.Resolve(*parsed, base.Scheme, base.Host)

		img := Image{
			Src:   resolved.String(),
			Alt:   sel.AttrOr("alt", ""),
			Title: sel.AttrOr("title", ""),
		}
		if w, ok := sel.Attr("width"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(w)); err == nil {
				img.Width = &n
			}
		}
		if h, ok := sel.Attr("height"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil {
				img.Height = &n
			}
		}
		images = append(images, img)
	})

	return images
}

// extractMetadata collects opengraph type/site_name/image/url, the
// canonical link, and the html lang attribute.
func extractMetadata(doc *goquery.Document) map[string]string {
	metadata := make(map[string]string)

	for _, prop := range []string{"og:type", "og:site_name", "og:image", "og:url"} {
		if v := metaContent(doc, "property", prop); v != "" {
			metadata[prop] = v
		}
	}

	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		if href = strings.TrimSpace(href); href != "" {
			metadata["canonical"] = href
		}
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		if lang = strings.TrimSpace(lang); lang != "" {
			metadata["lang"] = lang
		}
	}

	return metadata
}
