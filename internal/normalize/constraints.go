package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Responsibilities
- Inject frontmatter (title, canonical URL, depth, section, content hash)
- Build a plain-text preview for pages that never get rendered elsewhere
- Reject only truly unusable content (empty after trimming)

The crawler ingests arbitrary HTML pages, not curated single-doc Markdown
sources, so this stage does not enforce a single-H1 document hierarchy the
way a hand-authored docs site would. Title and section derivation are
best-effort: a page with no heading still normalizes, just with an empty
title.
*/

type Constraint interface {
	Normalize(
		fetchUrl url.URL,
		content []byte,
		normalizeParam NormalizeParam,
	) (NormalizedMarkdownDoc, failure.ClassifiedError)
}

type MarkdownConstraint struct {
	metadataSink metadata.MetadataSink
}

func NewMarkdownConstraint(
	metadataSink metadata.MetadataSink,
) MarkdownConstraint {
	return MarkdownConstraint{
		metadataSink: metadataSink,
	}
}

func (m *MarkdownConstraint) Normalize(
	fetchUrl url.URL,
	content []byte,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	normalizedMarkdown, err := normalize(fetchUrl, content, normalizeParam)
	if err != nil {
		var normalizationError *NormalizationError
		errors.As(err, &normalizationError)
		m.metadataSink.RecordError(
			time.Now(),
			"normalize",
			"MarkdownConstraint.Normalize",
			mapNormalizationErrorToMetadataCause(*normalizationError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
		return NormalizedMarkdownDoc{}, normalizationError
	}
	return normalizedMarkdown, nil
}

func normalize(
	fetchUrl url.URL,
	content []byte,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	if len(bytes.TrimSpace(content)) == 0 {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   "markdown content is empty",
			Retryable: false,
			Cause:     ErrCauseEmptyContent,
		}
	}

	frontmatter, err := generateFrontmatter(fetchUrl, content, normalizeParam)
	if err != nil {
		return NormalizedMarkdownDoc{}, err
	}

	return NewNormalizedMarkdownDoc(frontmatter, content), nil
}

func generateFrontmatter(
	fetchUrl url.URL,
	content []byte,
	normalizeParam NormalizeParam,
) (Frontmatter, failure.ClassifiedError) {
	title := extractTitle(content)

	sourceURL := fetchUrl.String()
	canonicalURL := urlutil.Canonicalize(fetchUrl)
	canonicalURLStr := canonicalURL.String()

	section := deriveSection(canonicalURL, normalizeParam.allowedPathPrefixes)

	docIDHash, hashErr := hashutil.HashBytes([]byte(canonicalURLStr), normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &NormalizationError{
			Message:   fmt.Sprintf("failed to compute doc_id: %v", hashErr),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	docID := string(normalizeParam.hashAlgo) + ":" + docIDHash

	contentHashValue, hashErr := hashutil.HashBytes(content, normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &NormalizationError{
			Message:   fmt.Sprintf("failed to compute content_hash: %v", hashErr),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	contentHash := string(normalizeParam.hashAlgo) + ":" + contentHashValue

	return NewFrontmatter(
		title,
		sourceURL,
		canonicalURLStr,
		normalizeParam.crawlDepth,
		section,
		docID,
		contentHash,
		normalizeParam.fetchedAt,
		normalizeParam.appVersion,
	), nil
}

// deriveSection extracts the first meaningful path segment from the URL,
// after stripping any matching allowedPathPrefix. Pages at the site root,
// or whose path is entirely consumed by the prefix, have no section --
// that's a valid outcome for a general crawler, not an error.
func deriveSection(canonicalURL url.URL, allowedPathPrefixes []string) string {
	path := canonicalURL.Path
	if path == "" || path == "/" {
		return ""
	}

	for _, prefix := range allowedPathPrefixes {
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}

	path = strings.TrimPrefix(path, "/")
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			return segment
		}
	}
	return ""
}

// extractTitle returns the text of the first heading found in content, of
// any level, with inline Markdown formatting stripped. Content with no
// heading yields an empty title.
func extractTitle(content []byte) string {
	p := parser.New()
	doc := markdown.Parse(content, p)

	var title string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if title != "" {
			return ast.Terminate
		}
		if h, ok := node.(*ast.Heading); ok && entering {
			title = strings.TrimSpace(stripInlineMarkdown(headingText(h)))
			if title != "" {
				return ast.Terminate
			}
		}
		return ast.GoToNext
	})

	return title
}

// headingText concatenates the literal text of a heading's inline children.
func headingText(h *ast.Heading) string {
	var sb strings.Builder
	ast.WalkFunc(h, func(node ast.Node, entering bool) ast.WalkStatus {
		if entering {
			if leaf := node.AsLeaf(); leaf != nil {
				sb.Write(leaf.Literal)
			}
		}
		return ast.GoToNext
	})
	return sb.String()
}

// stripInlineMarkdown removes common inline markdown formatting from text.
func stripInlineMarkdown(text string) string {
	text = strings.ReplaceAll(text, "`", "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "_", "")
	text = strings.ReplaceAll(text, "[", "")
	text = strings.ReplaceAll(text, "]", "")
	return text
}

// BuildTextPreview flattens markdown to plain text and truncates it at a
// word boundary, appending an ellipsis if it was cut short. Used for the
// extractor's PageRecord.TextPreview.
func BuildTextPreview(content []byte, maxLen int) string {
	if len(bytes.TrimSpace(content)) == 0 {
		return ""
	}

	p := parser.New()
	doc := markdown.Parse(content, p)

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := node.AsLeaf(); leaf != nil && len(leaf.Literal) > 0 {
			sb.Write(leaf.Literal)
			sb.WriteByte(' ')
		}
		return ast.GoToNext
	})

	text := strings.Join(strings.Fields(sb.String()), " ")
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	truncated := text[:maxLen]
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated) + "..."
}
