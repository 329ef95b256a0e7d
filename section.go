package cargomcp

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Section represents a heading in a rendered documentation page.
type Section struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

var (
	headingRe    = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	selfAnchorRe = regexp.MustCompile(`\[[^\]]*\]\(#([^)\s]+)\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// ExtractSections parses markdown converted from a rustdoc page and returns
// its headings (H1-H6). Rustdoc emits a self-link ("§") on section headers;
// its fragment is used as the anchor so it matches the page. Headings
// without one get a generated anchor, de-duplicated with numeric suffixes.
func ExtractSections(markdown string) []Section {
	if markdown == "" {
		return nil
	}

	// Remove code blocks to avoid matching # in code
	cleaned := codeBlockRe.ReplaceAllString(markdown, "")

	matches := headingRe.FindAllStringSubmatch(cleaned, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]Section, 0, len(matches))
	anchorCounts := make(map[string]int)

	for _, match := range matches {
		raw := match[2]

		var anchor string
		if m := selfAnchorRe.FindStringSubmatch(raw); m != nil {
			anchor = m[1]
			raw = selfAnchorRe.ReplaceAllString(raw, "")
		}
		title := cleanHeading(raw)
		if title == "" {
			continue
		}

		if anchor == "" {
			base := generateAnchor(title)
			anchor = base
			if count, exists := anchorCounts[base]; exists {
				anchor = base + "-" + strconv.Itoa(count)
				anchorCounts[base]++
			} else {
				anchorCounts[base] = 1
			}
		}

		sections = append(sections, Section{
			Level:  len(match[1]),
			Title:  title,
			Anchor: anchor,
		})
	}

	return sections
}

// cleanHeading strips link syntax, code ticks and section markers.
func cleanHeading(s string) string {
	s = linkRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "§", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}

// generateAnchor creates a URL-safe anchor from a title.
func generateAnchor(title string) string {
	var sb strings.Builder
	prevHyphen := false

	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevHyphen = false
		} else if unicode.IsSpace(r) || r == '-' {
			if !prevHyphen && sb.Len() > 0 {
				sb.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	return strings.TrimSuffix(sb.String(), "-")
}
