package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xhtml "golang.org/x/net/html"
)

// quotePrefix marks paragraphs HN users quote with a leading ">".
const quotePrefix = "│ "

// ToText converts HN's limited comment HTML to wrapped plain text.
// HN uses: <p> (paragraph), <a> (links), <i> (italic), <code> (inline code),
// <pre><code> (code blocks), and HTML entities. The tokenizer unescapes
// entities in text, so escaped markup stays literal.
func ToText(raw string, width int) string {
	return strings.Join(Lines(raw, width), "\n")
}

// Lines is ToText split into display lines.
func Lines(raw string, width int) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for i, para := range paragraphs(raw) {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, para.wrap(width)...)
	}
	return out
}

// Preview returns the first paragraph flattened to one line of at most max
// cells.
func Preview(raw string, max int) string {
	paras := paragraphs(raw)
	if len(paras) == 0 {
		return ""
	}
	line := strings.Join(strings.Fields(paras[0].text), " ")
	if max <= 0 || lipgloss.Width(line) <= max {
		return line
	}
	runes := []rune(line)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > max {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + "…"
}

type paragraph struct {
	text string
	pre  bool
}

func (p paragraph) wrap(width int) []string {
	if p.pre {
		var out []string
		for _, line := range strings.Split(strings.Trim(p.text, "\n"), "\n") {
			out = append(out, "    "+line)
		}
		return out
	}
	text := strings.TrimSpace(p.text)
	prefix := ""
	if strings.HasPrefix(text, ">") {
		prefix = quotePrefix
		text = strings.TrimSpace(strings.TrimPrefix(text, ">"))
	}
	lines := wrapWords(strings.Fields(text), width-lipgloss.Width(prefix))
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return lines
}

func paragraphs(raw string) []paragraph {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(raw))
	var out []paragraph
	var sb strings.Builder
	var inPre, inCode bool
	var anchorURL, anchorText string

	flush := func(pre bool) {
		if strings.TrimSpace(sb.String()) != "" {
			out = append(out, paragraph{text: sb.String(), pre: pre})
		}
		sb.Reset()
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			flush(inPre)
			return out

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := tokenizer.Token()
			switch t.Data {
			case "p":
				flush(false)
			case "i", "em":
				sb.WriteString("*")
			case "code":
				if !inPre {
					sb.WriteString("`")
				}
				inCode = true
			case "pre":
				flush(false)
				inPre = true
			case "a":
				anchorText = ""
				for _, attr := range t.Attr {
					if attr.Key == "href" {
						anchorURL = attr.Val
					}
				}
			}

		case xhtml.EndTagToken:
			t := tokenizer.Token()
			switch t.Data {
			case "i", "em":
				sb.WriteString("*")
			case "code":
				if !inPre {
					sb.WriteString("`")
				}
				inCode = false
			case "pre":
				flush(true)
				inPre = false
			case "a":
				// HN shortens long link text; only append URLs it hides.
				text := strings.TrimSuffix(strings.TrimSpace(anchorText), "...")
				if anchorURL != "" && (text == "" || !strings.HasPrefix(anchorURL, text)) {
					sb.WriteString(" [")
					sb.WriteString(anchorURL)
					sb.WriteString("]")
				}
				anchorURL = ""
			}

		case xhtml.TextToken:
			text := tokenizer.Token().Data
			if anchorURL != "" {
				anchorText += text
			}
			if inPre || inCode {
				sb.WriteString(text)
			} else {
				sb.WriteString(strings.ReplaceAll(text, "\n", " "))
			}
		}
	}
}

// wrapWords performs simple word wrapping to the given width in cells.
func wrapWords(words []string, width int) []string {
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var lines []string
	var line strings.Builder
	lineLen := 0
	for _, word := range words {
		wlen := lipgloss.Width(word)
		if lineLen > 0 && lineLen+1+wlen > width {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}
		line.WriteString(word)
		lineLen += wlen
	}
	return append(lines, line.String())
}
