// Package answer turns stored answer text into a sequence of typed blocks.
//
// The source format is line based: "### " opens a subheading, "## " a heading, a line
// starting with digits followed by a dot is a numbered item, a blank line is a break and
// anything else is a paragraph.
package answer

import (
	"iter"
	"strings"
)

type Kind string

const (
	Subheading Kind = "subheading"
	Heading    Kind = "heading"
	Numbered   Kind = "numbered"
	Break      Kind = "break"
	Paragraph  Kind = "paragraph"
)

type Block struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Render yields one Block per line of text. The sequence can be ranged over many times.
func Render(text string) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		for line := range strings.SplitSeq(text, "\n") {
			if !yield(classify(strings.TrimSuffix(line, "\r"))) {
				return
			}
		}
	}
}

// Blocks collects Render(text).
func Blocks(text string) []Block {
	blocks := make([]Block, 0, strings.Count(text, "\n")+1)
	for b := range Render(text) {
		blocks = append(blocks, b)
	}
	return blocks
}

func classify(line string) Block {
	switch {
	case strings.HasPrefix(line, "### "):
		return Block{Kind: Subheading, Text: strings.TrimPrefix(line, "### ")}
	case strings.HasPrefix(line, "## "):
		return Block{Kind: Heading, Text: strings.TrimPrefix(line, "## ")}
	case isNumbered(line):
		return Block{Kind: Numbered, Text: line}
	case strings.TrimSpace(line) == "":
		return Block{Kind: Break}
	default:
		return Block{Kind: Paragraph, Text: line}
	}
}

// isNumbered matches lines starting with one or more digits followed by a dot.
func isNumbered(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && line[i] == '.'
}
