package code

import "strings"

// Block is a fenced code block found in model output.
type Block struct {
	Language string
	Code     string
}

// ExtractFirstBlock returns the first fenced code block in text together
// with the text before and after the block. ok is false when no complete
// block exists.
func ExtractFirstBlock(text string) (block Block, before, after string, ok bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return Block{}, "", "", false
	}

	rest := text[start+3:]

	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return Block{}, "", "", false
	}

	language := strings.TrimSpace(rest[:nl])
	body := rest[nl+1:]

	end := strings.Index(body, "```")
	if end < 0 {
		return Block{}, "", "", false
	}

	return Block{Language: language, Code: body[:end]},
		text[:start],
		strings.TrimPrefix(body[end+3:], "\n"),
		true
}

// StripBlocks removes all complete fenced code blocks from text, returning
// the remaining prose.
func StripBlocks(text string) string {
	var b strings.Builder

	for {
		_, before, after, ok := ExtractFirstBlock(text)
		if !ok {
			b.WriteString(text)
			break
		}

		b.WriteString(before)
		text = after
	}

	return b.String()
}
