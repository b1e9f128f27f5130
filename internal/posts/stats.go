package posts

import (
	"regexp"
	"strings"
)

const wordsPerMinute = 200

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

type ContentStats struct {
	Words          int
	ReadingMinutes int
}

// Stats counts the words of an html post body, tags excluded
func Stats(content string) ContentStats {
	text := htmlTagRegex.ReplaceAllString(content, " ")
	words := len(strings.Fields(text))
	return ContentStats{
		Words:          words,
		ReadingMinutes: (words + wordsPerMinute - 1) / wordsPerMinute,
	}
}
