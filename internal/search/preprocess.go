package search

import (
	"bufio"
	"bytes"
	"strings"
)

// PrepareMarkdown flattens Markdown table rows into standalone facts so each
// row can be retrieved as its own passage. Headings and prose paragraphs are
// kept as they are. If no table was present the input is returned unchanged.
//
// Notes:
//   - Separator rows ("|---|:--:|") are dropped.
//   - Avoids emitting a leading blank line.
//   - Normalizes the tail to end with exactly one newline when a table was
//     flattened.
func PrepareMarkdown(src []byte) ([]byte, error) {
	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	wroteBlank := true // start true to avoid a leading blank
	sawTable := false

	blank := func() {
		if !wroteBlank {
			b.WriteByte('\n')
			wroteBlank = true
		}
	}
	writeFact := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		blank()
		b.WriteString(s)
		b.WriteString("\n\n")
		wroteBlank = true
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			blank()
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			sawTable = true
			raw := strings.Trim(line, "|")
			cols := strings.Split(raw, "|")

			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.ReplaceAll(cell, ":", "")
				tmp = strings.ReplaceAll(tmp, "-", "")
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			writeFact(strings.Join(cleaned, " "))
			continue
		}

		b.WriteString(line)
		b.WriteByte('\n')
		wroteBlank = false
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !sawTable {
		return src, nil
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), nil
}
