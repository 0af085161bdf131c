package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// parseCategoryList cleans a one-name-per-line discovery response: strips
// numbering/bullets, drops blank or too-short lines, caps at count.
func parseCategoryList(raw string, count int) []string {
	var categories []string
	for _, line := range strings.Split(raw, "\n") {
		name := strings.TrimLeft(strings.TrimSpace(line), "0123456789.-)• ")
		name = strings.TrimSpace(name)
		if len(name) <= 2 {
			continue
		}
		categories = append(categories, name)
		if len(categories) == count {
			break
		}
	}
	return categories
}

// parseAssignments parses a classification response of the form
//
//	POST_1: 3 0.85
//	POST_2: 1 0.92
//
// into assignments against the given category list. Lines for unknown post
// indices or with out-of-range category numbers are skipped; the caller
// detects coverage gaps. Confidence is clamped to [0, 1].
func parseAssignments(raw string, batchSize int, categories []string) ([]Assignment, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty classification response")
	}

	var out []Assignment
	seen := make(map[int]bool)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		idx, rest, ok := splitPostLine(line)
		if !ok || idx < 1 || idx > batchSize || seen[idx] {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}

		catNum, err := strconv.Atoi(fields[0])
		if err != nil || catNum < 1 || catNum > len(categories) {
			continue
		}

		confidence := 0.8
		if len(fields) > 1 {
			if c, err := strconv.ParseFloat(fields[1], 64); err == nil {
				confidence = c
			}
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		seen[idx] = true
		out = append(out, Assignment{
			Index:      idx - 1,
			Category:   categories[catNum-1],
			Confidence: confidence,
		})
	}

	return out, nil
}

// parseAnnotations parses an annotation response of the form
//
//	POST_1: Asks about rain gear. || SENTIMENT: neutral
//
// Lines for unknown post indices are skipped; a missing sentiment segment
// leaves the label empty and the caller keeps the post's prior sentiment.
func parseAnnotations(raw string, batchSize int) ([]Annotation, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty annotation response")
	}

	var out []Annotation
	seen := make(map[int]bool)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		idx, rest, ok := splitPostLine(line)
		if !ok || idx < 1 || idx > batchSize || seen[idx] {
			continue
		}

		summary := rest
		label := ""
		if cut := strings.LastIndex(rest, "||"); cut >= 0 {
			summary = rest[:cut]
			label = strings.TrimSpace(rest[cut+2:])
			if upper := strings.ToUpper(label); strings.HasPrefix(upper, "SENTIMENT:") {
				label = strings.TrimSpace(label[len("SENTIMENT:"):])
			}
		}

		seen[idx] = true
		out = append(out, Annotation{
			Index:     idx - 1,
			Summary:   strings.TrimSpace(summary),
			Sentiment: label,
		})
	}

	return out, nil
}

// splitPostLine extracts the post index from a "POST_n: ..." line.
func splitPostLine(line string) (int, string, bool) {
	upper := strings.ToUpper(line)
	if !strings.HasPrefix(upper, "POST_") {
		return 0, "", false
	}

	colon := strings.Index(line, ":")
	if colon < 0 {
		return 0, "", false
	}

	idx, err := strconv.Atoi(strings.TrimSpace(line[len("POST_"):colon]))
	if err != nil {
		return 0, "", false
	}

	return idx, line[colon+1:], true
}
