package pid

import (
	"regexp"
	"strings"
)

var (
	instrumentFunctionRe = regexp.MustCompile(`^[A-Z]{2,3}$`)
	instrumentNumberRe   = regexp.MustCompile(`^\d{3,}$`)
)

// PageResult is the outcome of running the fragment merger over one page
type PageResult struct {
	Page         int           `json:"page"`
	Tags         []Tag         `json:"tags"`
	RawTextItems []RawTextItem `json:"rawTextItems"`
	Warnings     []*Error      `json:"warnings,omitempty"`
}

type positionedRun struct {
	text string
	bbox BoundingBox
}

// ExtractPageTags classifies the text runs of one page.
//
// Pass 1 pairs a two or three letter function code sitting directly above a
// number of three or more digits into one instrument tag. Pairing is greedy
// and strictly in run order: the first qualifying number wins and both runs
// are consumed. Pass 2 matches every unconsumed run against the configured
// category patterns, skipping texts already tagged on this page. Runs touched
// by neither pass come back as raw text items.
func ExtractPageTags(page int, runs []TextRun, matcher *Matcher, tolerance Tolerance, ids IDFunc) (PageResult, error) {
	if page < 1 {
		return PageResult{}, ValidationError("page number must be positive, got %d", page)
	}
	if matcher == nil {
		return PageResult{}, ValidationError("matcher is required")
	}
	if ids == nil {
		ids = NewID
	}
	if tolerance.Horizontal <= 0 {
		tolerance.Horizontal = DefaultPairHorizontal
	}
	if tolerance.Vertical <= 0 {
		tolerance.Vertical = DefaultPairVertical
	}

	result := PageResult{
		Page:         page,
		Tags:         []Tag{},
		RawTextItems: []RawTextItem{},
		Warnings:     matcher.Warnings(),
	}

	positioned := make([]positionedRun, len(runs))
	for i, run := range runs {
		positioned[i] = positionedRun{
			text: strings.TrimSpace(run.Str),
			bbox: ComputeBoundingBox(run.Transform, run.Width, run.Height),
		}
	}

	consumed := make([]bool, len(runs))

	// Pass 1: instrument function above instrument number.
	for i, fn := range positioned {
		if consumed[i] || !instrumentFunctionRe.MatchString(fn.text) {
			continue
		}
		for j, num := range positioned {
			if j == i || consumed[j] || !instrumentNumberRe.MatchString(num.text) {
				continue
			}
			if !stackedPair(fn.bbox, num.bbox, tolerance) {
				continue
			}
			fnItem := RawTextItem{ID: ids(), Text: fn.text, Page: page, BBox: fn.bbox}
			numItem := RawTextItem{ID: ids(), Text: num.text, Page: page, BBox: num.bbox}
			result.Tags = append(result.Tags, Tag{
				ID:          ids(),
				Text:        fn.text + "-" + num.text,
				Page:        page,
				BBox:        fn.bbox.Union(num.bbox),
				Category:    CategoryInstrument,
				SourceItems: []RawTextItem{fnItem, numItem},
			})
			consumed[i] = true
			consumed[j] = true
			break
		}
	}

	// Pass 2: pattern classification of everything left.
	for i, run := range positioned {
		if consumed[i] {
			continue
		}
		for _, m := range matcher.Match(run.text) {
			consumed[i] = true
			if hasTagText(result.Tags, m.Text, page) {
				continue
			}
			result.Tags = append(result.Tags, Tag{
				ID:       ids(),
				Text:     m.Text,
				Page:     page,
				BBox:     run.bbox,
				Category: m.Category,
			})
		}
	}

	// Whitespace-only runs carry nothing a user could merge.
	for i, run := range positioned {
		if consumed[i] || run.text == "" {
			continue
		}
		result.RawTextItems = append(result.RawTextItems, RawTextItem{
			ID:   ids(),
			Text: run.text,
			Page: page,
			BBox: run.bbox,
		})
	}

	return result, nil
}

// stackedPair reports whether fn sits directly above num: centers aligned
// horizontally and a positive vertical gap below the vertical tolerance.
func stackedPair(fn, num BoundingBox, tol Tolerance) bool {
	if abs(fn.CenterX()-num.CenterX()) >= tol.Horizontal {
		return false
	}
	gap := fn.Y1 - num.Y2
	return gap > 0 && gap < tol.Vertical
}

func hasTagText(tags []Tag, text string, page int) bool {
	for _, t := range tags {
		if t.Page == page && t.Text == text {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
