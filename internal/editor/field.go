package editor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jimdaga/briefdesk/internal/briefing"
)

// Field paths accepted by EditField:
//
//	title
//	objective
//	target_audience
//	references[i]   i == len(references) appends
//	notes[i]        i == len(notes) appends
//	deadlines.start | deadlines.delivery | deadlines.intermediate_stages
//	budget.total | budget.per_stage
var indexedPath = regexp.MustCompile(`^(references|notes)\[(\d+)\]$`)

func setField(doc *briefing.Document, title *string, path, value string) error {
	switch path {
	case "title":
		*title = value
	case "objective":
		doc.Objective = value
	case "target_audience":
		doc.TargetAudience = value
	case "deadlines.start":
		doc.Deadlines.Start = value
	case "deadlines.delivery":
		doc.Deadlines.Delivery = value
	case "deadlines.intermediate_stages":
		doc.Deadlines.IntermediateStages = value
	case "budget.total", "budget.per_stage":
		amount, err := ParseAmount(value)
		if err != nil {
			return briefing.ValidationError("edit "+path, err.Error())
		}
		if path == "budget.total" {
			doc.Budget.Total = amount
		} else {
			doc.Budget.PerStage = amount
		}
	default:
		list, i, err := indexed(doc, path)
		if err != nil {
			return err
		}
		switch {
		case i == len(*list):
			*list = append(*list, value)
		case i < len(*list):
			(*list)[i] = value
		default:
			return briefing.ValidationError("edit "+path, fmt.Sprintf("index %d out of range (%d items)", i, len(*list)))
		}
	}
	return nil
}

func removeItem(doc *briefing.Document, path string) error {
	list, i, err := indexed(doc, path)
	if err != nil {
		return err
	}
	if i >= len(*list) {
		return briefing.ValidationError("remove "+path, fmt.Sprintf("index %d out of range (%d items)", i, len(*list)))
	}
	*list = append((*list)[:i:i], (*list)[i+1:]...)
	return nil
}

func indexed(doc *briefing.Document, path string) (*[]string, int, error) {
	m := indexedPath.FindStringSubmatch(path)
	if m == nil {
		return nil, 0, briefing.ValidationError("edit", fmt.Sprintf("unknown field %q", path))
	}
	i, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, 0, briefing.ValidationError("edit", fmt.Sprintf("bad index in %q", path))
	}
	if m[1] == "references" {
		return &doc.References, i, nil
	}
	return &doc.Notes, i, nil
}

// ParseAmount parses a budget amount. A comma is accepted as the decimal
// separator when no dot is present. Empty input is zero. NaN, infinities and
// negative values are rejected.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return v, nil
}
