package outline

import (
	"regexp"
	"strings"
)

// EstimateDays maps dot-run length to planned days.
var EstimateDays = map[int]float64{
	1: 0.5,
	2: 2,
	3: 5,
}

// UnitDays maps measurement unit letters (hour, half-day, day) to days.
var UnitDays = map[rune]float64{
	'h': 0.125,
	'a': 0.5,
	'd': 1,
}

var (
	bracketRe     = regexp.MustCompile(`\[([^\[\]]*)\]`)
	referenceRe   = regexp.MustCompile(`@\(([^)]*)\)`)
	workRe        = regexp.MustCompile(`^(\.{1,3})$`)
	waitRe        = regexp.MustCompile(`^wait\s*(\.{1,3})$`)
	measurementRe = regexp.MustCompile(`^[had]+$`)
	deadlineRe    = regexp.MustCompile(`^by\s+(\S+)$`)
)

// extractAttributes parses every task's source text into fields and then
// drops the raw text.
func extractAttributes(tree *Tree, deadlines DeadlineResolver) error {
	for _, t := range tree.Tasks {
		if err := extractTask(t, deadlines); err != nil {
			return err
		}
		t.text = ""
	}
	return nil
}

func extractTask(t *Task, deadlines DeadlineResolver) error {
	text := t.text
	var err error

	for _, m := range referenceRe.FindAllStringSubmatch(text, -1) {
		for _, ref := range strings.Split(m[1], ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				t.refs = append(t.refs, ref)
			}
		}
	}
	text = referenceRe.ReplaceAllString(text, " ")

	text = bracketRe.ReplaceAllStringFunc(text, func(tok string) string {
		if err != nil {
			return tok
		}
		var recognized bool
		recognized, err = applyAnnotation(t, strings.TrimSpace(tok[1:len(tok)-1]), deadlines)
		if recognized {
			return " "
		}
		return tok
	})
	if err != nil {
		return err
	}

	t.Description = strings.Join(strings.Fields(text), " ")
	return nil
}

// applyAnnotation folds one bracket body into t and reports whether it was
// a known annotation.
func applyAnnotation(t *Task, body string, deadlines DeadlineResolver) (bool, error) {
	switch {
	case workRe.MatchString(body):
		return true, setEstimate(t, KindWork, len(body))
	case waitRe.MatchString(body):
		dots := waitRe.FindStringSubmatch(body)[1]
		return true, setEstimate(t, KindWait, len(dots))
	case body == "done":
		t.Done = true
		return true, nil
	case measurementRe.MatchString(body):
		for _, r := range body {
			t.Measurement += UnitDays[r]
		}
		return true, nil
	case deadlineRe.MatchString(body):
		if t.HasDeadline() {
			return true, annotationError(t.Line, "task has more than one deadline")
		}
		d, err := deadlines.Resolve(deadlineRe.FindStringSubmatch(body)[1])
		if err != nil {
			return true, annotationError(t.Line, "%v", err)
		}
		t.Deadline = d
		return true, nil
	}
	return false, nil
}

func setEstimate(t *Task, kind Kind, dots int) error {
	if t.HasEstimate() {
		return annotationError(t.Line, "task has more than one estimate")
	}
	t.Kind = kind
	t.Estimate = EstimateDays[dots]
	return nil
}
