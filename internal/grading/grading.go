// Package grading scores a captured question snapshot against a submitted
// answer map. Everything here is a pure function of its inputs so a grading
// pass can be re-run (regrades) and tested without touching storage.
package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"exam_platform_backend/internal/model"
)

// Config carries the exam-level scoring parameters.
type Config struct {
	TotalMarks   float64
	PassingMarks float64
}

// QuestionOutcome is the graded state of a single question.
type QuestionOutcome struct {
	Attempted bool
	Correct   bool
	// Marks awarded for this question: positive for correct, negative when a
	// wrong answer carries a negative-marks penalty, zero when unattempted.
	Marks float64
}

// Outcome aggregates one full grading pass.
type Outcome struct {
	TotalQuestions int
	Attempted      int
	Correct        int
	Wrong          int
	MarksObtained  float64
	Percentage     float64
	IsPassed       bool
	PerQuestion    map[uint]QuestionOutcome
	ByDifficulty   map[model.Difficulty]model.DifficultyScore
}

// checker compares a stored correct answer with a submitted one.
type checker func(correct, given string) bool

var checkers = map[model.QuestionType]checker{
	model.QuestionMCQ:       checkSet,
	model.QuestionTrueFalse: checkBool,
	model.QuestionFillBlank: checkText,
}

// Grade scores the snapshot against the answers. Questions absent from the
// answer map (or mapped to an empty string) count as unattempted. Wrong
// answers subtract the question's negative marks; the obtained total is
// floored at zero before the percentage and pass flag are derived.
func Grade(questions []model.PaperQuestion, answers map[uint]string, cfg Config) Outcome {
	out := Outcome{
		TotalQuestions: len(questions),
		PerQuestion:    make(map[uint]QuestionOutcome, len(questions)),
		ByDifficulty: map[model.Difficulty]model.DifficultyScore{
			model.DifficultyEasy:   {},
			model.DifficultyMedium: {},
			model.DifficultyHard:   {},
		},
	}

	var total float64
	for _, q := range questions {
		given, ok := answers[q.QuestionID]
		if !ok || strings.TrimSpace(given) == "" {
			out.PerQuestion[q.QuestionID] = QuestionOutcome{}
			continue
		}

		out.Attempted++
		qo := QuestionOutcome{Attempted: true}

		check, known := checkers[q.Type]
		if known && check(q.CorrectAnswer, given) {
			qo.Correct = true
			qo.Marks = q.Marks
			total += q.Marks
			out.Correct++
		} else {
			qo.Marks = -q.NegativeMarks
			total -= q.NegativeMarks
			out.Wrong++
		}
		out.PerQuestion[q.QuestionID] = qo

		ds := out.ByDifficulty[q.Difficulty]
		ds.Total++
		if qo.Correct {
			ds.Correct++
			ds.Marks += q.Marks
		}
		out.ByDifficulty[q.Difficulty] = ds
	}

	out.MarksObtained = math.Max(0, total)
	if cfg.TotalMarks > 0 {
		out.Percentage = Round2(out.MarksObtained / cfg.TotalMarks * 100)
	}
	out.IsPassed = out.MarksObtained >= cfg.PassingMarks

	return out
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// checkText: exact match after trimming and Unicode case folding.
func checkText(correct, given string) bool {
	return strings.EqualFold(strings.TrimSpace(correct), strings.TrimSpace(given))
}

// checkBool: both sides must parse to the same boolean token.
func checkBool(correct, given string) bool {
	cb, cerr := strconv.ParseBool(strings.ToLower(strings.TrimSpace(correct)))
	gb, gerr := strconv.ParseBool(strings.ToLower(strings.TrimSpace(given)))
	if cerr != nil || gerr != nil {
		return false
	}
	return cb == gb
}

// checkSet: order-insensitive equality of the selected option key sets.
func checkSet(correct, given string) bool {
	want := keySet(correct)
	got := keySet(given)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for k := range want {
		if _, ok := got[k]; !ok {
			return false
		}
	}
	return true
}

// AnswerKeys parses an answer payload into normalized, deduplicated option
// keys in first-seen order. It accepts a JSON string array, a JSON string, or
// a plain comma-separated scalar, so clients may send "A", ["A","C"] or "A,C"
// interchangeably.
func AnswerKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	var keys []string
	seen := make(map[string]struct{})

	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	if strings.HasPrefix(raw, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			for _, k := range parsed {
				add(k)
			}
			return keys
		}
	}
	if strings.HasPrefix(raw, `"`) {
		var k string
		if err := json.Unmarshal([]byte(raw), &k); err == nil {
			raw = k
		}
	}
	for _, k := range strings.Split(raw, ",") {
		add(k)
	}
	return keys
}

func keySet(raw string) map[string]struct{} {
	keys := AnswerKeys(raw)
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
