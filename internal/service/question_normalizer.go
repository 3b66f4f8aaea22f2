package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/stemsi/assessment-session/internal/model"
)

// rawRecord is a loosely typed JSON object; any field may be missing or mistyped.
type rawRecord map[string]json.RawMessage

// NormalizeQuestions converts the questions payload into ordered sections.
//
// A non-empty array whose first element has no "questions" field is a legacy
// flat problem list and becomes a single "Problem Set" section. Anything else
// is treated as a list of section records. Malformed entries never fail the
// load; unreadable fields are left empty.
func NormalizeQuestions(raw json.RawMessage) []model.Section {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []model.Section{}
	}
	if len(items) == 0 {
		return []model.Section{}
	}

	first := decodeRecord(items[0])
	if !first.has("questions") {
		return []model.Section{{
			ID:        model.DefaultSectionID,
			Name:      model.DefaultSectionName,
			Questions: normalizeQuestionList(items),
		}}
	}

	sections := make([]model.Section, 0, len(items))
	for i, item := range items {
		rec := decodeRecord(item)

		id := rec.str("id")
		if id == "" {
			id = strconv.Itoa(i)
		}

		var questions []json.RawMessage
		_ = json.Unmarshal(rec["questions"], &questions)

		sections = append(sections, model.Section{
			ID:        id,
			Name:      rec.str("name"),
			Questions: normalizeQuestionList(questions),
		})
	}
	return sections
}

func normalizeQuestionList(items []json.RawMessage) []model.Question {
	out := make([]model.Question, 0, len(items))
	for _, item := range items {
		out = append(out, normalizeQuestion(decodeRecord(item)))
	}
	return out
}

func normalizeQuestion(rec rawRecord) model.Question {
	kind := strings.ToLower(rec.str("type"))

	if kind == "codeforces" || (kind == "" && rec.has("contestId")) {
		data := rec
		if nested := decodeRecord(rec["data"]); len(nested) > 0 {
			data = nested
		}
		return model.Question{
			Kind:   model.QuestionKindCoding,
			Coding: codingReference(data),
		}
	}

	prompt := rec.str("question")
	if prompt == "" {
		prompt = rec.str("text")
	}
	if prompt == "" {
		prompt = rec.str("prompt")
	}

	var options []string
	_ = json.Unmarshal(rec["options"], &options)
	if len(options) > 0 {
		return model.Question{
			Kind:    model.QuestionKindMultipleChoice,
			Prompt:  prompt,
			Options: options,
		}
	}

	return model.Question{
		Kind:   model.QuestionKindOpenText,
		Prompt: prompt,
	}
}

func codingReference(rec rawRecord) *model.CodingReference {
	ref := &model.CodingReference{
		ContestID: rec.integer("contestId"),
		Index:     rec.str("index"),
		Name:      rec.str("name"),
		Tags:      []string{},
	}
	if rec.has("rating") {
		r := rec.integer("rating")
		ref.Rating = &r
	}
	_ = json.Unmarshal(rec["tags"], &ref.Tags)
	if ref.Tags == nil {
		ref.Tags = []string{}
	}
	return ref
}

func decodeRecord(raw json.RawMessage) rawRecord {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rawRecord{}
	}
	return rec
}

// has reports whether the field is present and not null.
func (r rawRecord) has(field string) bool {
	v, ok := r[field]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// str reads a string field; numbers are rendered in decimal.
func (r rawRecord) str(field string) string {
	v, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// integer reads an integer field given either as a number or a numeric string.
func (r rawRecord) integer(field string) int {
	n, err := strconv.Atoi(r.str(field))
	if err != nil {
		return 0
	}
	return n
}
