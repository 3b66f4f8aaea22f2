package model

import (
	"fmt"
	"strconv"
	"strings"
)

// QuestionKind enumerates the question variants an assessment can contain.
type QuestionKind string

const (
	QuestionKindCoding         QuestionKind = "CODING_REFERENCE"
	QuestionKindMultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	QuestionKindOpenText       QuestionKind = "OPEN_TEXT"
)

const (
	DefaultSectionID   = "default"
	DefaultSectionName = "Problem Set"

	placeholderPrompt = "Untitled question"
	judgeProblemURL   = "https://codeforces.com/problemset/problem/%d/%s"
)

// TestInfo is the descriptive header of an assessment.
type TestInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TestDefinition is a loaded assessment. It is read-only for the lifetime of a session.
type TestDefinition struct {
	Info     TestInfo  `json:"test_info"`
	Sections []Section `json:"sections"`
}

// QuestionCount returns the total number of questions across all sections.
func (t *TestDefinition) QuestionCount() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Questions)
	}
	return n
}

// Section is a named, ordered group of questions.
type Section struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// DisplayName returns the section name, falling back to its 1-based position.
func (s Section) DisplayName(position int) string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return "Section " + strconv.Itoa(position+1)
}

// Question is a tagged union over the three question variants.
// Coding is set only for QuestionKindCoding; Options only for QuestionKindMultipleChoice.
type Question struct {
	Kind    QuestionKind     `json:"kind"`
	Prompt  string           `json:"prompt,omitempty"`
	Options []string         `json:"options,omitempty"`
	Coding  *CodingReference `json:"coding,omitempty"`
}

// DisplayPrompt returns the text to show for the question, never empty.
func (q Question) DisplayPrompt() string {
	if q.Kind == QuestionKindCoding && q.Coding != nil {
		if q.Coding.Name != "" {
			return q.Coding.Name
		}
		if id := q.Coding.ProblemID(); id != "" {
			return id
		}
	}
	if strings.TrimSpace(q.Prompt) != "" {
		return q.Prompt
	}
	return placeholderPrompt
}

// CodingReference points at a problem on the external judge.
// It has no candidate-entered answer; scoring happens out of band.
type CodingReference struct {
	ContestID int      `json:"contest_id"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags"`
}

// ProblemID returns the judge's short identifier, e.g. "1520A".
func (c CodingReference) ProblemID() string {
	if c.ContestID == 0 || c.Index == "" {
		return ""
	}
	return strconv.Itoa(c.ContestID) + c.Index
}

// ProblemURL returns the link the candidate opens to solve the problem.
func (c CodingReference) ProblemURL() string {
	if c.ContestID == 0 || c.Index == "" {
		return ""
	}
	return fmt.Sprintf(judgeProblemURL, c.ContestID, c.Index)
}
