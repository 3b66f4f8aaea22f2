package model

import (
	"encoding/json"
	"strconv"
)

// AnswerKey addresses a question by section and position.
type AnswerKey struct {
	SectionID string
	Index     int
}

// String returns the wire form "<sectionId>_<index>".
func (k AnswerKey) String() string {
	return k.SectionID + "_" + strconv.Itoa(k.Index)
}

// AnswerMap holds the candidate's current answers. Absence means unanswered.
type AnswerMap map[AnswerKey]string

// Clone returns an independent copy.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Wire converts the map to the string-keyed form used by the submission endpoint.
func (m AnswerMap) Wire() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k.String()] = v
	}
	return out
}

// MarshalJSON encodes the map in its wire form.
func (m AnswerMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Wire())
}
