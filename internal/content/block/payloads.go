package block

import "encoding/json"

// Typed views over canonical payloads, for code that consumes validated blocks.

type Quote struct {
	Text     string `json:"text"`
	Citation string `json:"citation,omitempty"`
}

type Callout struct {
	Variant string `json:"variant"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuizMultipleChoice struct {
	Stem             string       `json:"stem"`
	Options          []QuizOption `json:"options"`
	CorrectOptionIDs []string     `json:"correctOptionIds"`
	AllowShuffle     bool         `json:"allowShuffle"`
	Points           float64      `json:"points"`
	Explanation      string       `json:"explanation,omitempty"`
}

type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type Image struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type Video struct {
	URL      string  `json:"url"`
	Caption  string  `json:"caption,omitempty"`
	StartSec float64 `json:"startSec,omitempty"`
}

// RichText holds a ProseMirror style node tree rooted at a "doc" node.
type RichText struct {
	Doc map[string]any `json:"doc"`
}

// Decode converts a canonical payload into T.
func Decode[T any](payload map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Encode converts a typed payload into canonical form.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
