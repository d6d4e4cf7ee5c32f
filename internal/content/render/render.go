package render

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"lessonkit/internal/content/block"
	"lessonkit/internal/content/lessondoc"
)

const excerptLimit = 100

// ViewModel is the display-ready form of one block.
type ViewModel struct {
	BlockID string     `json:"blockId"`
	Kind    block.Kind `json:"kind"`
	Data    any        `json:"data"`
}

type RichTextView struct {
	Doc     map[string]any `json:"doc"`
	Excerpt string         `json:"excerpt"`
}

type QuoteView struct {
	Text     string `json:"text"`
	Citation string `json:"citation,omitempty"`
}

type CalloutView struct {
	Variant string `json:"variant"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body"`
}

type QuizOptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuizView never carries the answer key.
type QuizView struct {
	Stem       string           `json:"stem"`
	Options    []QuizOptionView `json:"options"`
	Shuffled   bool             `json:"shuffled"`
	Points     float64          `json:"points"`
	SelectMode string           `json:"selectMode"`
}

type HeadingView struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type MediaView struct {
	URL      string  `json:"url"`
	Alt      string  `json:"alt,omitempty"`
	Caption  string  `json:"caption,omitempty"`
	StartSec float64 `json:"startSec,omitempty"`
}

type DividerView struct{}

// GenericView is used for registered kinds that have no dedicated projector.
type GenericView struct {
	Payload map[string]any `json:"payload"`
}

// Func projects one validated block.
type Func func(p *Projector, b block.Block) (any, error)

// Projector maps lesson documents to view models. It holds no mutable state
// after construction and may be shared between goroutines.
type Projector struct {
	reg     *block.Registry
	funcs   map[block.Kind]Func
	shuffle func(n int, swap func(i, j int))
}

type Option func(*Projector)

// WithShuffle replaces the source used to reorder quiz options.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(p *Projector) { p.shuffle = fn }
}

// WithoutShuffle keeps quiz options in authored order.
func WithoutShuffle() Option {
	return WithShuffle(nil)
}

// WithFunc registers or overrides the projector for kind.
func WithFunc(kind block.Kind, fn Func) Option {
	return func(p *Projector) { p.funcs[kind] = fn }
}

func NewProjector(reg *block.Registry, opts ...Option) *Projector {
	p := &Projector{
		reg: reg,
		funcs: map[block.Kind]Func{
			block.KindTextRich:           projectRichText,
			block.KindQuote:              projectQuote,
			block.KindCallout:            projectCallout,
			block.KindQuizMultipleChoice: projectQuiz,
			block.KindHeading:            projectHeading,
			block.KindImage:              projectMedia,
			block.KindVideo:              projectMedia,
			block.KindDivider:            func(*Projector, block.Block) (any, error) { return DividerView{}, nil },
		},
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns one view model per block, in document order. A single
// block of an unregistered kind fails the whole projection.
func (p *Projector) Project(doc lessondoc.Document) ([]ViewModel, error) {
	out := make([]ViewModel, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if _, err := p.reg.SchemaFor(b.Kind); err != nil {
			return nil, err
		}
		fn, ok := p.funcs[b.Kind]
		if !ok {
			fn = projectGeneric
		}
		data, err := fn(p, b)
		if err != nil {
			return nil, fmt.Errorf("project block %s: %w", b.ID, err)
		}
		out = append(out, ViewModel{BlockID: b.ID, Kind: b.Kind, Data: data})
	}
	return out, nil
}

func projectGeneric(_ *Projector, b block.Block) (any, error) {
	payload := make(map[string]any, len(b.Payload))
	maps.Copy(payload, b.Payload)
	return GenericView{Payload: payload}, nil
}

func projectRichText(_ *Projector, b block.Block) (any, error) {
	rt, err := block.Decode[block.RichText](b.Payload)
	if err != nil {
		return nil, err
	}
	return RichTextView{Doc: rt.Doc, Excerpt: Excerpt(rt.Doc)}, nil
}

func projectQuote(_ *Projector, b block.Block) (any, error) {
	q, err := block.Decode[block.Quote](b.Payload)
	if err != nil {
		return nil, err
	}
	return QuoteView(q), nil
}

func projectCallout(_ *Projector, b block.Block) (any, error) {
	c, err := block.Decode[block.Callout](b.Payload)
	if err != nil {
		return nil, err
	}
	return CalloutView(c), nil
}

func projectQuiz(p *Projector, b block.Block) (any, error) {
	q, err := block.Decode[block.QuizMultipleChoice](b.Payload)
	if err != nil {
		return nil, err
	}
	opts := make([]QuizOptionView, len(q.Options))
	for i, o := range q.Options {
		opts[i] = QuizOptionView(o)
	}
	shuffled := q.AllowShuffle && p.shuffle != nil
	if shuffled {
		p.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	}
	correct := make(map[string]bool, len(q.CorrectOptionIDs))
	for _, id := range q.CorrectOptionIDs {
		correct[id] = true
	}
	mode := "single"
	if len(correct) > 1 {
		mode = "multiple"
	}
	return QuizView{Stem: q.Stem, Options: opts, Shuffled: shuffled, Points: q.Points, SelectMode: mode}, nil
}

func projectHeading(_ *Projector, b block.Block) (any, error) {
	h, err := block.Decode[block.Heading](b.Payload)
	if err != nil {
		return nil, err
	}
	return HeadingView(h), nil
}

func projectMedia(_ *Projector, b block.Block) (any, error) {
	if b.Kind == block.KindVideo {
		v, err := block.Decode[block.Video](b.Payload)
		if err != nil {
			return nil, err
		}
		return MediaView{URL: v.URL, Caption: v.Caption, StartSec: v.StartSec}, nil
	}
	img, err := block.Decode[block.Image](b.Payload)
	if err != nil {
		return nil, err
	}
	return MediaView{URL: img.URL, Alt: img.Alt, Caption: img.Caption}, nil
}

// Excerpt flattens the text nodes of a rich text tree into a short preview.
// Runs of whitespace collapse to one space; longer text is cut on a rune
// boundary and marked with "...".
func Excerpt(doc map[string]any) string {
	var w excerptWriter
	w.collect(doc)
	res := w.sb.String()
	if len(res) <= excerptLimit {
		return res
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(res[cut]) {
		cut--
	}
	return strings.TrimSpace(res[:cut]) + "..."
}

// excerptWriter accumulates collapsed text and stops once it passes the limit.
type excerptWriter struct {
	sb    strings.Builder
	space bool
}

func (w *excerptWriter) done() bool { return w.sb.Len() > excerptLimit }

func (w *excerptWriter) write(text string) {
	if text == "" {
		return
	}
	if r, _ := utf8.DecodeRuneInString(text); unicode.IsSpace(r) {
		w.space = true
	}
	for _, word := range strings.Fields(text) {
		if w.done() {
			return
		}
		if w.space && w.sb.Len() > 0 {
			w.sb.WriteByte(' ')
		}
		w.sb.WriteString(word)
		w.space = true
	}
	r, _ := utf8.DecodeLastRuneInString(text)
	w.space = unicode.IsSpace(r)
}

func (w *excerptWriter) collect(node map[string]any) {
	if w.done() {
		return
	}
	if text, ok := node["text"].(string); ok {
		w.write(text)
	}
	children, _ := node["content"].([]any)
	for _, c := range children {
		if child, ok := c.(map[string]any); ok {
			w.collect(child)
		}
	}
	if t, _ := node["type"].(string); t == "paragraph" || t == "heading" || t == "listItem" {
		w.space = true
	}
}
