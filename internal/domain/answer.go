package domain

// AnswerKind discriminates the Answer union.
type AnswerKind int

const (
	AnswerEmpty AnswerKind = iota
	AnswerText
	AnswerScale
)

// Answer is a tagged variant: exactly one of Text, Scale, or Empty. It
// replaces a payload where text and value were both freely optional; a request
// carrying both is rejected at the boundary.
type Answer struct {
	kind  AnswerKind
	text  string
	value int
}

// EmptyAnswer records participation without content (the question was seen
// and dismissed).
func EmptyAnswer() Answer {
	return Answer{kind: AnswerEmpty}
}

// TextAnswer wraps a free-text response.
func TextAnswer(text string) Answer {
	return Answer{kind: AnswerText, text: text}
}

// ScaleAnswer wraps an integer scale response. The nominal range is 0..5 but
// range enforcement is a service option; the scoring policy is total over
// integers.
func ScaleAnswer(value int) Answer {
	return Answer{kind: AnswerScale, value: value}
}

// Kind returns the variant tag.
func (a Answer) Kind() AnswerKind { return a.kind }

// Text returns the free-text response and whether this is a text answer.
func (a Answer) Text() (string, bool) {
	return a.text, a.kind == AnswerText
}

// Scale returns the integer response and whether this is a scale answer.
func (a Answer) Scale() (int, bool) {
	return a.value, a.kind == AnswerScale
}
