package analysis

import (
	"iter"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// maxTokenLength caps the byte length of a Standard token; longer segments
// are skipped.
const maxTokenLength = 255

// StandardTokenizer segments text into words following Unicode UAX#29 and
// keeps segments that contain a letter or a digit. Input is NFC-normalized
// first; offsets refer to the normalized text.
type StandardTokenizer struct{}

func (StandardTokenizer) Tokenize(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		input := text
		if !norm.NFC.IsNormalString(input) {
			input = norm.NFC.String(input)
		}
		segments := words.FromString(input)
		offset := 0
		for segments.Next() {
			seg := segments.Value()
			start := offset
			offset += len(seg)
			if len(seg) > maxTokenLength || !wordLike(seg) {
				continue
			}
			if !yield(Token{Text: seg, Start: start, End: offset, PosInc: 1}) {
				return
			}
		}
	}
}

func wordLike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// LetterTokenizer emits maximal runs of Unicode letters.
type LetterTokenizer struct{}

func (LetterTokenizer) Tokenize(text string) iter.Seq[Token] {
	return runTokenizer(text, unicode.IsLetter)
}

// WhitespaceTokenizer splits on Unicode whitespace.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) iter.Seq[Token] {
	return runTokenizer(text, func(r rune) bool { return !unicode.IsSpace(r) })
}

// KeywordTokenizer emits the whole input as a single token.
type KeywordTokenizer struct{}

func (KeywordTokenizer) Tokenize(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		if text == "" {
			return
		}
		yield(Token{Text: text, Start: 0, End: len(text), PosInc: 1})
	}
}

// runTokenizer emits maximal runs of runes accepted by keep.
func runTokenizer(text string, keep func(rune) bool) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		start := -1
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			if r == utf8.RuneError && size <= 1 {
				// invalid byte ends the current run
				if start >= 0 {
					if !yield(Token{Text: text[start:i], Start: start, End: i, PosInc: 1}) {
						return
					}
					start = -1
				}
				i++
				continue
			}
			if keep(r) {
				if start < 0 {
					start = i
				}
			} else if start >= 0 {
				if !yield(Token{Text: text[start:i], Start: start, End: i, PosInc: 1}) {
					return
				}
				start = -1
			}
			i += size
		}
		if start >= 0 {
			yield(Token{Text: text[start:], Start: start, End: len(text), PosInc: 1})
		}
	}
}
