package analysis

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// Lowercase lower-cases every token.
func Lowercase() Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			for tok := range in {
				tok.Text = strings.ToLower(tok.Text)
				if !yield(tok) {
					return
				}
			}
		}
	})
}

// Stop drops tokens found in set. The position increment of a dropped
// token is added to the next emitted token so phrase positions stay
// aligned with the original text.
func Stop(set StopSet) Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			skipped := 0
			for tok := range in {
				if set.Contains(tok.Text) {
					skipped += tok.PosInc
					continue
				}
				tok.PosInc += skipped
				skipped = 0
				if !yield(tok) {
					return
				}
			}
		}
	})
}

// PorterStem reduces English words to their Snowball (Porter2) stem.
// The stemmer lower-cases its input.
func PorterStem() Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			for tok := range in {
				if stemmed := english.Stem(tok.Text, true); stemmed != "" {
					tok.Text = stemmed
				}
				if !yield(tok) {
					return
				}
			}
		}
	})
}

// Capitalization upper-cases the first rune of each token and lower-cases
// the rest.
func Capitalization() Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			for tok := range in {
				tok.Text = capitalize(tok.Text)
				if !yield(tok) {
					return
				}
			}
		}
	})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Synonym emits each token followed by its synonyms, stacked on the same
// position.
func Synonym(synonyms map[string][]string) Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			for tok := range in {
				if !yield(tok) {
					return
				}
				for _, syn := range synonyms[tok.Text] {
					if syn == tok.Text {
						continue
					}
					stacked := tok
					stacked.Text = syn
					stacked.PosInc = 0
					if !yield(stacked) {
						return
					}
				}
			}
		}
	})
}

// Length drops tokens whose rune count is outside [min, max]. A max of zero
// means no upper bound.
func Length(minLen, maxLen int) Filter {
	return FilterFunc(func(in iter.Seq[Token]) iter.Seq[Token] {
		return func(yield func(Token) bool) {
			skipped := 0
			for tok := range in {
				n := utf8.RuneCountInString(tok.Text)
				if n < minLen || (maxLen > 0 && n > maxLen) {
					skipped += tok.PosInc
					continue
				}
				tok.PosInc += skipped
				skipped = 0
				if !yield(tok) {
					return
				}
			}
		}
	})
}
