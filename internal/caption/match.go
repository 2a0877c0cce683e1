package caption

import "strings"

// FindWord returns the half-open span of the first occurrence of phrase in
// text that is not immediately preceded or followed by a word character.
// ok is false when there is no such occurrence or phrase is empty.
func FindWord(text, phrase string) (start, end int, ok bool) {
	if phrase == "" {
		return 0, 0, false
	}
	from := 0
	for from <= len(text)-len(phrase) {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return 0, 0, false
		}
		start = from + i
		end = start + len(phrase)
		if wordBoundary(text, start, end, phrase) {
			return start, end, true
		}
		from = start + 1
	}
	return 0, 0, false
}

// ContainsWord reports whether phrase occurs in text as a whole-word match.
func ContainsWord(text, phrase string) bool {
	_, _, ok := FindWord(text, phrase)
	return ok
}

// wordBoundary mirrors a \b...\b regular expression: a boundary is required
// only where the phrase itself starts or ends with a word character.
func wordBoundary(text string, start, end int, phrase string) bool {
	if IsWordByte(phrase[0]) && start > 0 && IsWordByte(text[start-1]) {
		return false
	}
	if !IsWordByte(phrase[0]) && (start == 0 || !IsWordByte(text[start-1])) {
		return false
	}
	last := phrase[len(phrase)-1]
	if IsWordByte(last) && end < len(text) && IsWordByte(text[end]) {
		return false
	}
	if !IsWordByte(last) && (end == len(text) || !IsWordByte(text[end])) {
		return false
	}
	return true
}
