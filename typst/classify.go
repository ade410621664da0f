package typst

// KeySet is a set of bibliography entry keys.
type KeySet interface {
	Has(key string) bool
}

// Classify returns a [*Citation] if key is in keys, or a [*Reference]
// otherwise. A nil key set classifies everything as a reference.
func Classify(key string, keys KeySet) Node {
	return classify(key, keys, Position{})
}

func classify(key string, keys KeySet, pos Position) Node {
	if keys != nil && keys.Has(key) {
		return &Citation{Key: key, Pos: pos}
	}

	return &Reference{Key: key, Pos: pos}
}

// keyLen returns the length of the @key token body at the start of s.
// Trailing '.' and ':' are sentence punctuation, not part of the key.
func keyLen(s string) int {
	n := 0
	for n < len(s) && isKeyByte(s[n]) {
		n++
	}

	for n > 0 && (s[n-1] == '.' || s[n-1] == ':') {
		n--
	}

	return n
}

func isKeyByte(c byte) bool {
	return isAlnum(rune(c)) || c == '_' || c == '-' || c == ':' || c == '.'
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
