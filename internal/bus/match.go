package bus

import "strings"

// matchSubject reports whether subject matches pattern, where pattern may
// use "*" to match exactly one dot-separated token and ">" to match the
// rest of the subject (it must be the final token).
func matchSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, pt := range pTokens {
		if pt == ">" {
			return i < len(sTokens)
		}
		if i >= len(sTokens) {
			return false
		}
		if pt == "*" {
			continue
		}
		if pt != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}
