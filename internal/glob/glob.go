// Package glob matches host names against Ant style patterns where '*'
// stands for zero or more characters. There are no other metacharacters.
package glob

import "unicode"

// Match reports whether s matches pattern.
func Match(pattern, s string, caseSensitive bool) bool {
	pat, str := []rune(pattern), []rune(s)
	eq := func(a, b rune) bool {
		if caseSensitive {
			return a == b
		}
		return a == b || unicode.ToUpper(a) == unicode.ToUpper(b)
	}

	hasStar := false
	for _, c := range pat {
		if c == '*' {
			hasStar = true
			break
		}
	}
	if !hasStar {
		if len(pat) != len(str) {
			return false
		}
		for i := range pat {
			if !eq(pat[i], str[i]) {
				return false
			}
		}
		return true
	}
	if len(pat) == 1 {
		return true
	}

	patStart, patEnd := 0, len(pat)-1
	strStart, strEnd := 0, len(str)-1

	// literal prefix
	for pat[patStart] != '*' && strStart <= strEnd {
		if !eq(pat[patStart], str[strStart]) {
			return false
		}
		patStart++
		strStart++
	}
	if strStart > strEnd {
		return onlyStars(pat[patStart : patEnd+1])
	}

	// literal suffix
	for pat[patEnd] != '*' && strStart <= strEnd {
		if !eq(pat[patEnd], str[strEnd]) {
			return false
		}
		patEnd--
		strEnd--
	}
	if strStart > strEnd {
		return onlyStars(pat[patStart : patEnd+1])
	}

	// patStart and patEnd both point at a '*' from here on
	for patStart != patEnd && strStart <= strEnd {
		next := -1
		for i := patStart + 1; i <= patEnd; i++ {
			if pat[i] == '*' {
				next = i
				break
			}
		}
		if next == patStart+1 {
			patStart++
			continue
		}
		segment := pat[patStart+1 : next]
		found := -1
	search:
		for i := 0; i <= (strEnd-strStart+1)-len(segment); i++ {
			for j := range segment {
				if !eq(segment[j], str[strStart+i+j]) {
					continue search
				}
			}
			found = strStart + i
			break
		}
		if found == -1 {
			return false
		}
		patStart = next
		strStart = found + len(segment)
	}
	return onlyStars(pat[patStart : patEnd+1])
}

func onlyStars(p []rune) bool {
	for _, c := range p {
		if c != '*' {
			return false
		}
	}
	return true
}
