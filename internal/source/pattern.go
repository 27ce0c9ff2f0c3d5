package source

// MatchAddress matches an OSC address against a pattern. '*' matches any run
// of characters within one path segment and '?' matches a single character;
// neither crosses '/'. Matching does not allocate.
func MatchAddress(pattern, addr string) bool {
	p, a := 0, 0
	starP, starA := -1, -1
	for a < len(addr) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP, starA = p, a
			p++
		case p < len(pattern) && (pattern[p] == addr[a] || (pattern[p] == '?' && addr[a] != '/')):
			p++
			a++
		case starP >= 0 && addr[starA] != '/':
			// let the last star swallow one more character
			starA++
			p, a = starP+1, starA
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
