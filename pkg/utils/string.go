package utils

const MaxIndexNameLen = 128

// ValidIndexName reports whether name can be used as a tree name. Names become
// blob keys, so separators and dot-only names are rejected.
func ValidIndexName(name string) bool {
	if name == "" || len(name) > MaxIndexNameLen || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
