package converter

import "bytes"

// rulesLen returns the length of the buffer necessary to write rules, each
// followed by a newline.
func rulesLen(rules []string) (l int) {
	for _, r := range rules {
		l += len(r) + len("\n")
	}

	return l
}

// rulesData returns rules as the input of the converter, one rule per line.
// It returns nil if there are no rules.
func rulesData(rules []string) (b []byte) {
	l := rulesLen(rules)
	if l == 0 {
		return nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, l))
	for _, r := range rules {
		_, _ = buf.WriteString(r)
		_ = buf.WriteByte('\n')
	}

	return buf.Bytes()
}
