package rwm

const asciiReplacement = '?'

// decodeASCII maps every byte to one character, NULs included
func decodeASCII(data []byte) string {
	buf := make([]byte, len(data))
	for i, b := range data {
		if b > 0x7f {
			b = asciiReplacement
		}
		buf[i] = b
	}
	return string(buf)
}

// encodeASCII maps every rune to one byte
func encodeASCII(s string) []byte {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0x7f {
			r = asciiReplacement
		}
		buf = append(buf, byte(r))
	}
	return buf
}
