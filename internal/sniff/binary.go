package sniff

// IsBinaryText reports whether text holds a control byte in 0x00-0x08 or
// 0x0E-0x1F. TAB, LF, VT, FF and CR (0x09-0x0D) are treated as text.
func IsBinaryText(text string) bool {
	for i := 0; i < len(text); i++ {
		if isUnsafeControl(text[i]) {
			return true
		}
	}
	return false
}

func isUnsafeControl(c byte) bool {
	return c <= 0x08 || (c >= 0x0E && c <= 0x1F)
}
