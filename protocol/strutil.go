package protocol

// Numeric helpers for the bus wire format. They avoid strconv and fmt so the
// firmware image stays small, and they never wrap on overflow.

type digits interface {
	~string | ~[]byte
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// parseUint8 reads leading decimal digits from s. It stops at the first
// non-digit and returns the number of bytes consumed.
func parseUint8[T digits](s T) (uint8, int, error) {
	var v uint16
	n := 0
	for n < len(s) && isDigit(s[n]) {
		if n == Uint8MaxDigits {
			return 0, n, ErrNumberTooLong
		}
		v = v*10 + uint16(s[n]-'0')
		n++
	}
	if v > 0xFF {
		return 0, n, ErrNumberRange
	}
	return uint8(v), n, nil
}

// ParseUint8 parses the leading digits of s as an unsigned byte.
// At most three digits are accepted; a fourth digit or a value above 255
// yields an error and a zero value.
func ParseUint8(s string) (uint8, int, error) {
	return parseUint8(s)
}

// ParseInt8 parses an optionally negative decimal from the start of s.
func ParseInt8(s string) (int8, int, error) {
	neg := len(s) > 0 && s[0] == '-'
	body := s
	if neg {
		body = s[1:]
	}

	var v int16
	n := 0
	for n < len(body) && isDigit(body[n]) {
		if n == Uint8MaxDigits {
			return 0, n, ErrNumberTooLong
		}
		v = v*10 + int16(body[n]-'0')
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	if neg {
		v = -v
		n++
	}
	if v < -128 || v > 127 {
		return 0, n, ErrNumberRange
	}
	return int8(v), n, nil
}

// AtoU8 converts a handler argument to a byte, treating any error as zero.
func AtoU8(s string) uint8 {
	v, _, err := ParseUint8(s)
	if err != nil {
		return 0
	}
	return v
}

// AtoI8 converts a handler argument to a signed byte, treating any error as zero.
func AtoI8(s string) int8 {
	v, _, err := ParseInt8(s)
	if err != nil {
		return 0
	}
	return v
}

// AppendUint8 appends the decimal form of n to dst
func AppendUint8(dst []byte, n uint8) []byte {
	if n >= 100 {
		dst = append(dst, '0'+n/100)
	}
	if n >= 10 {
		dst = append(dst, '0'+(n/10)%10)
	}
	return append(dst, '0'+n%10)
}

// AppendInt8 appends the decimal form of n to dst, with a leading '-' when negative
func AppendInt8(dst []byte, n int8) []byte {
	if n < 0 {
		dst = append(dst, '-')
		// -128 has no positive int8 counterpart
		return AppendUint8(dst, uint8(-int16(n)))
	}
	return AppendUint8(dst, uint8(n))
}

// FormatUint8 returns the decimal form of n
func FormatUint8(n uint8) string {
	var buf [3]byte
	return string(AppendUint8(buf[:0], n))
}

// FormatInt8 returns the decimal form of n
func FormatInt8(n int8) string {
	var buf [4]byte
	return string(AppendInt8(buf[:0], n))
}
