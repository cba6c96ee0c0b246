package protocol

// Frame is one parsed bus message. The parser overwrites it for every raw
// frame; handlers must copy anything they want to keep.
type Frame struct {
	Addr    uint8
	Command string
	Args    [ArgsMax]string
	NumArgs uint8
}

// Reset clears the frame
func (f *Frame) Reset() {
	f.Addr = 0
	f.Command = ""
	for i := range f.Args {
		f.Args[i] = ""
	}
	f.NumArgs = 0
}

// IsBroadcast reports whether the frame is addressed to every node
func (f *Frame) IsBroadcast() bool {
	return f.Addr == BroadcastAddr
}

// Arg returns argument i, or "" when the frame carries fewer arguments
func (f *Frame) Arg(i int) string {
	if i < 0 || i >= int(f.NumArgs) {
		return ""
	}
	return f.Args[i]
}

// Arguments returns the ordered argument list
func (f *Frame) Arguments() []string {
	return f.Args[:f.NumArgs]
}

// ParseFrame parses a raw request frame (":ADDR CMD ARGS\r\n") into f.
// On error f is left empty; no partially parsed frame is ever returned.
func ParseFrame(raw []byte, f *Frame) error {
	return parse(raw, RequestStart, f)
}

// ParseReply parses a raw reply frame (";ADDR PAYLOAD\r\n") into f.
// Replies share the request grammar, so the payload's first token lands in
// Command and the rest in Args.
func ParseReply(raw []byte, f *Frame) error {
	return parse(raw, ReplyStart, f)
}

func parse(raw []byte, start byte, f *Frame) error {
	f.Reset()
	if err := parseInto(raw, start, f); err != nil {
		f.Reset()
		return err
	}
	return nil
}

func parseInto(raw []byte, start byte, f *Frame) error {
	if len(raw) == 0 || raw[0] != start {
		return ErrMissingStart
	}
	buf := raw[1:]

	addr, n, err := parseUint8(buf)
	if err != nil || n == 0 {
		return ErrBadAddress
	}
	f.Addr = addr
	buf = buf[n:]

	if len(buf) == 0 || buf[0] != Separator {
		return ErrMissingSeparator
	}
	buf = buf[1:]

	tok, buf, err := nextToken(buf)
	if err != nil {
		return err
	}
	if len(tok) == 0 {
		return ErrMissingCommand
	}
	f.Command = string(tok)

	// buf always starts at the delimiter that ended the previous token
	for {
		if len(buf) == 0 {
			return ErrMissingTerminator
		}
		switch buf[0] {
		case LineCR:
			if len(buf) < 2 || buf[1] != LineEnd {
				return ErrMissingTerminator
			}
			return nil
		case LineEnd:
			return nil
		}

		buf = buf[1:]
		if len(buf) > 0 && (buf[0] == LineCR || buf[0] == LineEnd) {
			// single trailing space before the terminator
			continue
		}
		if f.NumArgs == ArgsMax {
			return ErrTooManyArgs
		}
		tok, buf, err = nextToken(buf)
		if err != nil {
			return err
		}
		if len(tok) == 0 {
			return ErrEmptyToken
		}
		f.Args[f.NumArgs] = string(tok)
		f.NumArgs++
	}
}

// nextToken splits buf at the first delimiter
func nextToken(buf []byte) (tok, rest []byte, err error) {
	i := 0
	for i < len(buf) && !isDelimiter(buf[i]) {
		if i == TokenMaxLen {
			return nil, nil, ErrTokenTooLong
		}
		i++
	}
	return buf[:i], buf[i:], nil
}

func isDelimiter(c byte) bool {
	return c == Separator || c == LineCR || c == LineEnd
}

func checkToken(tok string) error {
	if len(tok) == 0 {
		return ErrEmptyToken
	}
	if len(tok) > TokenMaxLen {
		return ErrTokenTooLong
	}
	for i := 0; i < len(tok); i++ {
		if isDelimiter(tok[i]) {
			return ErrInvalidToken
		}
	}
	return nil
}

// AppendFrame encodes a frame with the given start delimiter, applying the
// same limits the parser enforces. The longest legal frame is well under
// FrameMaxLen, so token checks are enough to keep it receivable.
func AppendFrame(dst []byte, start byte, addr uint8, cmd string, args ...string) ([]byte, error) {
	if cmd == "" {
		return dst, ErrMissingCommand
	}
	if err := checkToken(cmd); err != nil {
		return dst, err
	}
	if len(args) > ArgsMax {
		return dst, ErrTooManyArgs
	}
	for _, arg := range args {
		if err := checkToken(arg); err != nil {
			return dst, err
		}
	}

	out := append(dst, start)
	out = AppendUint8(out, addr)
	out = append(out, Separator)
	out = append(out, cmd...)
	for _, arg := range args {
		out = append(out, Separator)
		out = append(out, arg...)
	}
	return append(out, Terminator...), nil
}

// AppendRequest encodes a master request addressed to addr
func AppendRequest(dst []byte, addr uint8, cmd string, args ...string) ([]byte, error) {
	return AppendFrame(dst, RequestStart, addr, cmd, args...)
}
