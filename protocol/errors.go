package protocol

import "errors"

var (
	// ErrMissingStart indicates the frame did not begin with its start delimiter.
	ErrMissingStart = errors.New("missing start delimiter")
	// ErrBadAddress indicates the address field is not a decimal 0-255.
	ErrBadAddress = errors.New("malformed address")
	// ErrMissingSeparator indicates no space followed the address.
	ErrMissingSeparator = errors.New("missing separator after address")
	// ErrMissingCommand indicates the command token is empty.
	ErrMissingCommand = errors.New("missing command")
	// ErrEmptyToken indicates two separators in a row.
	ErrEmptyToken = errors.New("empty token")
	// ErrTokenTooLong indicates a command or argument longer than TokenMaxLen.
	ErrTokenTooLong = errors.New("token too long")
	// ErrTooManyArgs indicates more than ArgsMax arguments.
	ErrTooManyArgs = errors.New("too many arguments")
	// ErrMissingTerminator indicates the frame did not end with a line terminator.
	ErrMissingTerminator = errors.New("missing terminator")
	// ErrInvalidToken indicates a token containing a delimiter byte.
	ErrInvalidToken = errors.New("token contains a delimiter")
	// ErrReplyTooLong indicates a reply that does not fit the reply buffer.
	ErrReplyTooLong = errors.New("reply too long")

	// ErrNumberTooLong indicates more digits than the value type can hold.
	ErrNumberTooLong = errors.New("number has too many digits")
	// ErrNumberRange indicates a value outside the target type's range.
	ErrNumberRange = errors.New("number out of range")
)
