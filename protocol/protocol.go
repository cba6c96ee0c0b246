// Package protocol implements the line protocol spoken on the RS-485 bus:
// frame reception, parsing, reply formatting and the half-duplex transport.
package protocol

// Version represents the busnode firmware version
const Version = "0.3.0"

// Frame limits
const (
	FrameMaxLen = 250 // Raw frame buffer capacity, delimiters included
	TokenMaxLen = 15  // Maximum command or argument length
	ArgsMax     = 5   // Maximum number of arguments per frame

	// Largest numeric token accepted for unsigned byte values
	Uint8MaxDigits = 3
)

// Wire delimiters
const (
	RequestStart = ':' // Master to node
	ReplyStart   = ';' // Node to master
	Separator    = ' '
	LineCR       = '\r'
	LineEnd      = '\n'
)

// BroadcastAddr addresses every node on the bus
const BroadcastAddr = 0

// Terminator ends every frame on the wire
const Terminator = "\r\n"
