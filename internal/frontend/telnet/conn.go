package telnet

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Telnet command bytes (RFC 854) the console sends or must skip on input.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	OptSuppressGoAhead byte = 3
)

// MaxLineLength bounds one input line; longer input is truncated.
const MaxLineLength = 512

// Conn is a line-oriented telnet connection. Writes are serialized so the
// notification pump and the command loop can share it.
type Conn struct {
	raw    net.Conn
	in     *bufio.Reader
	writeM sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw. A zero timeout disables that deadline.
//
// Precondition: raw must be an open connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		in:           bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate asks the client to suppress go-ahead.
func (c *Conn) Negotiate() error {
	return c.write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine returns the next input line without its terminator. Telnet
// commands and control characters other than tab are dropped, and the
// result is trimmed of surrounding spaces.
//
// Postcondition: On error the partial line read so far is returned with it.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	var line strings.Builder
	for {
		b, err := c.in.ReadByte()
		if err != nil {
			return strings.TrimSpace(line.String()), err
		}
		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return strings.TrimSpace(line.String()), err
			}
		case b == '\n':
			return strings.TrimSpace(line.String()), nil
		case b == '\r':
			if next, err := c.in.Peek(1); err == nil && next[0] == '\n' {
				_, _ = c.in.ReadByte()
			}
			return strings.TrimSpace(line.String()), nil
		case b < 32 && b != '\t':
		case line.Len() < MaxLineLength:
			line.WriteByte(b)
		}
	}
}

// skipCommand consumes the rest of a command whose IAC was already read.
func (c *Conn) skipCommand() error {
	cmd, err := c.in.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err = c.in.ReadByte()
		return err
	case SB:
		var prev byte
		for {
			b, err := c.in.ReadByte()
			if err != nil {
				return err
			}
			if prev == IAC && b == SE {
				return nil
			}
			prev = b
		}
	}
	return nil
}

// WriteLine writes text followed by CRLF.
func (c *Conn) WriteLine(text string) error {
	return c.write([]byte(text + "\r\n"))
}

// WritePrompt writes text with no line terminator.
func (c *Conn) WritePrompt(text string) error {
	return c.write([]byte(text))
}

// Printf formats a line and writes it with CRLF.
func (c *Conn) Printf(format string, args ...any) error {
	return c.WriteLine(fmt.Sprintf(format, args...))
}

func (c *Conn) write(data []byte) error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the underlying connection. ReadLine blocked in another
// goroutine returns an error.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
