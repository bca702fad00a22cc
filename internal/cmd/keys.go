package cmd

import (
	"bufio"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// keyReader reads single keypresses. On a terminal it switches to raw mode
// for each read; on pipes and files it works line by line.
type keyReader struct {
	in       io.Reader
	fd       int
	terminal bool
	buf      *bufio.Reader

	mu    sync.Mutex
	state *term.State
}

func newKeyReader(in io.Reader) *keyReader {
	k := &keyReader{in: in}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		k.fd = int(f.Fd())
		k.terminal = true
		return k
	}
	k.buf = bufio.NewReader(in)
	return k
}

// ReadKey returns the next key. Off a terminal it skips blank input and
// discards the rest of the line after the key.
func (k *keyReader) ReadKey() (byte, error) {
	if k.terminal {
		return k.readRaw()
	}
	for {
		b, err := k.buf.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if _, err := k.buf.ReadString('\n'); err != nil && err != io.EOF {
			return b, err
		}
		return b, nil
	}
}

// WaitKey blocks until any key is pressed, or a line is entered off a
// terminal. End of input is reported as io.EOF.
func (k *keyReader) WaitKey() error {
	if k.terminal {
		_, err := k.readRaw()
		return err
	}
	line, err := k.buf.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	return nil
}

func (k *keyReader) readRaw() (byte, error) {
	state, err := term.MakeRaw(k.fd)
	if err != nil {
		return 0, err
	}
	k.mu.Lock()
	k.state = state
	k.mu.Unlock()
	defer k.restore()

	var b [1]byte
	if _, err := io.ReadFull(k.in, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Close restores the terminal if a read is still pending in raw mode.
func (k *keyReader) Close() error {
	return k.restore()
}

func (k *keyReader) restore() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == nil {
		return nil
	}
	err := term.Restore(k.fd, k.state)
	k.state = nil
	return err
}
