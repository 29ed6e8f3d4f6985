package iox

import (
	"errors"
	"testing"
)

// errCloser records that Close was called and returns a configured error.
type errCloser struct {
	closed bool
	err    error
}

func (c *errCloser) Close() error {
	c.closed = true
	return c.err
}

func TestDiscardClose(t *testing.T) {
	c := &errCloser{err: errors.New("close failed")}
	DiscardClose(c)
	if !c.closed {
		t.Error("DiscardClose did not call Close")
	}
}

func TestCloseFunc(t *testing.T) {
	c := &errCloser{}
	fn := CloseFunc(c)
	if c.closed {
		t.Fatal("CloseFunc closed eagerly")
	}
	fn()
	if !c.closed {
		t.Error("returned func did not call Close")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("flush failed")
	})
	if !called {
		t.Error("DiscardErr did not call fn")
	}
}
