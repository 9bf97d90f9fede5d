package util

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorf(t *testing.T) {
	codeErr := errors.New("code")
	orig := errors.New("orig")

	err := WrapErrorf(orig, codeErr, "failed at %d", 3)

	assert.True(t, errors.Is(err, codeErr))
	assert.True(t, errors.Is(err, orig))
	assert.Equal(t, "failed at 3: orig", err.Error())

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, codeErr, e.Code())

	noOrig := WrapErrorf(nil, codeErr, "plain")
	assert.Equal(t, "plain", noOrig.Error())
	assert.True(t, errors.Is(noOrig, codeErr))
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("a b\r\nc\nlast"))

	testCases := []string{"a b", "c", "last"}
	for _, want := range testCases {
		got, err := ReadLine(br)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadLine(br)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAbs(t *testing.T) {
	assert.Equal(t, 3, Abs(-3))
	assert.Equal(t, 2.5, Abs(2.5))
	assert.Equal(t, 7, Max(7, 2))
}
