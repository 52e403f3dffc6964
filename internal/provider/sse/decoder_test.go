package sse_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/provider/sse"
)

func TestDecoder_Next(t *testing.T) {
	t.Run("should decode a simple data event", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader("data: {\"delta\":\"hi\"}\n\n"))

		ev, err := d.Next()

		require.NoError(t, err)
		require.Empty(t, ev.Type)
		require.Equal(t, `{"delta":"hi"}`, ev.Data)
	})

	t.Run("should decode typed events", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader("event: message_start\ndata: {}\n\n"))

		ev, err := d.Next()

		require.NoError(t, err)
		require.Equal(t, "message_start", ev.Type)
		require.Equal(t, "{}", ev.Data)
	})

	t.Run("should decode multiple events in order", func(t *testing.T) {
		input := "data: one\n\ndata: two\n\ndata: three\n\n"
		d := sse.NewDecoder(strings.NewReader(input))

		var seen []string
		for {
			ev, err := d.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			seen = append(seen, ev.Data)
		}

		require.Equal(t, []string{"one", "two", "three"}, seen)
	})

	t.Run("should join multi-line data with newlines", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader("data: first\ndata: second\n\n"))

		ev, err := d.Next()

		require.NoError(t, err)
		require.Equal(t, "first\nsecond", ev.Data)
	})

	t.Run("should skip comment keep-alives", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader(": ping\n\ndata: real\n\n"))

		ev, err := d.Next()

		require.NoError(t, err)
		require.Equal(t, "real", ev.Data)
	})

	t.Run("should flush a trailing unterminated event", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader("data: last"))

		ev, err := d.Next()
		require.NoError(t, err)
		require.Equal(t, "last", ev.Data)

		_, err = d.Next()
		require.Equal(t, io.EOF, err)
	})

	t.Run("should return EOF for an empty stream", func(t *testing.T) {
		d := sse.NewDecoder(strings.NewReader(""))

		_, err := d.Next()

		require.Equal(t, io.EOF, err)
	})
}
