// ABOUTME: Stream transport: JSON-RPC over a byte stream such as stdin/stdout.
// ABOUTME: Accepts newline-delimited or Content-Length framed messages, strictly in order.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/dispatch"
)

type framing int

const (
	framingNewline framing = iota
	framingContentLength
)

const contentLengthHeader = "content-length:"

// ServeStream reads requests from r and writes responses to w until EOF or
// until ctx is cancelled between frames. Each frame is decoded, dispatched
// and answered before the next frame is read. The stream is trusted; it
// runs as auth.LocalContext and never passes through the Gate.
func (s *Server) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx = auth.WithAuth(ctx, auth.LocalContext())
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	s.logger.Info("stream transport started")
	defer s.logger.Info("stream transport stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, mode, err := s.readFrame(reader)
		if errors.Is(err, io.EOF) && body == nil {
			return nil
		}
		var (
			tooLarge  *frameTooLargeError
			malformed *malformedFrameError
		)
		switch {
		case errors.As(err, &tooLarge):
			s.logger.Warn("frame exceeds size limit", "size", tooLarge.size)
			reply := EncodeError(nil, dispatch.CodeInvalidRequest, "Invalid request: message too large")
			if werr := writeFrame(writer, reply, tooLarge.mode); werr != nil {
				return werr
			}
			continue
		case errors.As(err, &malformed):
			s.logger.Warn("malformed frame header", "reason", malformed.reason)
			reply := EncodeError(nil, dispatch.CodeParseError, "Parse error: "+malformed.reason)
			if werr := writeFrame(writer, reply, framingContentLength); werr != nil {
				return werr
			}
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return fmt.Errorf("reading frame: %w", err)
		}

		if reply := s.respond(ctx, body); reply != nil {
			if werr := writeFrame(writer, reply, mode); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

type frameTooLargeError struct {
	size int64
	mode framing
}

func (e *frameTooLargeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit", e.size)
}

// malformedFrameError is a Content-Length header that cannot be parsed. The
// header block has been consumed, so the stream can resume at the next frame.
type malformedFrameError struct {
	reason string
}

func (e *malformedFrameError) Error() string {
	return e.reason
}

// lineSlack allows a trailing CRLF on a line holding a maximum-size message.
const lineSlack = 2

// readLine reads through the next newline. Bytes past limit are consumed but
// not kept; size reports the full length of the line.
func readLine(r *bufio.Reader, limit int64) (line []byte, size int64, err error) {
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		size += int64(len(chunk))
		if size <= limit+lineSlack {
			line = append(line, chunk...)
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			if size > limit+lineSlack {
				line = nil
			}
			return line, size, err
		}
	}
}

// readFrame returns the next non-blank message. A returned io.EOF with a
// non-nil body means the final frame had no trailing newline.
func (s *Server) readFrame(r *bufio.Reader) ([]byte, framing, error) {
	for {
		line, size, err := readLine(r, s.maxBodyBytes)
		if line == nil && size > 0 {
			return nil, framingNewline, &frameTooLargeError{size: size, mode: framingNewline}
		}
		trimmed := bytes.TrimSpace(line)

		if len(trimmed) == 0 {
			if err != nil {
				return nil, framingNewline, err
			}
			continue
		}

		if hasContentLength(trimmed) {
			if err != nil {
				return nil, framingContentLength, io.ErrUnexpectedEOF
			}
			return s.readContentLengthBody(r, trimmed)
		}

		if int64(len(trimmed)) > s.maxBodyBytes {
			return nil, framingNewline, &frameTooLargeError{size: int64(len(trimmed)), mode: framingNewline}
		}
		return trimmed, framingNewline, err
	}
}

func hasContentLength(line []byte) bool {
	return len(line) >= len(contentLengthHeader) &&
		strings.EqualFold(string(line[:len(contentLengthHeader)]), contentLengthHeader)
}

// readContentLengthBody consumes the remaining header lines up to the blank
// separator, then exactly Content-Length bytes.
func (s *Server) readContentLengthBody(r *bufio.Reader, header []byte) ([]byte, framing, error) {
	for {
		line, _, err := readLine(r, s.maxBodyBytes)
		if err != nil {
			return nil, framingContentLength, io.ErrUnexpectedEOF
		}
		// Oversized header lines come back nil and are skipped
		if line != nil && len(bytes.TrimSpace(line)) == 0 {
			break
		}
	}

	value := strings.TrimSpace(string(header[len(contentLengthHeader):]))
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return nil, framingContentLength, &malformedFrameError{reason: fmt.Sprintf("invalid Content-Length %q", value)}
	}

	if n > s.maxBodyBytes {
		if _, err := io.CopyN(io.Discard, r, n); err != nil {
			return nil, framingContentLength, io.ErrUnexpectedEOF
		}
		return nil, framingContentLength, &frameTooLargeError{size: n, mode: framingContentLength}
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, framingContentLength, io.ErrUnexpectedEOF
	}
	return body, framingContentLength, nil
}

// writeFrame writes reply in the framing the request used and flushes.
func writeFrame(w *bufio.Writer, reply []byte, mode framing) error {
	var err error
	if mode == framingContentLength {
		_, err = fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(reply))
		if err == nil {
			_, err = w.Write(reply)
		}
	} else {
		_, err = w.Write(reply)
		if err == nil {
			err = w.WriteByte('\n')
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
