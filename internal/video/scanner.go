package video

import (
	"bytes"
	"errors"
)

// JPEG markers.
var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

var (
	headerEnd = []byte("\r\n\r\n")
	partTail  = []byte("\r\n--")
	crlf      = []byte("\r\n")
)

// maxBuffered bounds how much unframed data the scanner holds.
const maxBuffered = 4 << 20

var errFrameTooLarge = errors.New("camera frame exceeds buffer limit")

// frameScanner cuts JPEG payloads out of a multipart body. Camera firmware
// is lax about part headers, so it looks for the delimiter, the blank line
// after the part headers and the JPEG start marker instead of parsing MIME.
type frameScanner struct {
	delim []byte
	buf   []byte
}

func newFrameScanner(boundary string) *frameScanner {
	return &frameScanner{delim: []byte("--" + boundary)}
}

// feed appends chunk and returns every frame completed by it.
func (s *frameScanner) feed(chunk []byte) ([][]byte, error) {
	s.buf = append(s.buf, chunk...)

	var frames [][]byte
	for {
		start := bytes.Index(s.buf, s.delim)
		if start == -1 {
			// keep a possible partial delimiter
			if keep := len(s.delim) - 1; len(s.buf) > keep {
				s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
			}
			return frames, nil
		}
		if start > 0 {
			s.buf = append(s.buf[:0], s.buf[start:]...)
		}

		frame, rest, ok := s.cut()
		if !ok {
			if len(s.buf) > maxBuffered {
				s.buf = s.buf[:0]
				return frames, errFrameTooLarge
			}
			return frames, nil
		}
		if len(frame) > 0 {
			frames = append(frames, frame)
		}
		s.buf = append(s.buf[:0], s.buf[rest:]...)
	}
}

// cut extracts the part starting at s.buf[0]. rest is the offset of the next
// part. ok is false when more data is needed.
func (s *frameScanner) cut() (frame []byte, rest int, ok bool) {
	end := bytes.Index(s.buf[len(s.delim):], s.delim)
	if end == -1 {
		// Next delimiter not seen yet: accept a part closed by CRLF "--"
		// as long as a JPEG has started.
		hdr := bytes.Index(s.buf, headerEnd)
		if hdr == -1 {
			return nil, 0, false
		}
		soi := bytes.Index(s.buf[hdr+len(headerEnd):], jpegSOI)
		if soi == -1 {
			return nil, 0, false
		}
		soi += hdr + len(headerEnd)
		tail := bytes.Index(s.buf[soi:], partTail)
		if tail == -1 {
			return nil, 0, false
		}
		tail += soi
		return clone(s.buf[soi:tail]), tail, true
	}
	end += len(s.delim)

	hdr := bytes.Index(s.buf[:end], headerEnd)
	if hdr == -1 {
		return nil, end, true
	}
	soi := bytes.Index(s.buf[hdr:end], jpegSOI)
	if soi == -1 {
		return nil, end, true
	}
	soi += hdr
	return clone(bytes.TrimSuffix(s.buf[soi:end], crlf)), end, true
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// firstJPEG returns the first complete SOI..EOI image in data.
func firstJPEG(data []byte) ([]byte, bool) {
	soi := bytes.Index(data, jpegSOI)
	if soi == -1 {
		return nil, false
	}
	eoi := bytes.Index(data[soi+len(jpegSOI):], jpegEOI)
	if eoi == -1 {
		return nil, false
	}
	end := soi + len(jpegSOI) + eoi + len(jpegEOI)
	return data[soi:end], true
}
