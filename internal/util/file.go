package util

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SniffMimeType detects the content type from the stream's first bytes and
// checks it against the allowed prefixes. The returned reader replays the
// consumed bytes followed by the rest of the stream, so callers hand it on in
// place of the original.
func SniffMimeType(reader io.Reader, allowed ...string) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]

	mimeType := http.DetectContentType(head)
	replay := io.MultiReader(bytes.NewReader(head), reader)

	for _, prefix := range allowed {
		if strings.HasPrefix(mimeType, prefix) {
			return mimeType, replay, nil
		}
	}
	return mimeType, replay, fmt.Errorf("%w: file content is %s", ErrInvalidInput, mimeType)
}
