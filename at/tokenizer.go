package at

import (
	"bufio"
	"bytes"
)

// Splitter is a bufio.SplitFunc that tokenizes modem output by CRLF line
// endings. It assumes "No Echo" mode (ATE0); enabling echo would require a
// splitter that also recognises the command-line echo preceding a response.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter
