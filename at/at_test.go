package at_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/across-iot/cellgw/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple response",
			input:    "+CSQ: 15,99\r\nOK\r\n",
			expected: []string{"+CSQ: 15,99", "OK"},
		},
		{
			name:     "CME error terminator",
			input:    "+CME ERROR: 10\r\n",
			expected: []string{"+CME ERROR: 10"},
		},
		{
			name:     "CMS error terminator",
			input:    "+CMS ERROR: 322\r\n",
			expected: []string{"+CMS ERROR: 322"},
		},
		{
			name:     "URC mixed with response",
			input:    "+CMTI: \"SM\",1\r\n+CSQ: 20,99\r\nOK\r\n",
			expected: []string{"+CMTI: \"SM\",1", "+CSQ: 20,99", "OK"},
		},
		{
			name:     "multiple URCs",
			input:    "+CMTI: \"SM\",1\r\n+CMTI: \"SM\",2\r\nRING\r\n",
			expected: []string{"+CMTI: \"SM\",1", "+CMTI: \"SM\",2", "RING"},
		},
		{
			name:     "empty lines preserved",
			input:    "\r\n\r\nOK\r\n\r\n",
			expected: []string{"", "", "OK", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				t.Fatalf("scanner error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestIsTerminator(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"OK", true},
		{"ERROR", true},
		{"+CME ERROR: 10", true},
		{"+CMS ERROR: 322", true},
		{"+CSQ: 15,99", false},
		{"RING", false},
	}
	for _, tt := range tests {
		if got := at.IsTerminator(tt.line); got != tt.want {
			t.Errorf("IsTerminator(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTerminatorError(t *testing.T) {
	if err := at.TerminatorError("OK"); err != nil {
		t.Errorf("TerminatorError(OK) = %v, want nil", err)
	}
	if err := at.TerminatorError("ERROR"); err == nil {
		t.Error("TerminatorError(ERROR) = nil, want error")
	}
	err := at.TerminatorError("+CMS ERROR: 322")
	if err == nil || err.Error() != "+CMS ERROR:322" {
		t.Errorf("TerminatorError(+CMS ERROR: 322) = %v", err)
	}
}
