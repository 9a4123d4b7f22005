package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptFilter asks on out for a value of field and reads the answer from in.
// A blank answer, or end of input, means no filter.
func PromptFilter(in io.Reader, out io.Writer, field string) (Filter, error) {
	fmt.Fprintf(out, "Enter an %s to filter by (leave blank for all): ", field)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return Filter{}, fmt.Errorf("failed to read filter value: %w", err)
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return Filter{}, nil
	}
	return Filter{Field: field, Value: value}, nil
}
