package jobs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Command is one parsed line of a job file: an operation name and its
// whitespace-separated arguments.
type Command struct {
	Op   string
	Args []string
	Line int
}

// helpText is HELP's fixed output. It lists the commands of the original
// source's job-side CMD_HELP listing (server/main.c), written in the
// whitespace-separated syntax ParseLines and writePairs accept.
const helpText = "Available commands:\n" +
	"  WRITE key value [key2 value2 ...]\n" +
	"  READ key [key2 ...]\n" +
	"  DELETE key [key2 ...]\n" +
	"  SHOW\n" +
	"  WAIT <delay_ms>\n" +
	"  BACKUP\n" +
	"  HELP\n"

// ParseLines reads one Command per non-blank, non-comment line. Lines
// beginning with '#' are comments, grounded on the convention used by
// the job-file fixtures referenced elsewhere in the pack.
func ParseLines(r io.Reader) ([]Command, error) {
	scanner := bufio.NewScanner(r)
	var cmds []Command
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		cmds = append(cmds, Command{
			Op:   strings.ToUpper(fields[0]),
			Args: fields[1:],
			Line: lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jobs: scan: %w", err)
	}
	return cmds, nil
}

// writePairs splits a WRITE command's args into key/value pairs. An odd
// number of args is a malformed command.
func writePairs(args []string) ([][2]string, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("WRITE requires an even number of arguments, got %d", len(args))
	}
	pairs := make([][2]string, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, [2]string{args[i], args[i+1]})
	}
	return pairs, nil
}

// waitDuration parses WAIT's single millisecond argument.
func waitDuration(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("WAIT requires exactly one argument, got %d", len(args))
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("WAIT argument must be a non-negative integer: %q", args[0])
	}
	return ms, nil
}
