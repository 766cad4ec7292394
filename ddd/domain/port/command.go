package port

import "context"

// LogSink receives one line of human-readable progress output.
type LogSink func(line string)

// Discard drops every line.
func Discard(string) {}

// CommandRunner executes an external program, streaming its stdout and
// stderr line by line into sink. A non-zero exit is returned as an error.
type CommandRunner interface {
	Run(ctx context.Context, sink LogSink, name string, args ...string) error
	// Output runs the program and returns its stdout; stderr goes to sink.
	Output(ctx context.Context, sink LogSink, name string, args ...string) ([]byte, error)
}
