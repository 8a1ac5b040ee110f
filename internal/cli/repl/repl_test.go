package repl

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// recorder collects the argument lists passed to the ExecFunc.
type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) exec(_ context.Context, args []string) error {
	r.calls = append(r.calls, args)
	return r.err
}

func newTestREPL(input string, rec *recorder, opts ...Option) (*REPL, *bytes.Buffer) {
	output := &bytes.Buffer{}
	opts = append([]Option{
		WithIO(strings.NewReader(input), output),
		WithCompleter(NewCompleter("session status", "session verify", "config show")),
	}, opts...)
	return New(rec.exec, opts...), output
}

func TestNew(t *testing.T) {
	r := New(nil)
	if r == nil {
		t.Fatal("New returned nil")
	}
	if r.completer == nil {
		t.Error("completer should be initialized")
	}
	if r.history == nil {
		t.Error("history should be initialized")
	}
	if r.prompt != DefaultPrompt {
		t.Errorf("prompt = %q, want %q", r.prompt, DefaultPrompt)
	}
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "quit\n"},
		{"EOF", ""}, // No newline, simulates Ctrl+D
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r, _ := newTestREPL(tt.input, rec)

			if err := r.Run(context.Background()); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
			if len(rec.calls) != 0 {
				t.Errorf("exec called %d times, want 0", len(rec.calls))
			}
		})
	}
}

func TestREPL_Run_EmptyLines(t *testing.T) {
	rec := &recorder{}
	r, output := newTestREPL("\n\n\nexit\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}

	if prompts := strings.Count(output.String(), DefaultPrompt); prompts < 4 {
		t.Errorf("expected at least 4 prompts, got %d", prompts)
	}
}

func TestREPL_Run_Exec(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestREPL("session status\nsession   verify --no-auth\nexit\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	want := [][]string{
		{"session", "status"},
		{"session", "verify", "--no-auth"},
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestREPL_Run_LastLineWithoutNewline(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestREPL("session status", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("exec called %d times, want 1", len(rec.calls))
	}
}

func TestREPL_Run_ErrorsDoNotStop(t *testing.T) {
	rec := &recorder{err: errors.New("backend down")}
	r, output := newTestREPL("session verify\nsession status\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(rec.calls) != 2 {
		t.Errorf("exec called %d times, want 2", len(rec.calls))
	}
	if got := strings.Count(output.String(), "error: backend down"); got != 2 {
		t.Errorf("printed %d errors, want 2\n%s", got, output.String())
	}
}

func TestREPL_Run_UnknownCommand(t *testing.T) {
	rec := &recorder{}
	r, output := newTestREPL("sesion status\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Error("unknown commands should not be executed")
	}
	out := output.String()
	if !strings.Contains(out, `unknown command "sesion"`) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "session status") {
		t.Errorf("output should suggest session commands: %q", out)
	}
}

func TestREPL_Run_Suggestions(t *testing.T) {
	rec := &recorder{}
	r, output := newTestREPL("session ?\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	out := output.String()
	if !strings.Contains(out, "session status\n") || !strings.Contains(out, "session verify\n") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "config show") {
		t.Errorf("output should only list matching commands: %q", out)
	}
}

func TestREPL_Run_History(t *testing.T) {
	rec := &recorder{}
	history := NewHistory("", 10)
	r, output := newTestREPL("session status\nconfig show\nhistory\n", rec, WithHistory(history))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if got := history.Get(0); got != "history" {
		t.Errorf("most recent = %q, want %q", got, "history")
	}
	if !strings.Contains(output.String(), "   2  config show\n") {
		t.Errorf("output = %q", output.String())
	}
}

func TestREPL_Run_Redact(t *testing.T) {
	rec := &recorder{}
	history := NewHistory("", 10)
	redact := func(line string) string { return strings.ReplaceAll(line, "secret", "***") }
	r, _ := newTestREPL("session status secret\n", rec, WithHistory(history), WithRedact(redact))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if got := history.Get(0); got != "session status ***" {
		t.Errorf("history = %q", got)
	}
	if rec.calls[0][2] != "secret" {
		t.Errorf("exec should see the original line, got %v", rec.calls[0])
	}
}

func TestREPL_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	r, _ := newTestREPL("session status\n", rec)

	if err := r.Run(ctx); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Error("canceled REPL should not execute commands")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"session status", []string{"session", "status"}, false},
		{"  session\tstatus  ", []string{"session", "status"}, false},
		{`session save "r:a b"`, []string{"session", "save", "r:a b"}, false},
		{`session save 'r:"x"'`, []string{"session", "save", `r:"x"`}, false},
		{`session save r:a\ b`, []string{"session", "save", "r:a b"}, false},
		{`config show ""`, []string{"config", "show", ""}, false},
		{`session save "r:a`, nil, true},
		{`session save r:a\`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Split(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrUnterminatedQuote) {
					t.Errorf("err = %v, want ErrUnterminatedQuote", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}
