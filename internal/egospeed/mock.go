package egospeed

import (
	"io"
	"sync"
)

// MockPort is a Porter fed by WriteLine, for tests and -dev runs.
type MockPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	once sync.Once
}

// NewMockPort returns an open MockPort.
func NewMockPort() *MockPort {
	r, w := io.Pipe()
	return &MockPort{r: r, w: w}
}

// WriteLine sends one newline-terminated line to the reader. It blocks
// until the line is consumed.
func (m *MockPort) WriteLine(line string) error {
	_, err := io.WriteString(m.w, line+"\n")
	return err
}

func (m *MockPort) Read(p []byte) (int, error) { return m.r.Read(p) }

// Close ends both sides of the pipe.
func (m *MockPort) Close() error {
	m.once.Do(func() {
		m.w.Close()
		m.r.Close()
	})
	return nil
}

// CloseWithError makes the reader fail with err.
func (m *MockPort) CloseWithError(err error) {
	m.w.CloseWithError(err)
}
