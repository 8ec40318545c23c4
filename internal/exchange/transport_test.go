package exchange

import (
	"io"
	"time"
)

// fakeTransport queues inbound frames and records outbound ones.
type fakeTransport struct {
	sent   [][]byte
	inbox  [][]byte
	closed bool
}

func newFakeTransport(frames ...string) *fakeTransport {
	ft := &fakeTransport{}
	for _, f := range frames {
		ft.inbox = append(ft.inbox, []byte(f))
	}
	return ft
}

func (ft *fakeTransport) WriteMessage(messageType int, data []byte) error {
	if ft.closed {
		return io.ErrClosedPipe
	}
	ft.sent = append(ft.sent, append([]byte(nil), data...))
	return nil
}

func (ft *fakeTransport) ReadMessage() (int, []byte, error) {
	if ft.closed || len(ft.inbox) == 0 {
		return 0, nil, io.EOF
	}
	frame := ft.inbox[0]
	ft.inbox = ft.inbox[1:]
	return 1, frame, nil
}

func (ft *fakeTransport) SetReadDeadline(time.Time) error { return nil }

func (ft *fakeTransport) Close() error {
	ft.closed = true
	return nil
}
