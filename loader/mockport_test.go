package loader

import (
	"bytes"
	"sync"
	"time"
)

// mockPort is a scripted in-memory Port standing in for a Propeller on a
// serial link. Reads serve a pre-queued response stream; writes are
// recorded and may be chunked to exercise the partial-write loop.
type mockPort struct {
	mu sync.Mutex

	active        AccessClient
	makeActiveErr error

	opened  bool
	openErr error

	script  []byte
	readPos int

	written    bytes.Buffer
	writeChunk int // max bytes accepted per Write call; 0 = all
	writeErr   error

	// writeHook runs after every Write with the total bytes written so far.
	writeHook func(total int)

	dtr []bool
	rts []bool

	baudrate    uint32
	readTimeout time.Duration
	bytesize    int
	parity      Parity
	stopbits    int
	flowcontrol FlowControl
}

func newMockPort(script []byte) *mockPort {
	return &mockPort{script: script}
}

func (p *mockPort) MakeActive(client AccessClient) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.makeActiveErr != nil {
		return p.makeActiveErr
	}
	if p.active != nil && p.active != client {
		if err := p.active.WillMakeInactive(); err != nil {
			return err
		}
	}
	p.active = client
	return nil
}

func (p *mockPort) RemoveFromAccess(client AccessClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == client {
		p.active = nil
	}
}

func (p *mockPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return p.openErr
	}
	p.opened = true
	return nil
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = false
	return nil
}

func (p *mockPort) Available() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.script) - p.readPos, nil
}

func (p *mockPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.readPos >= len(p.script) {
		p.mu.Unlock()
		// Nothing queued: behave like a read that waits out its timeout.
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(buf, p.script[p.readPos:])
	p.readPos += n
	p.mu.Unlock()
	return n, nil
}

func (p *mockPort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()
		return 0, err
	}
	n := len(buf)
	if p.writeChunk > 0 && n > p.writeChunk {
		n = p.writeChunk
	}
	p.written.Write(buf[:n])
	total := p.written.Len()
	hook := p.writeHook
	p.mu.Unlock()

	if hook != nil {
		hook(total)
	}
	return n, nil
}

func (p *mockPort) writtenBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *mockPort) ResetInputBuffer() error  { return nil }
func (p *mockPort) ResetOutputBuffer() error { return nil }

func (p *mockPort) SetBaudrate(baudrate uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baudrate = baudrate
	return nil
}

func (p *mockPort) SetTimeout(readWrite time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = readWrite
	return nil
}

func (p *mockPort) SetBytesize(bits int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bytesize = bits
	return nil
}

func (p *mockPort) SetParity(parity Parity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parity = parity
	return nil
}

func (p *mockPort) SetStopbits(bits int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopbits = bits
	return nil
}

func (p *mockPort) SetFlowcontrol(fc FlowControl) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flowcontrol = fc
	return nil
}

func (p *mockPort) SetDTR(asserted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dtr = append(p.dtr, asserted)
	return nil
}

func (p *mockPort) SetRTS(asserted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rts = append(p.rts, asserted)
	return nil
}
