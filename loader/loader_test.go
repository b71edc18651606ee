package loader

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprop/go-proploader/protocol"
	"github.com/openprop/go-proploader/threebit"
)

// chipVersion1 is the 3BP response encoding of chip version 1.
var chipVersion1 = []byte{0xCF, 0xCE, 0xCE, 0xCE}

// encodedAABBCCDD is the 3BP encoding of the image {AA BB CC DD}.
var encodedAABBCCDD = []byte{0x4A, 0x4A, 0xA5, 0xA5, 0x52, 0x52, 0xA9, 0xA9}

// happyScript queues everything a healthy Propeller answers with: the
// authentication bytes, the chip version, then the given status bytes.
func happyScript(statuses ...byte) []byte {
	script := append([]byte(nil), protocol.PropAuthBytes...)
	script = append(script, chipVersion1...)
	script = append(script, statuses...)
	return script
}

type finishRecord struct {
	code    ErrorCode
	details string
	summary ActionSummary
	at      time.Time
}

// recordingMonitor captures the callback sequence across actions.
type recordingMonitor struct {
	mu       sync.Mutex
	events   []string
	finishes []finishRecord
}

func (m *recordingMonitor) LoaderWillBegin(_ *Loader, action Action, _, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "willBegin:"+action.String())
}

func (m *recordingMonitor) LoaderUpdate(_ *Loader, status Status, _, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "update:"+status.String())
}

func (m *recordingMonitor) LoaderHasFinished(_ *Loader, code ErrorCode, details string, summary ActionSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "finished:"+code.String())
	m.finishes = append(m.finishes, finishRecord{code: code, details: details, summary: summary, at: time.Now()})
}

func (m *recordingMonitor) eventList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func (m *recordingMonitor) finishList() []finishRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]finishRecord(nil), m.finishes...)
}

// newTestLoader builds a loader with the shortest legal reset and boot wait
// so scenario tests stay fast.
func newTestLoader(t *testing.T, port Port, monitor StatusMonitor) *Loader {
	t.Helper()
	ldr, err := New(port,
		WithResetDuration(MinResetDuration),
		WithBootWaitDuration(MinBootWaitDuration),
		WithStatusMonitor(monitor),
	)
	require.NoError(t, err)
	return ldr
}

func waitFinished(t *testing.T, ldr *Loader) {
	t.Helper()
	require.NoError(t, ldr.WaitUntilFinished(5*time.Second))
}

// waitForFinishes polls until the monitor has seen n finished callbacks.
// WaitUntilFinished unblocks as soon as the loader goes idle, which is
// slightly before LoaderHasFinished runs, so monitor assertions poll.
func waitForFinishes(t *testing.T, m *recordingMonitor, n int) []finishRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		finishes := m.finishList()
		if len(finishes) >= n {
			return finishes
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d finished callbacks, have %d", n, len(finishes))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRestartHappyPath(t *testing.T) {
	port := newMockPort(nil)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.Restart())
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	require.Equal(t, []string{
		"willBegin:restart",
		"update:resetting",
		"finished:None",
	}, monitor.eventList())

	assert.True(t, finishes[0].summary.WasSuccessful)
	assert.Equal(t, ActionRestart, finishes[0].summary.Action)

	// Restart never talks to the booter.
	assert.Empty(t, port.writtenBytes())

	// The reset line was asserted and released once.
	assert.Equal(t, []bool{true, false}, port.dtr)
	assert.Empty(t, port.rts)
	assert.False(t, ldr.IsBusy())
}

func TestLoadRAMHappyPath(t *testing.T) {
	port := newMockPort(happyScript(protocol.StatusSuccessByte))
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	require.Equal(t, []string{
		"willBegin:load RAM",
		"update:resetting",
		"update:establishing communications",
		"update:sending command and image",
		"update:waiting for checksum status",
		"finished:None",
	}, monitor.eventList())

	summary := finishes[0].summary
	assert.True(t, summary.WasSuccessful)
	assert.Equal(t, 4, summary.ImageSize)
	assert.Equal(t, len(encodedAABBCCDD), summary.EncodedImageSize)

	// The wire carries InitBytes, the command, the encoded image size (one
	// long, value 1), the encoded image, then only status prompts.
	written := port.writtenBytes()
	require.Greater(t, len(written), 280)
	assert.Equal(t, protocol.InitBytes, written[:250])
	assert.Equal(t, protocol.EncodedLoadRAM, written[250:261])

	sizeEnc := threebit.NewEncoder(16)
	sizeEnc.EncodeLong(1)
	assert.Equal(t, sizeEnc.Bytes(), written[261:272])
	assert.Equal(t, encodedAABBCCDD, written[272:280])

	for i, b := range written[280:] {
		require.Equal(t, byte(protocol.StatusPrompt), b, "byte %d after image", 280+i)
	}
}

func TestProgramEEPROMHappyPath(t *testing.T) {
	port := newMockPort(happyScript(
		protocol.StatusSuccessByte, // checksum
		protocol.StatusSuccessByte, // programming
		protocol.StatusSuccessByte, // verification
	))
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.ProgramEEPROM([]byte{0x01, 0x02, 0x03, 0x04}, true))
	waitFinished(t, ldr)
	waitForFinishes(t, monitor, 1)

	require.Equal(t, []string{
		"willBegin:program EEPROM then run",
		"update:resetting",
		"update:establishing communications",
		"update:sending command and image",
		"update:waiting for checksum status",
		"update:waiting for EEPROM programming status",
		"update:waiting for EEPROM verification status",
		"finished:None",
	}, monitor.eventList())

	written := port.writtenBytes()
	require.Greater(t, len(written), 261)
	assert.Equal(t, protocol.EncodedProgramEEPROMThenRun, written[250:261])
}

func TestShutdownStopsAfterCommand(t *testing.T) {
	port := newMockPort(happyScript())
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.Shutdown())
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)
	assert.Equal(t, ErrorCodeNone, finishes[0].code)

	// Exactly InitBytes plus the shutdown command; no image, no prompts.
	written := port.writtenBytes()
	require.Len(t, written, 261)
	assert.Equal(t, protocol.EncodedShutdown, written[250:261])
}

func TestAuthenticationFailure(t *testing.T) {
	script := make([]byte, len(protocol.PropAuthBytes)) // all zeroes
	port := newMockPort(script)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodeFailedToAuthenticateProp, finishes[0].code)
	assert.False(t, finishes[0].summary.WasSuccessful)
}

func TestUnsupportedChipVersion(t *testing.T) {
	script := append([]byte(nil), protocol.PropAuthBytes...)
	script = append(script, 0xEE, 0xCE, 0xCE, 0xCE) // version 2
	port := newMockPort(script)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodeUnsupportedChipVersion, finishes[0].code)
}

func TestChipVersionDecodeFailure(t *testing.T) {
	script := append([]byte(nil), protocol.PropAuthBytes...)
	script = append(script, 0x00, 0x00, 0x00, 0x00)
	port := newMockPort(script)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodeFailedToDecodeChipVersion, finishes[0].code)
}

func TestChecksumFailure(t *testing.T) {
	port := newMockPort(happyScript(protocol.StatusFailureByte))
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodePropReportsChecksumError, finishes[0].code)
}

func TestEEPROMProgrammingFailure(t *testing.T) {
	port := newMockPort(happyScript(
		protocol.StatusSuccessByte,
		protocol.StatusFailureByte,
	))
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.ProgramEEPROM([]byte{0x01, 0x02, 0x03, 0x04}, false))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodePropReportsEEPROMProgrammingError, finishes[0].code)
}

func TestCancellationDuringImageSend(t *testing.T) {
	port := newMockPort(happyScript())
	port.writeChunk = 64
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	var cancelledAt time.Time
	var once sync.Once
	port.writeHook = func(total int) {
		// The first kilobyte lands midway through the encoded image
		// (InitBytes, command and size total 272 bytes).
		if total >= 1024 {
			once.Do(func() {
				cancelledAt = time.Now()
				ldr.Cancel()
			})
		}
	}

	require.NoError(t, ldr.LoadRAM(make([]byte, 16384)))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	assert.Equal(t, ErrorCodeCancelled, finishes[0].code)
	assert.Contains(t, finishes[0].details, "sending image")

	require.False(t, cancelledAt.IsZero())
	assert.Less(t, finishes[0].at.Sub(cancelledAt), protocol.CancellationCheckInterval+200*time.Millisecond)
}

func TestCancelAndWait(t *testing.T) {
	// No scripted responses: the worker sits in the authentication receive
	// loop until cancelled.
	port := newMockPort(nil)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	time.Sleep(60 * time.Millisecond)

	start := time.Now()
	require.NoError(t, ldr.CancelAndWait(2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, ldr.IsBusy())

	finishes := waitForFinishes(t, monitor, 1)
	assert.Equal(t, ErrorCodeCancelled, finishes[0].code)
}

func TestDoubleStartFailsWithBusy(t *testing.T) {
	port := newMockPort(nil)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	release := make(chan struct{})
	require.NoError(t, ldr.SetResetLine(ResetLineCallback))
	ldr.SetResetCallback(func(time.Duration) error {
		<-release
		return nil
	})

	require.NoError(t, ldr.Restart())

	err := ldr.Restart()
	var busy *BusyError
	require.ErrorAs(t, err, &busy)
	assert.Contains(t, busy.Activity, "restart")

	close(release)
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)

	// The first action is unaffected by the refused second start.
	require.Len(t, finishes, 1)
	assert.Equal(t, ErrorCodeNone, finishes[0].code)
}

func TestWillMakeInactiveRefusesWhileBusy(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	release := make(chan struct{})
	require.NoError(t, ldr.SetResetLine(ResetLineCallback))
	ldr.SetResetCallback(func(time.Duration) error {
		<-release
		return nil
	})

	require.NoError(t, ldr.Restart())
	err := ldr.WillMakeInactive()
	var busy *BusyError
	require.ErrorAs(t, err, &busy)

	close(release)
	waitFinished(t, ldr)
	assert.NoError(t, ldr.WillMakeInactive())
}

func TestWaitUntilFinishedTimeout(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	release := make(chan struct{})
	require.NoError(t, ldr.SetResetLine(ResetLineCallback))
	ldr.SetResetCallback(func(time.Duration) error {
		<-release
		return nil
	})

	require.NoError(t, ldr.Restart())

	err := ldr.WaitUntilFinished(50 * time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)

	close(release)
	waitFinished(t, ldr)
}

func TestResetCallbackFailures(t *testing.T) {
	tests := []struct {
		name     string
		callback ResetCallback
	}{
		{
			name:     "nil callback",
			callback: nil,
		},
		{
			name:     "callback error",
			callback: func(time.Duration) error { return errors.New("no GPIO access") },
		},
		{
			name:     "callback panic",
			callback: func(time.Duration) error { panic("wiring mishap") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := newMockPort(nil)
			monitor := &recordingMonitor{}
			ldr := newTestLoader(t, port, monitor)
			require.NoError(t, ldr.SetResetLine(ResetLineCallback))
			ldr.SetResetCallback(tt.callback)

			require.NoError(t, ldr.Restart())
			waitFinished(t, ldr)
			finishes := waitForFinishes(t, monitor, 1)

			assert.Equal(t, ErrorCodeFailedToReset, finishes[0].code)
		})
	}
}

func TestRTSResetLine(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)
	require.NoError(t, ldr.SetResetLine(ResetLineRTS))

	require.NoError(t, ldr.Restart())
	waitFinished(t, ldr)

	assert.Equal(t, []bool{true, false}, port.rts)
	assert.Empty(t, port.dtr)
}

func TestStage1Failures(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(*mockPort)
		wantCode ErrorCode
	}{
		{
			name:     "port access refused",
			prepare:  func(p *mockPort) { p.makeActiveErr = errors.New("held elsewhere") },
			wantCode: ErrorCodeFailedToObtainPortAccess,
		},
		{
			name:     "open fails",
			prepare:  func(p *mockPort) { p.openErr = errors.New("no such device") },
			wantCode: ErrorCodeFailedToOpenPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := newMockPort(nil)
			tt.prepare(port)
			monitor := &recordingMonitor{}
			ldr := newTestLoader(t, port, monitor)

			require.NoError(t, ldr.Restart())
			waitFinished(t, ldr)
			finishes := waitForFinishes(t, monitor, 1)

			assert.Equal(t, tt.wantCode, finishes[0].code)
		})
	}
}

func TestPortConfiguredForBooter(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	require.NoError(t, ldr.Restart())
	waitFinished(t, ldr)

	assert.Equal(t, DefaultBaudrate, port.baudrate)
	assert.Equal(t, protocol.CancellationCheckInterval, port.readTimeout)
	assert.Equal(t, 8, port.bytesize)
	assert.Equal(t, ParityNone, port.parity)
	assert.Equal(t, 1, port.stopbits)
	assert.Equal(t, FlowControlNone, port.flowcontrol)
}

func TestInvalidImageDoesNotMarkBusy(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	var iie *protocol.InvalidImageError

	err := ldr.LoadRAM(nil)
	require.ErrorAs(t, err, &iie)
	assert.False(t, ldr.IsBusy())

	err = ldr.ProgramEEPROM(make([]byte, protocol.MaxImageSize+1), true)
	require.ErrorAs(t, err, &iie)
	assert.False(t, ldr.IsBusy())
}

func TestConsecutiveActionsPairCallbacks(t *testing.T) {
	port := newMockPort(nil)
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	const rounds = 5
	for i := 0; i < rounds; i++ {
		require.NoError(t, ldr.Restart())
		waitFinished(t, ldr)
		waitForFinishes(t, monitor, i+1)
	}

	events := monitor.eventList()
	require.Len(t, events, rounds*3)
	for i := 0; i < rounds; i++ {
		assert.Equal(t, "willBegin:restart", events[i*3])
		assert.Equal(t, "update:resetting", events[i*3+1])
		assert.Equal(t, "finished:None", events[i*3+2])
	}
}

func TestSettingsSnapshotIsolation(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	release := make(chan struct{})
	require.NoError(t, ldr.SetResetLine(ResetLineCallback))
	ldr.SetResetCallback(func(time.Duration) error {
		<-release
		return nil
	})

	require.NoError(t, ldr.Restart())

	// Changing a live setting must not affect the in-flight action.
	require.NoError(t, ldr.SetBaudrate(9600))

	close(release)
	waitFinished(t, ldr)

	assert.Equal(t, DefaultBaudrate, port.baudrate)
	assert.Equal(t, uint32(9600), ldr.Baudrate())
}

func TestCurrentActivity(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	assert.Equal(t, "Loader is idle.", ldr.CurrentActivity())

	release := make(chan struct{})
	require.NoError(t, ldr.SetResetLine(ResetLineCallback))
	ldr.SetResetCallback(func(time.Duration) error {
		<-release
		return nil
	})

	require.NoError(t, ldr.Restart())
	activity := ldr.CurrentActivity()
	assert.Contains(t, activity, "Action: restart.")
	assert.Contains(t, activity, "Last checkpoint:")

	close(release)
	waitFinished(t, ldr)
	assert.Equal(t, "Loader is idle.", ldr.CurrentActivity())
}

func TestCloseReleasesPort(t *testing.T) {
	port := newMockPort(nil)
	ldr := newTestLoader(t, port, nil)

	require.NoError(t, ldr.Restart())
	require.NoError(t, ldr.Close())

	port.mu.Lock()
	active := port.active
	port.mu.Unlock()
	assert.Nil(t, active)
	assert.False(t, ldr.IsBusy())
}

func TestSummaryStageTimes(t *testing.T) {
	port := newMockPort(happyScript(protocol.StatusSuccessByte))
	monitor := &recordingMonitor{}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.LoadRAM([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	waitFinished(t, ldr)
	finishes := waitForFinishes(t, monitor, 1)
	s := finishes[0].summary

	assert.Equal(t, DefaultBaudrate, s.Baudrate)
	assert.Equal(t, MinResetDuration, s.ResetDuration)
	assert.Equal(t, MinBootWaitDuration, s.BootWaitDuration)

	// Stage 2 includes the reset hold and the boot wait.
	assert.GreaterOrEqual(t, s.Stage2Time, MinResetDuration+MinBootWaitDuration)
	assert.Equal(t, s.Stage2aTime+s.Stage2bTime, s.Stage2Time)
	assert.Equal(t, s.Stage4aTime+s.Stage4bTime, s.Stage4Time)

	sum := s.Stage1Time + s.Stage2Time + s.Stage3Time + s.Stage4Time + s.Stage5Time
	assert.Equal(t, sum, s.TotalTime)

	// EEPROM stages never ran for a RAM load.
	assert.Zero(t, s.Stage6Time)
	assert.Zero(t, s.Stage7Time)
	assert.GreaterOrEqual(t, s.EncodingTime, time.Duration(0))
	assert.Equal(t, len(encodedAABBCCDD), s.EncodedImageSize)
}

// slowFinishMonitor lingers inside LoaderHasFinished so a prompt next start
// can race it; the callback order mutex must still serialize the callbacks.
type slowFinishMonitor struct {
	mu     sync.Mutex
	trace  []string
	linger time.Duration
}

func (m *slowFinishMonitor) record(event string) {
	m.mu.Lock()
	m.trace = append(m.trace, event)
	m.mu.Unlock()
}

func (m *slowFinishMonitor) LoaderWillBegin(*Loader, Action, time.Duration, time.Duration) {
	m.record("willBegin")
}

func (m *slowFinishMonitor) LoaderUpdate(*Loader, Status, time.Duration, time.Duration) {}

func (m *slowFinishMonitor) LoaderHasFinished(*Loader, ErrorCode, string, ActionSummary) {
	m.record("finished-enter")
	time.Sleep(m.linger)
	m.record("finished-exit")
}

func (m *slowFinishMonitor) traceCopy() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.trace...)
}

func TestFinishedSerializedAgainstNextWillBegin(t *testing.T) {
	port := newMockPort(nil)
	monitor := &slowFinishMonitor{linger: 80 * time.Millisecond}
	ldr := newTestLoader(t, port, monitor)

	require.NoError(t, ldr.Restart())

	// The loader reports idle before the finished callback returns; start
	// the next action in exactly that window.
	deadline := time.Now().Add(5 * time.Second)
	for ldr.IsBusy() {
		require.True(t, time.Now().Before(deadline), "first action never went idle")
		time.Sleep(100 * time.Microsecond)
	}
	require.NoError(t, ldr.Restart())
	waitFinished(t, ldr)

	// The second finished callback may still be lingering.
	for len(monitor.traceCopy()) < 6 {
		require.True(t, time.Now().Before(deadline), "callbacks never completed")
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, []string{
		"willBegin",
		"finished-enter",
		"finished-exit",
		"willBegin",
		"finished-enter",
		"finished-exit",
	}, monitor.traceCopy())
}

func TestActionStrings(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionNone, "none"},
		{ActionShutdown, "shutdown"},
		{ActionLoadRAM, "load RAM"},
		{ActionProgramEEPROMThenShutdown, "program EEPROM then shutdown"},
		{ActionProgramEEPROMThenRun, "program EEPROM then run"},
		{ActionRestart, "restart"},
		{Action(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.String())
			assert.Equal(t, fmt.Sprint(tt.action), tt.action.String())
		})
	}
}
