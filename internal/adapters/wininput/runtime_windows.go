//go:build windows

package wininput

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"touchpadhold/internal/core/hidreport"
	"touchpadhold/internal/core/holddetect"
)

const (
	wmDestroy = 0x0002
	wmClose   = 0x0010
	wmQuit    = 0x0012
	wmInput   = 0x00FF
	wmTimer   = 0x0113

	ridInput    = 0x10000003
	rimTypeHID  = 2
	ridevRemove = 0x00000001
	ridevSink   = 0x00000100
	hwndMessage = ^uintptr(2) // (HWND)-3

	inputMouse = 0

	windowClassName = "TouchpadHoldRawInput"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterClassExW        = user32.NewProc("RegisterClassExW")
	procUnregisterClassW        = user32.NewProc("UnregisterClassW")
	procCreateWindowExW         = user32.NewProc("CreateWindowExW")
	procDestroyWindow           = user32.NewProc("DestroyWindow")
	procDefWindowProcW          = user32.NewProc("DefWindowProcW")
	procPostQuitMessage         = user32.NewProc("PostQuitMessage")
	procGetMessageW             = user32.NewProc("GetMessageW")
	procTranslateMessage        = user32.NewProc("TranslateMessage")
	procDispatchMessageW        = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW      = user32.NewProc("PostThreadMessageW")
	procRegisterRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	procGetRawInputData         = user32.NewProc("GetRawInputData")
	procSetTimer                = user32.NewProc("SetTimer")
	procKillTimer               = user32.NewProc("KillTimer")
	procSendInput               = user32.NewProc("SendInput")

	windowProcCallback = windows.NewCallback(windowProc)

	activeRuntime atomic.Pointer[Runtime]
)

type point struct {
	X int32
	Y int32
}

type message struct {
	Hwnd     uintptr
	Message  uint32
	WParam   uintptr
	LParam   uintptr
	Time     uint32
	Pt       point
	LPrivate uint32
}

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
	IconSm     windows.Handle
}

type rawInputDevice struct {
	UsagePage uint16
	Usage     uint16
	Flags     uint32
	Target    uintptr
}

type rawInputHeader struct {
	Type   uint32
	Size   uint32
	Device windows.Handle
	WParam uintptr
}

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type input struct {
	Type uint32
	Mi   mouseInput
}

type windowsInjector struct{}

func (i *windowsInjector) WriteEvents(events ...holddetect.Event) error {
	inputs := make([]input, 0, len(events))
	for _, event := range events {
		if event.Type != holddetect.EventTypeKey {
			continue
		}
		flags, ok := ButtonFlags(event.Code, event.Value)
		if !ok {
			continue
		}
		inputs = append(inputs, input{
			Type: inputMouse,
			Mi:   mouseInput{DwFlags: flags},
		})
	}
	if len(inputs) == 0 {
		return nil
	}

	sent, _, callErr := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if sent != uintptr(len(inputs)) {
		if callErr != nil && !errors.Is(callErr, windows.ERROR_SUCCESS) {
			return fmt.Errorf("SendInput: %w", callErr)
		}
		return fmt.Errorf("SendInput sent %d of %d inputs", sent, len(inputs))
	}
	return nil
}

func (i *windowsInjector) Close() error {
	return nil
}

// windowTimer arms the lift-detection timer on the runtime window. WM_TIMER
// is delivered through the same message loop as WM_INPUT.
type windowTimer struct {
	hwnd uintptr
	id   uintptr
}

func (t *windowTimer) Arm(period time.Duration) error {
	t.Disarm()
	ms := period.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	ret, _, callErr := procSetTimer.Call(t.hwnd, t.id, uintptr(ms), 0)
	if ret == 0 {
		return fmt.Errorf("SetTimer: %w", callErr)
	}
	return nil
}

func (t *windowTimer) Disarm() {
	if t.hwnd == 0 {
		return
	}
	_, _, _ = procKillTimer.Call(t.hwnd, t.id)
}

type Runtime struct {
	cfg     RuntimeConfig
	logger  holddetect.Logger
	decoder *hidreport.Decoder
	machine *holddetect.Machine
	timer   *windowTimer

	stopOnce sync.Once

	threadID atomic.Uint32
	loopMu   sync.Mutex
	loopDone chan struct{}
}

func NewRuntime(cfg RuntimeConfig, logger holddetect.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if cfg.TimerID == 0 {
		cfg.TimerID = DefaultTimerID
	}

	decoder, err := hidreport.NewDecoder(newCapabilitySource(), hidreport.WithCache())
	if err != nil {
		return nil, err
	}

	timer := &windowTimer{id: cfg.TimerID}
	machine, err := holddetect.NewMachine(cfg.Hold, &windowsInjector{}, timer, logger)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		decoder:  decoder,
		machine:  machine,
		timer:    timer,
		loopDone: closedSignalChan(),
	}, nil
}

func (r *Runtime) Start() error {
	if !activeRuntime.CompareAndSwap(nil, r) {
		return fmt.Errorf("windows runtime is already active")
	}

	r.loopMu.Lock()
	r.loopDone = make(chan struct{})
	r.loopMu.Unlock()

	ready := make(chan error, 1)
	go r.messageLoop(ready)

	if err := <-ready; err != nil {
		r.Stop()
		return err
	}
	return nil
}

// Stop ends the message loop. A held button is released before it returns.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		threadID := r.threadID.Load()
		if threadID != 0 {
			_, _, _ = procPostThreadMessageW.Call(uintptr(threadID), uintptr(wmQuit), 0, 0)
		}

		r.loopMu.Lock()
		done := r.loopDone
		r.loopMu.Unlock()
		if done != nil {
			<-done
		}

		activeRuntime.CompareAndSwap(r, nil)
	})
}

// Done is closed once the message loop has exited.
func (r *Runtime) Done() <-chan struct{} {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	return r.loopDone
}

func (r *Runtime) messageLoop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		r.loopMu.Lock()
		done := r.loopDone
		r.loopMu.Unlock()
		if done != nil {
			close(done)
		}
	}()
	defer activeRuntime.CompareAndSwap(r, nil)

	r.threadID.Store(windows.GetCurrentThreadId())

	var instance windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &instance); err != nil {
		ready <- fmt.Errorf("failed to get module handle: %w", err)
		return
	}

	className, err := windows.UTF16PtrFromString(windowClassName)
	if err != nil {
		ready <- err
		return
	}
	class := wndClassEx{
		WndProc:   windowProcCallback,
		Instance:  instance,
		ClassName: className,
	}
	class.Size = uint32(unsafe.Sizeof(class))
	atom, _, classErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&class)))
	if atom == 0 {
		ready <- fmt.Errorf("failed to register window class: %w", classErr)
		return
	}
	defer func() {
		_, _, _ = procUnregisterClassW.Call(uintptr(unsafe.Pointer(className)), uintptr(instance))
	}()

	hwnd, _, windowErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		0,
		0, 0, 0, 0,
		hwndMessage,
		0,
		uintptr(instance),
		0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("failed to create window: %w", windowErr)
		return
	}
	r.timer.hwnd = hwnd
	defer func() {
		_, _, _ = procDestroyWindow.Call(hwnd)
	}()

	if err := registerTouchpad(hwnd, ridevSink); err != nil {
		ready <- err
		return
	}
	defer func() {
		if err := registerTouchpad(0, ridevRemove); err != nil {
			r.logger.Warn("Failed to unregister raw input", "err", err)
		}
	}()
	defer func() {
		if err := r.machine.Reset(); err != nil {
			r.logger.Warn("Failed to release held button", "err", err)
		}
	}()

	r.logger.Info("Listening for touchpad raw input",
		"usage_page", fmt.Sprintf("%#02x", hidreport.UsagePageDigitizer),
		"usage", fmt.Sprintf("%#02x", hidreport.UsageTouchPad),
	)
	ready <- nil

	var msg message
	for {
		ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			r.logger.Warn("Windows message loop failed", "err", callErr)
			return
		case 0:
			return
		default:
			_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}
}

func registerTouchpad(hwnd uintptr, flags uint32) error {
	device := rawInputDevice{
		UsagePage: hidreport.UsagePageDigitizer,
		Usage:     hidreport.UsageTouchPad,
		Flags:     flags,
		Target:    hwnd,
	}
	ok, _, callErr := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&device)),
		1,
		unsafe.Sizeof(device),
	)
	if ok == 0 {
		return fmt.Errorf("RegisterRawInputDevices: %w", callErr)
	}
	return nil
}

func windowProc(hwnd uintptr, msg uint32, wParam uintptr, lParam uintptr) uintptr {
	if r := activeRuntime.Load(); r != nil {
		switch msg {
		case wmInput:
			r.handleRawInput(lParam)
		case wmTimer:
			if wParam == r.cfg.TimerID {
				r.handleTimer()
				return 0
			}
		case wmClose:
			_, _, _ = procDestroyWindow.Call(hwnd)
			return 0
		case wmDestroy:
			_, _, _ = procPostQuitMessage.Call(0)
			return 0
		}
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (r *Runtime) handleRawInput(lParam uintptr) {
	now := time.Now()

	device, reports, err := readRawHIDReports(lParam)
	if err != nil {
		r.logger.Debug("Dropped raw input", "err", err)
		return
	}

	for _, report := range reports {
		coords, err := r.decoder.Decode(report, hidreport.Handle(device))
		if err != nil {
			r.logger.Debug("Dropped touchpad report", "err", err)
			continue
		}
		sample := holddetect.Sample{X: coords.X, Y: coords.Y, Time: now}
		if err := r.machine.OnSample(sample, now); err != nil {
			r.logger.Warn("Failed to handle touchpad sample", "err", err)
		}
	}
}

func (r *Runtime) handleTimer() {
	if err := r.machine.OnTimerTick(time.Now()); err != nil {
		r.logger.Warn("Failed to handle timer tick", "err", err)
	}
}

// readRawHIDReports copies the RAWINPUT behind a WM_INPUT lParam and splits
// its RAWHID payload into dwCount reports of dwSizeHid bytes.
func readRawHIDReports(lParam uintptr) (windows.Handle, [][]byte, error) {
	headerSize := unsafe.Sizeof(rawInputHeader{})

	var size uint32
	ret, _, callErr := procGetRawInputData.Call(lParam, ridInput, 0, uintptr(unsafe.Pointer(&size)), headerSize)
	if int32(ret) == -1 {
		return 0, nil, fmt.Errorf("GetRawInputData size: %w", callErr)
	}
	if uintptr(size) < headerSize+rawHIDHeaderSize {
		return 0, nil, fmt.Errorf("raw input of %d bytes has no HID payload", size)
	}

	buf := make([]byte, size)
	ret, _, callErr = procGetRawInputData.Call(lParam, ridInput, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), headerSize)
	if int32(ret) == -1 || uint32(ret) > uint32(len(buf)) {
		return 0, nil, fmt.Errorf("GetRawInputData: %w", callErr)
	}
	buf = buf[:ret]

	header := (*rawInputHeader)(unsafe.Pointer(&buf[0]))
	if header.Type != rimTypeHID {
		return 0, nil, fmt.Errorf("raw input type %d is not HID", header.Type)
	}

	reports, err := splitRawHID(buf[headerSize:])
	if err != nil {
		return 0, nil, err
	}
	return header.Device, reports, nil
}

func closedSignalChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
