//go:build linux

package x11input

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"

	"touchpadhold/internal/core/holddetect"
)

// Injector presses pointer buttons through the XTEST extension.
type Injector struct {
	conn    *xgb.Conn
	rootWin xproto.Window

	mu     sync.Mutex
	closed bool
}

func NewInjector() (*Injector, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	conn := xu.Conn()
	if conn == nil {
		return nil, fmt.Errorf("failed to open X11 connection")
	}

	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("XTEST extension unavailable: %w", err)
	}

	return &Injector{conn: conn, rootWin: xu.RootWin()}, nil
}

func (i *Injector) WriteEvents(events ...holddetect.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fmt.Errorf("x11 injector is closed")
	}

	dirty := false
	for _, event := range events {
		if event.Type != holddetect.EventTypeKey {
			continue
		}
		button, ok := buttonIndex(event.Code)
		if !ok {
			continue
		}
		eventType, ok := fakeInputType(event.Value)
		if !ok {
			continue
		}

		if err := xtest.FakeInputChecked(
			i.conn,
			eventType,
			button,
			xproto.TimeCurrentTime,
			i.rootWin,
			0,
			0,
			0,
		).Check(); err != nil {
			return err
		}
		dirty = true
	}

	if dirty {
		i.conn.Sync()
	}
	return nil
}

func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.conn.Close()
	return nil
}
