package hotkeys

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/seat"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Sink receives inputs produced by key presses. *seat.Seat implements it.
type Sink interface {
	Submit(in seat.Input) error
}

// Binding pairs a key sequence with the input it produces.
type Binding struct {
	Keys  string
	Input seat.Input
}

// Bindings expands the hotkey config into concrete bindings, slot keys
// first in slot order. Empty key strings are skipped.
func Bindings(h config.Hotkeys) []Binding {
	ids := make([]int, 0, len(h.Slots))
	for id := range h.Slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []Binding
	for _, id := range ids {
		if h.Slots[id] == "" {
			continue
		}
		out = append(out, Binding{Keys: h.Slots[id], Input: seat.Focus(id, seat.SourceHotkey)})
	}
	actions := []struct {
		keys   string
		action seat.Action
	}{
		{h.Next, seat.ActionNext},
		{h.Previous, seat.ActionPrevious},
		{h.Relayout, seat.ActionRelayout},
		{h.Reset, seat.ActionReset},
	}
	for _, a := range actions {
		if a.keys == "" {
			continue
		}
		out = append(out, Binding{Keys: a.keys, Input: seat.Do(a.action, seat.SourceHotkey)})
	}
	return out
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	sink   Sink
	logger *slog.Logger

	mu    sync.Mutex
	bound []string
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler on the root window.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window, sink Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:     xu,
		root:   root,
		sink:   sink,
		logger: logger,
	}
}

// Apply replaces all registered hotkeys with the given config. Keys that
// fail to grab are logged and skipped; the count of failures is returned
// as an error.
func (h *Handler) Apply(cfg config.Hotkeys) error {
	h.Clear()

	failed := 0
	for _, b := range Bindings(cfg) {
		in := b.Input
		if err := h.RegisterFunc(b.Keys, func() {
			if err := h.sink.Submit(in); err != nil {
				h.logger.Warn("hotkey input rejected", "input", in.String(), "error", err)
			}
		}); err != nil {
			h.logger.Warn("failed to register hotkey", "keys", b.Keys, "input", b.Input.String(), "error", err)
			failed++
			continue
		}
		h.logger.Debug("hotkey registered", "keys", b.Keys, "input", b.Input.String())
	}
	if failed > 0 {
		return fmt.Errorf("%d hotkeys could not be registered", failed)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true); err != nil {
		return err
	}
	h.mu.Lock()
	h.bound = append(h.bound, keySequence)
	h.mu.Unlock()
	return nil
}

// Clear ungrabs every key registered through this handler.
func (h *Handler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.bound) == 0 {
		return
	}
	keybind.Detach(h.xu, h.root)
	for _, keys := range h.bound {
		mods, codes, err := keybind.ParseString(h.xu, keys)
		if err != nil {
			continue
		}
		for _, code := range codes {
			keybind.Ungrab(h.xu, h.root, mods, code)
		}
	}
	h.bound = nil
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
