package cmd

import (
	"go.uber.org/zap"

	"github.com/illarion/notelock/internal/notify"
)

// lineHost is the host lifecycle for an interactive session: signals are
// typed by the user rather than delivered by an operating system.
type lineHost struct {
	listeners *notify.Registry[func(raw string)]
}

func newLineHost(logger *zap.Logger) *lineHost {
	return &lineHost{
		listeners: notify.New[func(raw string)]("host", logger),
	}
}

// AddListener implements appstate.HostLifecycle
func (h *lineHost) AddListener(listener func(raw string)) (remove func()) {
	token := h.listeners.Add(listener)
	return func() {
		h.listeners.Remove(token)
	}
}

// Signal delivers raw to every listener
func (h *lineHost) Signal(raw string) {
	h.listeners.Notify(func(listener func(raw string)) {
		listener(raw)
	})
}
