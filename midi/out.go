// Package midi wraps the gomidi output driver: opening a virtual port or an
// existing one, sending note on/off, and the all-notes-off panic used when a
// session is torn down.
package midi

import (
	"fmt"
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/logicmoo/llmjam/debug"
)

// ccAllNotesOff is the channel-mode message that releases every sounding
// note on a channel.
const ccAllNotesOff = 123

// Out is a MIDI output sink bound to one port.
type Out struct {
	mu       sync.Mutex
	drv      *rtmididrv.Driver
	port     drivers.Out
	send     func(gomidi.Message) error
	portName string
}

// OpenVirtual creates a virtual output port other software can connect to.
func OpenVirtual(name string) (*Out, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	port, err := drv.OpenVirtualOut(name)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("open virtual port %q: %w", name, err)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		port.Close()
		drv.Close()
		return nil, fmt.Errorf("sender for %q: %w", name, err)
	}
	debug.Log("midi", "opened virtual port %q", name)
	return &Out{drv: drv, port: port, send: send, portName: name}, nil
}

// OpenPort opens an existing output port by (case-insensitive substring)
// name. With an empty name a single available port is taken; anything else
// is an error that names every port probed, since there is no degraded
// playback mode.
func OpenPort(name string) (*Out, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list output ports: %w", err)
	}

	var names []string
	var port drivers.Out
	for _, o := range outs {
		names = append(names, o.String())
		if port == nil && matches(o.String(), name) {
			port = o
		}
	}
	if port == nil {
		drv.Close()
		if len(names) == 0 {
			return nil, fmt.Errorf("no MIDI output ports available")
		}
		return nil, fmt.Errorf("no MIDI output port matching %q (probed: %s)",
			name, strings.Join(names, ", "))
	}

	if err := port.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open port %q: %w", port.String(), err)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		port.Close()
		drv.Close()
		return nil, fmt.Errorf("sender for %q: %w", port.String(), err)
	}
	debug.Log("midi", "opened port %q", port.String())
	return &Out{drv: drv, port: port, send: send, portName: port.String()}, nil
}

func matches(portName, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(portName), strings.ToLower(want))
}

// Ports lists the available output port names.
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	outs, err := drv.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, o := range outs {
		names[i] = o.String()
	}
	return names, nil
}

// PortName returns the name of the bound port.
func (o *Out) PortName() string {
	return o.portName
}

// NoteOn sends a note-on.
func (o *Out) NoteOn(ch, note, vel uint8) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(gomidi.NoteOn(ch, note, vel))
}

// NoteOff sends a note-off.
func (o *Out) NoteOff(ch, note uint8) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(gomidi.NoteOff(ch, note))
}

// Trigger sends an immediate on/off pair, used for percussion hits that have
// no meaningful duration.
func (o *Out) Trigger(ch, note, vel uint8) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.send(gomidi.NoteOn(ch, note, vel)); err != nil {
		return err
	}
	return o.send(gomidi.NoteOff(ch, note))
}

// AllNotesOff releases everything sounding on a channel. Best effort: used
// on teardown so a stopped session leaves no dangling note-ons.
func (o *Out) AllNotesOff(ch uint8) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(gomidi.ControlChange(ch, ccAllNotesOff, 0))
}

// Close releases the port and the driver.
func (o *Out) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	if o.port != nil {
		err = o.port.Close()
		o.port = nil
	}
	if o.drv != nil {
		o.drv.Close()
		o.drv = nil
	}
	return err
}
