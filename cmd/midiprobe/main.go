package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	defer midi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "listen":
		listenAll()
	case "note":
		testNote()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list    - List all MIDI ports")
	fmt.Println("  listen  - Print incoming notes from every input port")
	fmt.Println("  note    - Send a test note to the first output port")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		fmt.Println("  (none)")
	}
	for i, p := range ins {
		fmt.Printf("  [%d] %s\n", i, p.String())
	}

	fmt.Println("")
	fmt.Println("=== MIDI Output Ports ===")
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		fmt.Println("  (none)")
	}
	for i, p := range outs {
		fmt.Printf("  [%d] %s\n", i, p.String())
	}
}

func listenAll() {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		fmt.Println("No MIDI input ports found")
		return
	}

	start := time.Now()
	var stops []func()

	for _, in := range ins {
		port := in
		name := port.String()
		onMsg := func(msg midi.Message, _ int32) {
			stamp := time.Since(start).Seconds()
			var ch, key, vel uint8
			switch {
			case msg.GetNoteOn(&ch, &key, &vel):
				fmt.Printf("[%8.3f] %-30s note on  ch=%d note=%d vel=%d\n", stamp, name, ch, key, vel)
			case msg.GetNoteOff(&ch, &key, &vel):
				fmt.Printf("[%8.3f] %-30s note off ch=%d note=%d\n", stamp, name, ch, key)
			}
		}
		stop, err := midi.ListenTo(port, onMsg, midi.UseSysEx())
		if err != nil {
			fmt.Printf("Failed to listen on %s: %v\n", name, err)
			continue
		}
		fmt.Printf("Listening on %s\n", name)
		stops = append(stops, stop)
	}

	if len(stops) == 0 {
		return
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	fmt.Println("Press ctrl+c to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func testNote() {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		fmt.Println("No MIDI output ports found")
		return
	}

	port := outs[0]
	fmt.Printf("Sending middle C to %s\n", port.String())

	send, err := midi.SendTo(port)
	if err != nil {
		fmt.Printf("Failed to open %s: %v\n", port.String(), err)
		return
	}

	if err := send(midi.NoteOn(0, 60, 100)); err != nil {
		fmt.Printf("Send failed: %v\n", err)
		return
	}
	time.Sleep(500 * time.Millisecond)
	if err := send(midi.NoteOff(0, 60)); err != nil {
		fmt.Printf("Send failed: %v\n", err)
	}
}
