package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/logicmoo/llmjam/audio"
	"github.com/logicmoo/llmjam/clock"
	"github.com/logicmoo/llmjam/config"
	"github.com/logicmoo/llmjam/debug"
	"github.com/logicmoo/llmjam/jam"
	"github.com/logicmoo/llmjam/llm"
	"github.com/logicmoo/llmjam/midi"
	"github.com/logicmoo/llmjam/pitch"
	"github.com/logicmoo/llmjam/tui"
)

const virtualPortName = "llmjam MIDI Out"

var log = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
})

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

type flags struct {
	bpm      float64
	style    string
	create   bool
	port     string
	model    string
	baseURL  string
	pitchURL string
	noTUI    bool
	debugLog bool
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "llmjam",
		Short: "A call-and-response jam session with a language model",
		Long: `llmjam listens to a phrase you play, sends it to a language model,
and plays the answer back over MIDI in time with a drum metronome.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.bpm, "bpm", 95, "beats per minute for the jam session")
	fl.StringVar(&f.style, "style", "", "initial playing style phrase")
	fl.BoolVar(&f.create, "create", false, "create a virtual MIDI port instead of opening an existing one")
	fl.StringVar(&f.port, "port", "", "MIDI output port name (substring match)")
	fl.StringVar(&f.model, "model", "", "chat model to jam with")
	fl.StringVar(&f.baseURL, "base-url", "", "OpenAI-compatible endpoint base URL")
	fl.StringVar(&f.pitchURL, "pitch-url", "", "pitch estimation sidecar URL")
	fl.BoolVar(&f.noTUI, "no-tui", false, "run headless with log output only")
	fl.BoolVar(&f.debugLog, "debug", false, "write a debug log to ~/.config/llmjam/debug.log")

	cmd.AddCommand(portsCmd())
	return cmd
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI output ports",
		RunE: func(*cobra.Command, []string) error {
			names, err := midi.Ports()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("no MIDI output ports available")
				return nil
			}
			for i, n := range names {
				fmt.Printf("  [%d] %s\n", i, n)
			}
			return nil
		},
	}
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, f, cfg)

	if f.debugLog || os.Getenv("LLMJAM_DEBUG") != "" {
		if err := debug.Enable(); err != nil {
			log.Warn("debug log unavailable", "err", err)
		}
		defer debug.Disable()
	}

	clk, err := clock.New(cfg.BPM)
	if err != nil {
		return err
	}

	// Fail fast on a sample rate the pitch model can't take.
	estimator, err := pitch.NewHTTPEstimator(cfg.Pitch.URL, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	llmOpts := []llm.Option{llm.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	responder, err := llm.New(llmOpts...)
	if err != nil {
		return err
	}

	// No MIDI destination means no session: there is no degraded mode.
	var out *midi.Out
	if cfg.MIDI.Create {
		out, err = midi.OpenVirtual(virtualPortName)
	} else {
		out, err = midi.OpenPort(cfg.MIDI.PortName)
	}
	if err != nil {
		return err
	}
	defer out.Close()
	log.Info("MIDI output ready", "port", out.PortName())

	source, err := audio.OpenDefaultInput(cfg.Audio.SampleRate, cfg.Audio.BlockSize)
	if err != nil {
		return fmt.Errorf("audio input: %w", err)
	}
	defer source.Close()

	session := jam.NewSession(jam.SessionConfig{
		Clock:     clk,
		Sink:      out,
		Estimator: estimator,
		Responder: responder,
		Source:    source,
		Gate: audio.Gate{
			SampleRate:      cfg.Audio.SampleRate,
			BlockSize:       cfg.Audio.BlockSize,
			Threshold:       cfg.Audio.Threshold,
			SilenceDuration: cfg.Audio.SilenceDuration,
			MaxRecord:       cfg.Audio.MaxRecord,
		},
		Style: cfg.Style,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Whatever happens, leave the synth silent.
	defer func() {
		out.AllNotesOff(jam.PlaybackChannel)
		out.AllNotesOff(jam.DrumChannel)
	}()

	if f.noTUI {
		return runHeadless(ctx, session)
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- session.Run(ctx)
	}()

	p := tea.NewProgram(tui.NewModel(session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-sessionDone
		return fmt.Errorf("tui: %w", err)
	}
	cancel()
	if err := <-sessionDone; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runHeadless logs phase changes instead of drawing them.
func runHeadless(ctx context.Context, session *jam.Session) error {
	log.Info("jamming", "bpm", session.Status().BPM, "style", session.Status().Style)
	log.Info("press ctrl+c to stop")

	go func() {
		last := jam.PhaseIdle
		for {
			select {
			case <-ctx.Done():
				return
			case <-session.UpdateChan:
				st := session.Status()
				if st.Phase != last {
					last = st.Phase
					log.Info(st.Phase.String(), "round", st.Round)
				}
			}
		}
	}()

	err := session.Run(ctx)
	if ctx.Err() != nil {
		log.Info("jam over")
		return nil
	}
	return err
}

func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("bpm") {
		cfg.BPM = f.bpm
	}
	if set("style") {
		cfg.Style = f.style
	}
	if set("create") {
		cfg.MIDI.Create = f.create
	}
	if set("port") {
		cfg.MIDI.PortName = f.port
		cfg.MIDI.Create = false
	}
	if set("model") {
		cfg.LLM.Model = f.model
	}
	if set("base-url") {
		cfg.LLM.BaseURL = f.baseURL
	}
	if set("pitch-url") {
		cfg.Pitch.URL = f.pitchURL
	}
}
