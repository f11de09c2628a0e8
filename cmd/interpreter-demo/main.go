// Command interpreter-demo runs one scripted interpretation session end to
// end, without any network dependencies, and prints the event feed.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"live-interpreter-service/internal/audio"
	"live-interpreter-service/internal/events"
	"live-interpreter-service/internal/model"
	"live-interpreter-service/internal/recognizer"
	"live-interpreter-service/internal/session"
	"live-interpreter-service/internal/synth"
	"live-interpreter-service/internal/translate"
)

// phrasebook backs the demo translator for the scripted utterances.
var phrasebook = map[string]string{
	"hello world":          "hola mundo",
	"where is the station": "donde esta la estacion",
	"thank you very much":  "muchas gracias",
}

func main() {
	frames := make([][]int16, 16)
	for i := range frames {
		frame := make([]int16, 320)
		for j := range frame {
			if j%2 == 0 {
				frame[j] = 6000
			} else {
				frame[j] = -6000
			}
		}
		frames[i] = frame
	}

	collab := session.Collaborators{
		NewDevice: func() (audio.Device, error) {
			return audio.NewPlayback(frames, 20*time.Millisecond, 0), nil
		},
		NewEngine: func(context.Context) (recognizer.Engine, error) {
			return recognizer.NewScripted(recognizer.DefaultUtterances), nil
		},
		Translator: translate.TranslatorFunc(func(_ context.Context, text, _, _ string) (string, error) {
			if translated, ok := phrasebook[text]; ok {
				return translated, nil
			}
			return text, nil
		}),
		Synthesizer: synth.SynthesizerFunc(func(_ context.Context, text, _ string) (synth.Clip, error) {
			duration := time.Duration(len(text)/5+1) * 60 * time.Millisecond
			return synth.Clip{Audio: make([]byte, 640), Duration: duration}, nil
		}),
	}

	cfg := session.DefaultConfig()
	cfg.Aggregator.Debounce = 100 * time.Millisecond

	manager := session.NewManager(events.NewHub(), events.NewExporter(nil), collab, cfg)

	sess, err := manager.StartSession("en", "es")
	if err != nil {
		fmt.Fprintln(os.Stderr, "start session:", err)
		os.Exit(1)
	}
	fmt.Printf("session %s started (%s -> %s)\n\n", sess.ID, sess.SourceLang, sess.TargetLang)

	feed, cancel := sess.Events()
	defer cancel()

	for ev := range feed {
		switch ev.Type {
		case model.EventTranscript:
			kind := "partial"
			if ev.Transcript.IsFinal {
				kind = "final  "
			}
			fmt.Printf("  [%s] %q (%.2f)\n", kind, ev.Transcript.Text, ev.Transcript.Confidence)
		case model.EventTranslation:
			if ev.Translation.Status == model.StatusSucceeded {
				fmt.Printf("  [translated] %q -> %q\n", ev.Translation.SourceText, ev.Translation.TranslatedText)
			} else {
				fmt.Printf("  [translation failed] %q: %s\n", ev.Translation.SourceText, ev.Translation.Error)
			}
		case model.EventSynthesis:
			if ev.Synthesis.Status == model.StatusSucceeded {
				fmt.Printf("  [spoken] %q (%d bytes, %s)\n", ev.Synthesis.Text, len(ev.Synthesis.Audio), ev.Synthesis.Duration)
			} else {
				fmt.Printf("  [synthesis failed] %q: %s\n", ev.Synthesis.Text, ev.Synthesis.Error)
			}
		case model.EventStateChanged:
			if ev.State.Reason != "" {
				fmt.Printf("  [state] %s (%s)\n", ev.State.State, ev.State.Reason)
			} else {
				fmt.Printf("  [state] %s\n", ev.State.State)
			}
		case model.EventFailed:
			fmt.Printf("  [segment failed] seq %d at %s: %s\n", ev.Failure.Seq, ev.Failure.Stage, ev.Failure.Reason)
		}
	}

	fmt.Println("\nsession ended")
}
