// Package google provides a Google Cloud Speech-to-Text recognition engine.
package google

import (
	"context"
	"encoding/binary"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/recognizer"
)

// Config holds the streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// DefaultConfig returns the default streaming settings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
	}
}

// Engine implements recognizer.Engine using Google Cloud Speech-to-Text.
type Engine struct {
	client *speech.Client
	cfg    Config
	stream speechpb.Speech_StreamingRecognizeClient
}

// New creates a Google recognition engine.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, classify("speech.client", err)
	}
	return &Engine{client: c, cfg: cfg}, nil
}

// Start opens a streaming recognition session and sends the initial config.
// It may be called again after a stream failure to open a fresh stream.
func (e *Engine) Start(ctx context.Context, cb recognizer.Callback) error {
	stream, err := e.client.StreamingRecognize(ctx)
	if err != nil {
		return classify("speech.stream", err)
	}
	e.stream = stream

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(e.cfg.SampleRateHz),
					LanguageCode:    e.cfg.LanguageCode,
				},
				InterimResults: e.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return classify("speech.config", err)
	}

	// The stream and callback go in as locals: a retried Start re-assigns
	// the fields while an older listen goroutine may still be draining.
	go listen(stream, cb)
	return nil
}

// SendAudio forwards one frame of PCM samples as LINEAR16 bytes.
func (e *Engine) SendAudio(ctx context.Context, samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	err := e.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: buf,
		},
	})
	return classify("speech.send", err)
}

// Close ends the streaming session.
func (e *Engine) Close() error {
	if e.stream != nil {
		return e.stream.CloseSend()
	}
	return nil
}

// listen receives transcript responses and invokes callbacks until the
// stream ends. Each Start launches its own listen over its own stream.
func listen(stream speechpb.Speech_StreamingRecognizeClient, cb recognizer.Callback) {
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			cb.OnError(classify("speech.recv", err))
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnPartial(alt.Transcript, float64(alt.Confidence))
			}
		}
	}
}

// classify maps gRPC status codes onto the pipeline fault taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fault.Wrap(fault.KindAuthorization, op, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return fault.Wrap(fault.KindTransient, op, err)
	default:
		return fault.Wrap(fault.KindPermanent, op, err)
	}
}
