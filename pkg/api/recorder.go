package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	vcr "gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// VCRModeEnv switches the recorder between replay (default) and record
const VCRModeEnv = "OTA_VCR_MODE"

// NewRecorder creates a VCR recorder for testing API interactions.
//
// In replay mode (default) it serves interactions from
// testdata/fixtures/<name>.yaml. With OTA_VCR_MODE=record it forwards
// requests to the real service and saves them, which requires a real token:
//
//	OTA_VCR_MODE=record OTA_TOKEN=your_token go test ./pkg/api/...
func NewRecorder(t *testing.T, name string) (*Recorder, error) {
	t.Helper()

	recording := os.Getenv(VCRModeEnv) == "record"

	// go-vcr adds the ".yaml" extension
	fixturePath := filepath.Join("testdata", "fixtures", name)

	mode := vcr.ModeReplaying
	if recording {
		mode = vcr.ModeRecording
	}

	r, err := vcr.NewAsMode(fixturePath, mode, nil)
	if err != nil {
		if errors.Is(err, cassette.ErrCassetteNotFound) {
			return nil, fmt.Errorf("cassette %q not found: %w", fixturePath, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	r.AddSaveFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		delete(i.Request.Headers, requestIDHeader)
		return nil
	})

	return &Recorder{recorder: r, recording: recording}, nil
}

// Recorder wraps a go-vcr recorder
type Recorder struct {
	recorder  *vcr.Recorder
	recording bool
}

// Stop flushes the cassette when recording
func (r *Recorder) Stop() error {
	if r.recorder != nil {
		if err := r.recorder.Stop(); err != nil {
			return fmt.Errorf("failed to stop recorder: %w", err)
		}
	}
	return nil
}

// IsRecording returns true if we're in record mode
func (r *Recorder) IsRecording() bool {
	return r.recording
}

// HTTPClient returns an HTTP client that goes through the recorder
func (r *Recorder) HTTPClient() *http.Client {
	return &http.Client{Transport: r.recorder}
}
