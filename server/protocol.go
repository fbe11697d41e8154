package server

import (
	"fmt"

	"github.com/hupe1980/convomesh/normalize"
)

// Client frame types of the voice channel.
const (
	FrameConfigure   = "configure"
	FrameText        = "text"
	FrameTranscript  = "transcript"
	FrameImage       = "image"
	FrameMultimodal  = "multimodal"
	FrameFile        = "file"
	FrameCameraFrame = "camera_frame"
)

// Server frame types of the voice channel.
const (
	FrameConfigured  = "configured"
	FrameDelta       = "delta"
	FrameDone        = "done"
	FrameError       = "error"
	FrameUnsupported = "unsupported"
)

// ClientFrame is one inbound frame of the voice channel. Which fields apply
// depends on Type.
type ClientFrame struct {
	Type           string   `json:"type"`
	UserID         string   `json:"user_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Text           string   `json:"text,omitempty"`
	Image          string   `json:"image,omitempty"`
	Images         []string `json:"images,omitempty"`
	FileName       string   `json:"file_name,omitempty"`
	FileContent    string   `json:"file_content,omitempty"`
	Frame          string   `json:"frame,omitempty"`
}

// ServerFrame is one outbound frame of the voice channel.
type ServerFrame struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Run            uint64 `json:"run,omitempty"`
	Text           string `json:"text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// errUnknownFrame is returned by Input for types it does not map.
type errUnknownFrame string

func (e errUnknownFrame) Error() string { return fmt.Sprintf("unknown frame type %q", string(e)) }

// Input maps a frame onto a normalizer input. configure and camera_frame
// frames carry no input and yield an error, as do unknown types.
func (f ClientFrame) Input() (normalize.Input, error) {
	switch f.Type {
	case FrameText:
		return normalize.TextInput{Text: f.Text}, nil
	case FrameTranscript:
		return normalize.TranscriptInput{Text: f.Text}, nil
	case FrameImage:
		return normalize.LegacyImageInput{Image: f.Image}, nil
	case FrameMultimodal:
		return normalize.MultimodalInput{Text: f.Text, ImageURLs: f.Images}, nil
	case FrameFile:
		return normalize.FileInput{Text: f.Text, FileName: f.FileName, FileContent: f.FileContent}, nil
	default:
		return nil, errUnknownFrame(f.Type)
	}
}
