package tool

import (
	"github.com/hupe1980/convomesh/core"
)

// ViewCameraName names the camera snapshot tool.
const ViewCameraName = "view_camera"

// CameraText introduces a camera snapshot to the model.
const CameraText = "Esta es una captura de lo que ve mi camara ahora mismo. Usala para responder."

// FrameSource yields the latest camera frame as an image URL.
type FrameSource interface {
	LatestFrame() (url string, ok bool)
}

// NewViewCameraTool returns the view_camera tool. The frame is attached as a
// user image message after the tool result.
func NewViewCameraTool(frames FrameSource) Tool {
	return NewFunctionTool(
		ViewCameraName,
		"Mira la cámara del usuario. Llámala cuando pregunte qué ves o necesites ver algo.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, _ map[string]any) (Result, error) {
			url, ok := frames.LatestFrame()
			if !ok {
				return Fail("No hay imagen disponible. Asegurate de que tu camara este encendida."), nil
			}
			tc.Logger().Info("tool.view_camera.attached", "bytes", len(url))
			res := OK("Ya tengo la imagen. La estoy analizando.")
			res.Attachment = &core.Content{Role: core.RoleUser, Parts: []core.Part{
				core.TextPart{Text: CameraText},
				core.ImagePart{URL: url},
			}}
			return res, nil
		},
	)
}
