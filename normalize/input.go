package normalize

// Input is one user input event. The set of variants is closed; Normalize
// dispatches over it with an exhaustive type switch.
type Input interface {
	// Kind names the modality for logs and wire frames.
	Kind() string
	isInput()
}

// TextInput is a typed chat message.
type TextInput struct {
	Text string
}

// TranscriptInput is the final speech-to-text result of a voice turn.
type TranscriptInput struct {
	Text string
}

// LegacyImageInput is a single inline image sent without text. Image holds a
// data URL or a bare base64 JPEG payload.
type LegacyImageInput struct {
	Image string
}

// MultimodalInput carries optional text and any number of image URLs.
type MultimodalInput struct {
	Text      string
	ImageURLs []string
}

// FileInput is a text file shared by the user together with an optional
// message.
type FileInput struct {
	Text        string
	FileName    string
	FileContent string
}

// ImageUploadInput is an image uploaded through the chat surface. DataURL is
// what the model sees; PublicURLs are the hosted copies recorded in the log.
type ImageUploadInput struct {
	Text       string
	FileName   string
	DataURL    string
	PublicURLs []string
}

func (TextInput) Kind() string        { return "text" }
func (TranscriptInput) Kind() string  { return "transcript" }
func (LegacyImageInput) Kind() string { return "image" }
func (MultimodalInput) Kind() string  { return "multimodal" }
func (FileInput) Kind() string        { return "file" }
func (ImageUploadInput) Kind() string { return "image_upload" }

func (TextInput) isInput()        {}
func (TranscriptInput) isInput()  {}
func (LegacyImageInput) isInput() {}
func (MultimodalInput) isInput()  {}
func (FileInput) isInput()        {}
func (ImageUploadInput) isInput() {}
