package formatresume

type Config struct {
	// StorageDir resolves resume paths that are not absolute.
	StorageDir string
	// MaxChars caps the extracted text handed to later steps. Zero means no cap.
	MaxChars int
}
