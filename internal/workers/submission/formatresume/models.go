package formatresume

// Document is the plain text view of a resume as an ATS would parse it.
type Document struct {
	Text  string
	Pages int
}
