package uploadresume

type Config struct {
	// ArchiveDir, when set, receives a copy of every uploaded resume text
	// under <ArchiveDir>/<userId>/<uploadId>.txt.
	ArchiveDir string
}
