package editor

import (
	"fmt"

	"github.com/ehrlich-b/quill/internal/document"
	"github.com/ehrlich-b/quill/internal/protocol"
)

// Replay applies one broadcast frame to a replica. Records that were
// rejected by the coordinator are skipped; SUCCESS records are re-run at the
// replica's own version, and END advances it. A non-nil error means the
// replica has drifted and must be rebuilt from a snapshot.
func Replay(doc *document.Document, f protocol.Frame) error {
	if f.Version != doc.Version() {
		return fmt.Errorf("frame version %d, replica at %d", f.Version, doc.Version())
	}
	for _, rec := range f.Records {
		if rec.Status != protocol.StatusSuccess {
			continue
		}
		cmd, err := protocol.Parse(rec.Raw)
		if err != nil {
			return fmt.Errorf("unparseable record %q: %w", rec.Raw, err)
		}
		if st := doc.Apply(doc.Version(), cmd, rec.Username, rec.Raw); st != protocol.StatusSuccess {
			return fmt.Errorf("replay %q: %v", rec.Raw, st)
		}
	}
	doc.IncrementVersion()
	return nil
}
