package badger

import (
	"errors"
	"fmt"
)

// Key prefixes for different data types
const (
	documentPrefix       = "vecdoc"
	documentSourcePrefix = "vecdocs"
	jobPrefix            = "job"
	checkpointSuffix     = "chkpt"
)

var errStopScan = errors.New("stop scan")

// makeDocumentKey generates a key for a vector document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// documentScanPrefix is the prefix shared by all document keys.
// The trailing separator keeps the source index out of document scans.
func documentScanPrefix() []byte {
	return []byte(documentPrefix + ":")
}

// makeDocumentSourceKey generates a composite key for the source-type index.
// Format: prefix:sourceType:id
func makeDocumentSourceKey(sourceType, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentSourcePrefix, sourceType, id))
}

// makePartialDocumentSourceKey generates a partial key for source-type scans.
// Format: prefix:sourceType:
func makePartialDocumentSourceKey(sourceType string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentSourcePrefix, sourceType))
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeCheckpointKey generates a key for migration checkpoints.
func makeCheckpointKey(migrationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", migrationID, checkpointSuffix))
}
