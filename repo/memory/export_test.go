package memory

import "github.com/byte4ever/workbench_sync/repo"

// BlobContentForTest exposes blobContent.
func (s *Store) BlobContentForTest(
	ref repo.Ref,
	id string,
) (string, error) {
	return s.blobContent(ref, id)
}
