package card

// Backup captures a deep copy of the files collection into the single
// backup slot (spec.md ##3/##4.D: "exactly one backup slot exists").
// A second call overwrites the previous snapshot.
func (c *CalypsoCard) Backup() {
	sfi := make(map[byte]*ElementaryFile, len(c.filesBySFI))
	lid := make(map[uint16]*ElementaryFile, len(c.filesByLID))

	cloned := make(map[*ElementaryFile]*ElementaryFile, len(c.filesBySFI))
	for s, f := range c.filesBySFI {
		cf := f.clone()
		cloned[f] = cf
		sfi[s] = cf
	}
	for l, f := range c.filesByLID {
		if cf, ok := cloned[f]; ok {
			lid[l] = cf
		}
	}

	c.backup = &backupSlot{filesBySFI: sfi, filesByLID: lid}
}

// Restore swaps the files collection back to the last Backup snapshot.
// It is a no-op if no backup has been taken.
func (c *CalypsoCard) Restore() {
	if c.backup == nil {
		return
	}
	c.filesBySFI = c.backup.filesBySFI
	c.filesByLID = c.backup.filesByLID
}
