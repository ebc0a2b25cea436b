package card

// SetContent replaces a record's bytes outright (spec.md ##4.D).
func (c *CalypsoCard) SetContent(sfi byte, recNo int, data []byte) {
	f := c.getOrCreateFile(sfi)
	cp := make([]byte, len(data))
	copy(cp, data)
	f.Records[recNo] = cp
}

// SetContentAtOffset writes data at offset within the record,
// left-padding with zeros if the existing record is shorter (spec.md
// ##4.D).
func (c *CalypsoCard) SetContentAtOffset(sfi byte, recNo int, data []byte, offset int) {
	f := c.getOrCreateFile(sfi)
	existing := f.Records[recNo]

	need := offset + len(data)
	out := make([]byte, max(len(existing), need))
	copy(out, existing)
	copy(out[offset:], data)
	f.Records[recNo] = out
}

// FillContent binary-ORs data into the existing record starting at
// offset; bytes beyond the current record length are taken verbatim
// from data (spec.md ##4.D, invariant 7).
func (c *CalypsoCard) FillContent(sfi byte, recNo int, data []byte, offset int) {
	f := c.getOrCreateFile(sfi)
	existing := f.Records[recNo]

	need := offset + len(data)
	out := make([]byte, max(len(existing), need))
	copy(out, existing)
	for i, b := range data {
		idx := offset + i
		if idx < len(existing) {
			out[idx] = existing[idx] | b
		} else {
			out[idx] = b
		}
	}
	f.Records[recNo] = out
}

// SetCounter writes a 3-byte big-endian counter value at the slot for
// cntNo within record #1 of sfi (spec.md ##4.D:
// setCounter(sfi,cntNo,v) == setContent(sfi,1,v,(cntNo-1)*3)).
func (c *CalypsoCard) SetCounter(sfi byte, cntNo int, value [3]byte) {
	c.SetContentAtOffset(sfi, 1, value[:], (cntNo-1)*3)
}

// GetCounterValue decodes the 3-byte big-endian counter cntNo from
// record #1 of sfi. ok is false if the slot is absent.
func (c *CalypsoCard) GetCounterValue(sfi byte, cntNo int) (value int, ok bool) {
	f := c.filesBySFI[sfi]
	if f == nil {
		return 0, false
	}
	rec := f.Records[1]
	off := (cntNo - 1) * 3
	if off+3 > len(rec) {
		return 0, false
	}
	return int(rec[off])<<16 | int(rec[off+1])<<8 | int(rec[off+2]), true
}

// AddCyclicContent prepends a new record to a cyclic EF: existing
// records shift up by one (1->2->3->...), the new bytes become record
// #1 (spec.md ##3 invariant, ##4.D). This is explicitly non-idempotent.
func (c *CalypsoCard) AddCyclicContent(sfi byte, data []byte) {
	f := c.getOrCreateFile(sfi)

	maxRec := 0
	for recNo := range f.Records {
		if recNo > maxRec {
			maxRec = recNo
		}
	}
	for recNo := maxRec; recNo >= 1; recNo-- {
		if v, ok := f.Records[recNo]; ok {
			f.Records[recNo+1] = v
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.Records[1] = cp
}
