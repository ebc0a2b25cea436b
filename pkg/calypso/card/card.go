// Package card models the reconstructed view of a Calypso card's
// application: product characteristics, directory header, elementary
// files and their records/counters, PIN attempt counter, and stored
// value state (spec.md ##3, ##4.D).
package card

// ProductType distinguishes the generations of Calypso cards, which
// differ in APDU framing (CLA selection, OPEN_SESSION response shape)
// and in modifications-buffer accounting (byte-counted vs
// operation-counted).
type ProductType int

const (
	ProductUnknown ProductType = iota
	ProductRev1
	ProductRev2
	ProductRev3
)

// BufferScheme selects how the modifications-buffer budget is
// consumed: per-operation (legacy cards) or per-byte (rev3+).
type BufferScheme int

const (
	BufferSchemeOperations BufferScheme = iota
	BufferSchemeBytes
)

// FileType is the ISO filesystem role of a selected node.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeMF
	FileTypeDF
	FileTypeEF
)

// EFType is the Calypso elementary-file subtype, which determines how
// its record map is interpreted (spec.md ##3).
type EFType int

const (
	EFTypeUnknown EFType = iota
	EFTypeBinary
	EFTypeLinear
	EFTypeCyclic
	EFTypeCounters
	EFTypeSimulatedCounters
)

// AccessLevel is the write-access level used to open a secure session,
// selecting which KIF/KVC pair authenticates the session.
type AccessLevel int

const (
	AccessLevelPerso AccessLevel = iota
	AccessLevelLoad
	AccessLevelDebit
)

// DirectoryHeader describes the selected MF or DF (spec.md ##3).
type DirectoryHeader struct {
	LID                uint16
	AccessConditions    [4]byte
	KeyIndexes          [4]byte
	DFStatus            byte
	KIF                 [3]byte // indexed by AccessLevel
	KVC                 [3]byte // indexed by AccessLevel
}

// FileHeader describes one elementary file's static properties
// (spec.md ##3, the shared access-condition/file-header layout of
// ##4.C).
type FileHeader struct {
	LID             uint16
	Type            EFType
	RecordSize      int
	RecordsNumber   int
	AccessConditions [4]byte
	KeyIndexes      [4]byte
	DFStatus        byte
	SharedReference uint16 // 0 if this EF does not share another EF's content
}

// ElementaryFile is one EF's header plus its record store, keyed by
// 1-based record number (spec.md ##3 invariants).
type ElementaryFile struct {
	SFI     byte
	Header  FileHeader
	Records map[int][]byte
}

func newElementaryFile(sfi byte) *ElementaryFile {
	return &ElementaryFile{SFI: sfi, Records: make(map[int][]byte)}
}

// clone returns a deep copy of the file, used by CalypsoCard.Backup.
func (f *ElementaryFile) clone() *ElementaryFile {
	c := &ElementaryFile{SFI: f.SFI, Header: f.Header, Records: make(map[int][]byte, len(f.Records))}
	for k, v := range f.Records {
		cp := make([]byte, len(v))
		copy(cp, v)
		c.Records[k] = cp
	}
	return c
}

// ProductAttributes groups the static characteristics announced by
// the card at selection/open-session time.
type ProductAttributes struct {
	Type                   ProductType
	BufferScheme           BufferScheme
	ModificationsBufferCap int
	PayloadCapacity        int
	ExtendedModeSupported  bool
	SVFeature              bool
	PINFeature             bool
	PKIFeature             bool
	ApplicationSubtype     byte
	StartupInfoRaw         []byte
}

// Identity groups the card's application identity fields.
type Identity struct {
	DFName          []byte
	FullSerialNumber []byte
	PowerOnData     []byte
	SelectionResponse []byte
}

// SecurityState is the transient (per-session) security-relevant state
// maintained on the image (spec.md ##3).
type SecurityState struct {
	Challenge          []byte
	TraceabilityInfo   []byte
	PINAttemptsRemaining int
	DFRatified         bool
	TransactionCounter uint32
}

// CalypsoCard is the reconstructed view of a card's application
// (spec.md ##3 "Card image (CalypsoCard)").
type CalypsoCard struct {
	Product  ProductAttributes
	Identity Identity
	Security SecurityState

	DirectoryHeader DirectoryHeader
	directoryValid  bool

	filesBySFI map[byte]*ElementaryFile
	filesByLID map[uint16]*ElementaryFile

	SV SVState

	backup *backupSlot
}

type backupSlot struct {
	filesBySFI map[byte]*ElementaryFile
	filesByLID map[uint16]*ElementaryFile
}

// New returns an empty card image ready to be populated by a selection
// or by command side-effects.
func New() *CalypsoCard {
	return &CalypsoCard{
		filesBySFI: make(map[byte]*ElementaryFile),
		filesByLID: make(map[uint16]*ElementaryFile),
	}
}

// SetDirectoryHeader records the MF/DF directory header (from
// SELECT_FILE or GET_DATA/FCI parsing).
func (c *CalypsoCard) SetDirectoryHeader(h DirectoryHeader) {
	c.DirectoryHeader = h
	c.directoryValid = true
}

// DirectoryHeaderValid reports whether a directory header has been set.
func (c *CalypsoCard) DirectoryHeaderValid() bool { return c.directoryValid }

// getOrCreateFile returns the EF for sfi, creating an empty one in the
// SFI index if absent. The LID index is filled by SetFileHeader.
func (c *CalypsoCard) getOrCreateFile(sfi byte) *ElementaryFile {
	if f, ok := c.filesBySFI[sfi]; ok {
		return f
	}
	f := newElementaryFile(sfi)
	c.filesBySFI[sfi] = f
	return f
}

// SetFileHeader installs or updates an EF's static header, as produced
// by SELECT_FILE or GET_DATA/EF_LIST parsing.
func (c *CalypsoCard) SetFileHeader(sfi byte, h FileHeader) {
	f := c.getOrCreateFile(sfi)
	f.Header = h
	if h.LID != 0 {
		c.filesByLID[h.LID] = f
	}
}

// GetFileBySfi returns the EF for sfi, or nil if unknown. Equality of
// returned files is by SFI (spec.md ##4.D accessor contract).
func (c *CalypsoCard) GetFileBySfi(sfi byte) *ElementaryFile {
	return c.filesBySFI[sfi]
}

// GetFileByLid returns the EF for lid, or nil if unknown.
func (c *CalypsoCard) GetFileByLid(lid uint16) *ElementaryFile {
	return c.filesByLID[lid]
}

// GetFiles returns all known elementary files (stable references, not
// copies).
func (c *CalypsoCard) GetFiles() []*ElementaryFile {
	out := make([]*ElementaryFile, 0, len(c.filesBySFI))
	for _, f := range c.filesBySFI {
		out = append(out, f)
	}
	return out
}

// IsPinBlocked derives blocked status from the attempts counter
// (spec.md ##3 invariant: isPinBlocked <=> attemptsRemaining == 0).
func (c *CalypsoCard) IsPinBlocked() bool {
	return c.Security.PINAttemptsRemaining == 0
}
