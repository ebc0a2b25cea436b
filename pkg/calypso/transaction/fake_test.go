package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/sam"
)

// fakeTransmitter hands back one canned *reader.CardResponse per call
// to Transmit, in order, recording every request it was given.
type fakeTransmitter struct {
	responses []*reader.CardResponse
	errs      []error
	calls     []*reader.CardRequest
	i         int
}

func (f *fakeTransmitter) Transmit(req *reader.CardRequest, cc reader.ChannelControl) (*reader.CardResponse, error) {
	f.calls = append(f.calls, req)
	if f.i >= len(f.responses) {
		return &reader.CardResponse{}, nil
	}
	resp := f.responses[f.i]
	var err error
	if f.i < len(f.errs) {
		err = f.errs[f.i]
	}
	f.i++
	return resp, err
}

func okResp(data ...byte) *reader.CardResponse {
	raw := append(append([]byte{}, data...), 0x90, 0x00)
	r, _ := apdu.ParseResponse(raw)
	return &reader.CardResponse{Responses: []*apdu.Response{r}}
}

func respondingWith(raws ...[]byte) *reader.CardResponse {
	resp := &reader.CardResponse{}
	for _, raw := range raws {
		r, _ := apdu.ParseResponse(raw)
		resp.Responses = append(resp.Responses, r)
	}
	return resp
}

// fakeSAM is a minimal stand-in for sam.ControlSamTransactionManager:
// every Prepare* call just records it was asked for, and ProcessCommands
// is a no-op — each getter returns a fixed canned value.
type fakeSAM struct {
	challenge         []byte
	terminalSignature []byte
	cipheredPin       []byte
	cipheredKey       []byte
	complementaryData []byte

	kif byte
	kvc byte

	authorized bool

	digestAuthenticateErr error
	svCheckErr            error

	updateSessionCalls []struct {
		requests, responses [][]byte
		skipFirstN          int
	}
	initializeSessionCalls int
}

func newFakeSAM() *fakeSAM {
	return &fakeSAM{
		challenge:         []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		terminalSignature: []byte{0xAA, 0xBB, 0xCC, 0xDD},
		cipheredPin:       []byte{1, 2, 3, 4, 5, 6, 7, 8},
		cipheredKey:       make([]byte, 16),
		complementaryData: []byte{0x01, 0x02, 0x03},
		kif:               0x21,
		kvc:               0x22,
		authorized:        true,
	}
}

func (f *fakeSAM) PrepareGetChallenge() error { return nil }
func (f *fakeSAM) GetChallenge() ([]byte, error) { return f.challenge, nil }

func (f *fakeSAM) InitializeSession(openResponseData []byte, kif, kvc byte, isConfidential, isSessionAborted bool) error {
	f.initializeSessionCalls++
	return nil
}

func (f *fakeSAM) UpdateSession(requests, responses [][]byte, skipFirstN int) error {
	f.updateSessionCalls = append(f.updateSessionCalls, struct {
		requests, responses [][]byte
		skipFirstN          int
	}{requests, responses, skipFirstN})
	return nil
}

func (f *fakeSAM) PrepareSessionClosing() error           { return nil }
func (f *fakeSAM) TerminalSignature() ([]byte, error)     { return f.terminalSignature, nil }
func (f *fakeSAM) PrepareDigestAuthenticate(sig []byte) error { return f.digestAuthenticateErr }
func (f *fakeSAM) PrepareGiveRandom() error               { return nil }

func (f *fakeSAM) PrepareCardCipherPin(curPin, newPin []byte) error { return nil }
func (f *fakeSAM) CipheredPin() ([]byte, error)                     { return f.cipheredPin, nil }

func (f *fakeSAM) PrepareCardGenerateKey(issuerKif, issuerKvc, newKif, newKvc byte) error { return nil }
func (f *fakeSAM) CipheredKey() ([]byte, error)                                          { return f.cipheredKey, nil }

func (f *fakeSAM) PrepareSvPrepareLoad(svGetHeader, svGetData []byte) error { return nil }
func (f *fakeSAM) PrepareSvPrepareDebitOrUndebit(op sam.SVOperation, svGetHeader, svGetData []byte) error {
	return nil
}
func (f *fakeSAM) SvComplementaryData() ([]byte, error) { return f.complementaryData, nil }
func (f *fakeSAM) PrepareSvCheck(svOperationData []byte) error { return f.svCheckErr }

func (f *fakeSAM) ComputeKif(level sam.WriteAccessLevel, cardKif, kvc byte) (byte, error) {
	return f.kif, nil
}
func (f *fakeSAM) ComputeKvc(level sam.WriteAccessLevel, cardKvc byte) (byte, error) {
	return f.kvc, nil
}
func (f *fakeSAM) IsSessionKeyAuthorized(kif, kvc byte) bool { return f.authorized }

func (f *fakeSAM) ProcessCommands() error { return nil }

// newTestCard returns a rev3 card image with PIN and SV features
// enabled and a generous payload capacity, suitable as a default
// fixture across this package's tests.
func newTestCard() *card.CalypsoCard {
	img := card.New()
	img.Product.Type = card.ProductRev3
	img.Product.BufferScheme = card.BufferSchemeBytes
	img.Product.ModificationsBufferCap = 430
	img.Product.PayloadCapacity = 235
	img.Product.PINFeature = true
	img.Product.SVFeature = true
	img.Product.ExtendedModeSupported = true
	return img
}

func newTestManager(img *card.CalypsoCard, tx *fakeTransmitter, s *fakeSAM, settings SecuritySettings) *CardTransactionManager {
	return New(img, tx, s, true, settings)
}
