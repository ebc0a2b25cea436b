package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// GetChallenge builds GET_CHALLENGE (INS 0x84): asks the card for an
// 8-byte random challenge, used by the SAM to authenticate a PIN or
// key-management operation (spec.md ##4.C).
type GetChallenge struct {
	req *apdu.Command
}

var getChallengeStatusTable = apdu.BaseStatusTable()

func NewGetChallenge(cla apdu.Class) *GetChallenge {
	return &GetChallenge{req: apdu.NewCommand(cla, 0x84, 0x00, 0x00, nil, 8)}
}

func (c *GetChallenge) Name() string           { return "GET_CHALLENGE" }
func (c *GetChallenge) Request() *apdu.Command { return c.req }
func (c *GetChallenge) UsesSessionBuffer() bool { return false }

func (c *GetChallenge) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), getChallengeStatusTable, resp, 8); err != nil {
		return err
	}
	img.Security.Challenge = resp.DataOut()
	return nil
}
