package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
)

// responseOK and responseOKPostponed are the two fixed status-word
// trailers an anticipated response can carry (spec.md §4.F "Anticipated
// responses").
var (
	responseOK           = []byte{0x90, 0x00}
	responseOKPostponed  = []byte{0x62, 0x00}
)

// anticipateResponse builds the response the card is expected to give
// for cmd at session-close time, without ever transmitting it: the SAM
// digest must be fed this anticipated exchange before it can produce
// the terminal signature (spec.md §4.F, §5 "digest feed order").
func (m *CardTransactionManager) anticipateResponse(cmd command.Command) (*apdu.Response, error) {
	switch c := cmd.(type) {
	case *command.IncreaseDecrease:
		value, ok := m.img.GetCounterValue(c.SFI(), c.CounterNumber())
		if !ok {
			return nil, &calypsoerr.IllegalStateError{Reason: "anticipated response: counter value unknown"}
		}
		delta := c.IncDecValue()
		if c.IsDecrease() {
			delta = -delta
		}
		newValue := value + delta
		data := []byte{byte(newValue >> 16), byte(newValue >> 8), byte(newValue)}
		var v [3]byte
		copy(v[:], data)
		c.ComputedValue = v
		raw := append(append([]byte{}, data...), responseOK...)
		return apdu.ParseResponse(raw)

	case *command.IncreaseDecreaseMultiple:
		var data []byte
		for _, num := range c.CounterNumbers() {
			value, ok := m.img.GetCounterValue(c.SFI(), int(num))
			if !ok {
				return nil, &calypsoerr.IllegalStateError{Reason: "anticipated response: counter value unknown"}
			}
			delta := c.ValueFor(num)
			if c.IsDecrease() {
				delta = -delta
			}
			newValue := value + delta
			data = append(data, num, byte(newValue>>16), byte(newValue>>8), byte(newValue))
		}
		raw := append(append([]byte{}, data...), responseOK...)
		return apdu.ParseResponse(raw)

	case *command.SVModify:
		return apdu.ParseResponse(append([]byte{}, responseOKPostponed...))

	default:
		return apdu.ParseResponse(append([]byte{}, responseOK...))
	}
}

// anticipateAll builds anticipated responses for every queued command,
// in order, used to feed the SAM digest before the terminal signature
// is requested at session-close time.
func (m *CardTransactionManager) anticipateAll(cmds []command.Command) ([]*apdu.Response, error) {
	out := make([]*apdu.Response, len(cmds))
	for i, c := range cmds {
		r, err := m.anticipateResponse(c)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
