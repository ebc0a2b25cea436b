package command

import (
	"sort"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var increaseDecreaseMultipleStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6981] = apdu.StatusProperty{Message: "Not a Counters EF", Success: false, Kind: apdu.KindDataAccess}
	t[0x6986] = apdu.StatusProperty{Message: "Current file is not an EF", Success: false, Kind: apdu.KindDataAccess}
	t[0x6A80] = apdu.StatusProperty{Message: "Incorrect command data", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6A82] = apdu.StatusProperty{Message: "File not found", Success: false, Kind: apdu.KindDataAccess}
	return t
}()

// IncreaseDecreaseMultiple builds INCREASE_MULTIPLE/DECREASE_MULTIPLE
// (INS 0x3A/0x38): applies a per-counter increment or decrement to
// several counters of the same EF in a single APDU (spec.md ##4.C).
type IncreaseDecreaseMultiple struct {
	req          *apdu.Command
	decrease     bool
	sfi          byte
	counterNums  []byte
	incDecValues []int
}

// NewIncreaseDecreaseMultiple builds the request. counterNumberToValue
// maps counter number to the increment (or decrement) value; entries
// are emitted in counter-number order for a deterministic request.
func NewIncreaseDecreaseMultiple(cla apdu.Class, decrease bool, sfi byte, counterNumberToValue map[byte]int) *IncreaseDecreaseMultiple {
	ins := byte(0x3A)
	if decrease {
		ins = 0x38
	}

	nums := make([]byte, 0, len(counterNumberToValue))
	for n := range counterNumberToValue {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	data := make([]byte, 0, 4*len(nums))
	values := make([]int, 0, len(nums))
	for _, n := range nums {
		v := counterNumberToValue[n]
		values = append(values, v)
		data = append(data, n, byte(v>>16), byte(v>>8), byte(v))
	}

	p2 := sfi * 8
	return &IncreaseDecreaseMultiple{
		req:          apdu.NewCommand(cla, ins, 0x00, p2, data, 0),
		decrease:     decrease,
		sfi:          sfi,
		counterNums:  nums,
		incDecValues: values,
	}
}

func (c *IncreaseDecreaseMultiple) Name() string {
	return "INCREASE_DECREASE_MULTIPLE"
}

func (c *IncreaseDecreaseMultiple) Request() *apdu.Command { return c.req }
func (c *IncreaseDecreaseMultiple) UsesSessionBuffer() bool { return true }

// SFI, CounterNumbers, ValueFor and IsDecrease expose the fields an
// anticipated-response builder needs without reaching into the card
// image itself.
func (c *IncreaseDecreaseMultiple) SFI() byte            { return c.sfi }
func (c *IncreaseDecreaseMultiple) CounterNumbers() []byte { return c.counterNums }
func (c *IncreaseDecreaseMultiple) IsDecrease() bool     { return c.decrease }

// ValueFor returns the increment (or decrement) value requested for
// counter num, or 0 if num was not part of this command.
func (c *IncreaseDecreaseMultiple) ValueFor(num byte) int {
	for i, n := range c.counterNums {
		if n == num {
			return c.incDecValues[i]
		}
	}
	return 0
}

func (c *IncreaseDecreaseMultiple) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), increaseDecreaseMultipleStatusTable, resp, -1); err != nil {
		return err
	}
	d := resp.DataOut()
	nbCounters := len(d) / 4
	for i := 0; i < nbCounters; i++ {
		var v [3]byte
		copy(v[:], d[i*4+1:i*4+4])
		img.SetCounter(c.sfi, int(d[i*4]), v)
	}
	return nil
}
