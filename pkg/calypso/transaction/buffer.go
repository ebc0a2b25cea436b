package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
)

// commandSessionBufferSize returns the modifications-buffer cost of
// cmd: the full APDU length minus its 5-byte header plus a fixed
// per-command surcharge for byte-counted cards, or a flat 1 for
// operation-counted cards (spec.md §4.F, §9 supplement 4).
func (m *CardTransactionManager) commandSessionBufferSize(cmd command.Command) int {
	if !m.img.IsModificationsCounterInBytes() {
		return 1
	}
	req := cmd.Request()
	data, _ := req.Bytes()
	return len(data) + sessionBufferCmdAdditionalCost - apduHeaderLength
}

func (m *CardTransactionManager) resetModificationsBufferCounter() {
	m.modificationsCounter = m.img.ModificationsCounter()
}

// splitBySessionBuffer partitions cmds into batches such that, applied
// in order, none of them drives the running modifications counter
// negative — closing and reopening the session between batches is the
// caller's responsibility when more than one batch is produced (spec.md
// §4.F "Modifications-buffer budget", §8 invariant 3). A command that
// alone exceeds the full buffer capacity cannot ever fit and is
// reported as a SessionBufferOverflowError.
func (m *CardTransactionManager) splitBySessionBuffer(cmds []command.Command) ([][]command.Command, int, error) {
	var batches [][]command.Command
	var current []command.Command
	remaining := m.modificationsCounter

	for _, cmd := range cmds {
		if !cmd.UsesSessionBuffer() {
			current = append(current, cmd)
			continue
		}

		cost := m.commandSessionBufferSize(cmd)
		if cost > m.img.ModificationsCounter() {
			return nil, 0, &calypsoerr.SessionBufferOverflowError{Requested: cost, Available: m.img.ModificationsCounter()}
		}

		if remaining-cost < 0 {
			if !m.settings.MultipleSessionEnabled {
				return nil, 0, &calypsoerr.SessionBufferOverflowError{Requested: cost, Available: remaining}
			}
			batches = append(batches, current)
			current = nil
			remaining = m.img.ModificationsCounter()
		}

		remaining -= cost
		current = append(current, cmd)
	}
	batches = append(batches, current)
	return batches, remaining, nil
}
