package transaction

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
)

// Range bounds for the command parameters below, mirrored from
// CalypsoCardConstant (spec.md §9 supplement): SFI 0..30, record number
// 1..250, counter number 1..83 (250/3), counter value 0..0xFFFFFF,
// binary offset 0..249 (record files) or 0..0x7FFF (binary files),
// data length 1..250.
const (
	sfiMin, sfiMax                 = 0, 30
	recordNumberMin, recordNumberMax = 1, 250
	counterNumberMin, counterNumberMax = 1, 83
	counterValueMin, counterValueMax   = 0, 0xFFFFFF
	offsetMin, offsetMax               = 0, 249
	offsetBinaryMax                    = 0x7FFF
	dataLengthMin, dataLengthMax       = 1, 250
)

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &calypsoerr.IllegalArgumentError{Command: name, Reason: fmt.Sprintf("must be within %d..%d, got %d", lo, hi, v)}
	}
	return nil
}

// PrepareSelectFileByLID queues a SELECT_FILE addressed by LID.
func (m *CardTransactionManager) PrepareSelectFileByLID(lid uint16) {
	m.commands = append(m.commands, command.NewSelectFileByLID(m.img.CardClass(), m.img.IsLegacy(), m.img.Product.Type, lid))
}

// PrepareSelectFileByControl queues a SELECT_FILE navigation command
// (first/next EF under the current DF, or the current DF itself).
func (m *CardTransactionManager) PrepareSelectFileByControl(ctrl command.SelectControl) {
	m.commands = append(m.commands, command.NewSelectFileByControl(m.img.CardClass(), m.img.Product.Type, ctrl))
}

// PrepareGetData queues a GET_DATA command for the given tag.
func (m *CardTransactionManager) PrepareGetData(tag command.GetDataTag) {
	m.commands = append(m.commands, command.NewGetData(m.img.CardClass(), m.img.Product.Type, tag))
}

// PrepareReadRecord queues a single-record READ_RECORDS with no
// explicit record size. Inside a secure session in contact mode the
// card requires an explicit size: use PrepareReadRecords there.
func (m *CardTransactionManager) PrepareReadRecord(sfi, recordNumber byte) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("record number", int(recordNumber), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	if m.isSessionOpen && !m.isContactless {
		return &calypsoerr.IllegalStateError{Reason: "explicit record size is expected inside a secure session in contact mode"}
	}
	m.commands = append(m.commands, command.NewReadRecords(m.img.CardClass(), sfi, recordNumber, command.ReadOneRecord, 0))
	return nil
}

// PrepareReadRecords queues one or more READ_RECORDS covering
// [fromRecordNumber..toRecordNumber], splitting across several APDUs
// when the range exceeds the card's payload capacity (spec.md §9
// supplement 5, original_source prepareReadRecords).
func (m *CardTransactionManager) PrepareReadRecords(sfi, fromRecordNumber, toRecordNumber, recordSize byte) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("fromRecordNumber", int(fromRecordNumber), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	if err := checkRange("toRecordNumber", int(toRecordNumber), int(fromRecordNumber), recordNumberMax); err != nil {
		return err
	}

	cla := m.img.CardClass()
	if toRecordNumber == fromRecordNumber {
		m.commands = append(m.commands, command.NewReadRecords(cla, sfi, fromRecordNumber, command.ReadOneRecord, int(recordSize)))
		return nil
	}

	nbBytesPerRecord := int(recordSize) + 2
	nbRecordsPerApdu := m.img.PayloadCapacity() / nbBytesPerRecord
	if nbRecordsPerApdu == 0 {
		nbRecordsPerApdu = 1
	}
	dataSizeMaxPerApdu := nbRecordsPerApdu * nbBytesPerRecord

	currentRecordNumber := int(fromRecordNumber)
	remaining := int(toRecordNumber) - int(fromRecordNumber) + 1

	for currentRecordNumber < int(toRecordNumber) {
		currentLength := dataSizeMaxPerApdu
		if remaining <= nbRecordsPerApdu {
			currentLength = remaining * nbBytesPerRecord
		}
		m.commands = append(m.commands, command.NewReadRecords(cla, sfi, byte(currentRecordNumber), command.ReadMultipleRecords, currentLength))
		step := currentLength / nbBytesPerRecord
		currentRecordNumber += step
		remaining -= step
	}

	if currentRecordNumber == int(toRecordNumber) {
		m.commands = append(m.commands, command.NewReadRecords(cla, sfi, byte(currentRecordNumber), command.ReadOneRecord, int(recordSize)))
	}
	return nil
}

// PrepareReadRecordsPartially queues READ_RECORD_MULTIPLE over
// [fromRecordNumber..toRecordNumber], reading only the [offset,
// offset+nbBytesToRead) slice of each record.
func (m *CardTransactionManager) PrepareReadRecordsPartially(sfi, fromRecordNumber, toRecordNumber byte, offset, nbBytesToRead int) error {
	if m.img.Product.Type != card.ProductRev3 {
		return &calypsoerr.IllegalStateError{Reason: "READ_RECORD_MULTIPLE is not available for this card"}
	}
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("fromRecordNumber", int(fromRecordNumber), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	if err := checkRange("toRecordNumber", int(toRecordNumber), int(fromRecordNumber), recordNumberMax); err != nil {
		return err
	}
	if err := checkRange("offset", offset, offsetMin, offsetMax); err != nil {
		return err
	}
	if err := checkRange("nbBytesToRead", nbBytesToRead, dataLengthMin, dataLengthMax-offset); err != nil {
		return err
	}

	cla := m.img.CardClass()
	nbRecordsPerApdu := m.img.PayloadCapacity() / nbBytesToRead
	if nbRecordsPerApdu == 0 {
		nbRecordsPerApdu = 1
	}

	for current := int(fromRecordNumber); current <= int(toRecordNumber); current += nbRecordsPerApdu {
		m.commands = append(m.commands, command.NewReadRecordMultiple(cla, sfi, byte(current), offset, nbBytesToRead, 1))
	}
	return nil
}

// PrepareReadBinary queues READ_BINARY covering [offset,
// offset+nbBytesToRead), chunked to the card's payload capacity. When
// sfi is non-zero a leading 1-byte "tip" read selects the file first
// (original_source prepareReadBinary).
func (m *CardTransactionManager) PrepareReadBinary(sfi byte, offset, nbBytesToRead int) error {
	if m.img.Product.Type != card.ProductRev3 {
		return &calypsoerr.IllegalStateError{Reason: "READ_BINARY is not available for this card"}
	}
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("offset", offset, offsetMin, offsetBinaryMax); err != nil {
		return err
	}
	if nbBytesToRead < 1 {
		return &calypsoerr.IllegalArgumentError{Command: "READ_BINARY", Reason: "nbBytesToRead must be >= 1"}
	}

	cla := m.img.CardClass()
	if sfi > 0 {
		m.commands = append(m.commands, command.NewReadBinary(cla, sfi, 0, 1))
	}

	payloadCapacity := m.img.PayloadCapacity()
	currentOffset := offset
	remaining := nbBytesToRead
	for remaining > 0 {
		currentLength := remaining
		if currentLength > payloadCapacity {
			currentLength = payloadCapacity
		}
		m.commands = append(m.commands, command.NewReadBinary(cla, sfi, currentOffset, currentLength))
		currentOffset += currentLength
		remaining -= currentLength
	}
	return nil
}

// PrepareReadCounter queues a read of the first nbCountersToRead
// counters of sfi, delegating to PrepareReadRecords (counters live in
// record 1 of a counter EF, 3 bytes each).
func (m *CardTransactionManager) PrepareReadCounter(sfi byte, nbCountersToRead int) error {
	return m.PrepareReadRecords(sfi, 1, 1, byte(nbCountersToRead*3))
}

// PrepareSearchRecords queues SEARCH_RECORD_MULTIPLE. Only available
// on rev3 cards.
func (m *CardTransactionManager) PrepareSearchRecords(sfi, startRecord byte, offset int, searchData, mask []byte, repeatedOffset, fetchFirstMatch bool) error {
	if m.img.Product.Type != card.ProductRev3 {
		return &calypsoerr.IllegalStateError{Reason: "SEARCH_RECORD_MULTIPLE is not available for this card"}
	}
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("startAtRecord", int(startRecord), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	if err := checkRange("offset", offset, offsetMin, offsetMax); err != nil {
		return err
	}
	if err := checkRange("searchData", len(searchData), dataLengthMin, dataLengthMax-offset); err != nil {
		return err
	}
	if len(mask) > 0 {
		if err := checkRange("mask", len(mask), dataLengthMin, len(searchData)); err != nil {
			return err
		}
	}
	m.commands = append(m.commands, command.NewSearchRecordMultiple(m.img.CardClass(), sfi, startRecord, offset, searchData, mask, repeatedOffset, fetchFirstMatch))
	return nil
}

// PrepareAppendRecord queues APPEND_RECORD.
func (m *CardTransactionManager) PrepareAppendRecord(sfi byte, recordData []byte) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	m.commands = append(m.commands, command.NewAppendRecord(m.img.CardClass(), sfi, recordData))
	return nil
}

// PrepareUpdateRecord queues UPDATE_RECORD.
func (m *CardTransactionManager) PrepareUpdateRecord(sfi, recordNumber byte, recordData []byte) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("record number", int(recordNumber), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	m.commands = append(m.commands, command.NewUpdateRecord(m.img.CardClass(), sfi, recordNumber, recordData))
	return nil
}

// PrepareWriteRecord queues WRITE_RECORD.
func (m *CardTransactionManager) PrepareWriteRecord(sfi, recordNumber byte, recordData []byte) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("record number", int(recordNumber), recordNumberMin, recordNumberMax); err != nil {
		return err
	}
	m.commands = append(m.commands, command.NewWriteRecord(m.img.CardClass(), sfi, recordNumber, recordData))
	return nil
}

// PrepareUpdateBinary queues UPDATE_BINARY, chunked to payload capacity.
func (m *CardTransactionManager) PrepareUpdateBinary(sfi byte, offset int, data []byte) error {
	return m.prepareUpdateOrWriteBinary(true, sfi, offset, data)
}

// PrepareWriteBinary queues WRITE_BINARY, chunked to payload capacity.
func (m *CardTransactionManager) PrepareWriteBinary(sfi byte, offset int, data []byte) error {
	return m.prepareUpdateOrWriteBinary(false, sfi, offset, data)
}

func (m *CardTransactionManager) prepareUpdateOrWriteBinary(isUpdate bool, sfi byte, offset int, data []byte) error {
	if m.img.Product.Type != card.ProductRev3 {
		return &calypsoerr.IllegalStateError{Reason: "UPDATE_BINARY/WRITE_BINARY is not available for this card"}
	}
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("offset", offset, offsetMin, offsetBinaryMax); err != nil {
		return err
	}
	if len(data) == 0 {
		return &calypsoerr.IllegalArgumentError{Command: "UPDATE_BINARY", Reason: "data must not be empty"}
	}

	cla := m.img.CardClass()
	if sfi > 0 {
		m.commands = append(m.commands, command.NewReadBinary(cla, sfi, 0, 1))
	}

	payloadCapacity := m.img.PayloadCapacity()
	currentOffset := offset
	currentIndex := 0
	for currentIndex < len(data) {
		currentLength := len(data) - currentIndex
		if currentLength > payloadCapacity {
			currentLength = payloadCapacity
		}
		slice := data[currentIndex : currentIndex+currentLength]
		if isUpdate {
			m.commands = append(m.commands, command.NewUpdateBinary(cla, sfi, currentOffset, slice))
		} else {
			m.commands = append(m.commands, command.NewWriteBinary(cla, sfi, currentOffset, slice))
		}
		currentOffset += currentLength
		currentIndex += currentLength
	}
	return nil
}

func (m *CardTransactionManager) prepareIncreaseOrDecreaseCounter(decrease bool, sfi, counterNumber byte, incDecValue int) error {
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("counterNumber", int(counterNumber), counterNumberMin, counterNumberMax); err != nil {
		return err
	}
	if err := checkRange("incDecValue", incDecValue, counterValueMin, counterValueMax); err != nil {
		return err
	}
	m.commands = append(m.commands, command.NewIncreaseDecrease(m.img.CardClass(), decrease, sfi, counterNumber, incDecValue, m.isSessionOpen))
	return nil
}

// PrepareIncreaseCounter queues INCREASE on a single counter.
func (m *CardTransactionManager) PrepareIncreaseCounter(sfi, counterNumber byte, incValue int) error {
	return m.prepareIncreaseOrDecreaseCounter(false, sfi, counterNumber, incValue)
}

// PrepareDecreaseCounter queues DECREASE on a single counter.
func (m *CardTransactionManager) PrepareDecreaseCounter(sfi, counterNumber byte, decValue int) error {
	return m.prepareIncreaseOrDecreaseCounter(true, sfi, counterNumber, decValue)
}

// PrepareSetCounter brings counterNumber in sfi to newValue, issuing an
// INCREASE or DECREASE for the difference against the last known value
// (original_source prepareSetCounter). Returns an error if the current
// value is unknown.
func (m *CardTransactionManager) PrepareSetCounter(sfi, counterNumber byte, newValue int) error {
	oldValue, ok := m.img.GetCounterValue(sfi, int(counterNumber))
	if !ok {
		return &calypsoerr.IllegalStateError{Reason: fmt.Sprintf("the value for counter %d in file %d is not available", counterNumber, sfi)}
	}
	delta := newValue - oldValue
	switch {
	case delta > 0:
		return m.PrepareIncreaseCounter(sfi, counterNumber, delta)
	case delta < 0:
		return m.PrepareDecreaseCounter(sfi, counterNumber, -delta)
	default:
		return nil
	}
}

func (m *CardTransactionManager) prepareIncreaseOrDecreaseCounters(decrease bool, sfi byte, counterNumberToValue map[byte]int) error {
	if m.img.Product.Type != card.ProductRev3 && m.img.Product.Type != card.ProductRev2 {
		return &calypsoerr.IllegalStateError{Reason: "INCREASE_MULTIPLE/DECREASE_MULTIPLE is not available for this card"}
	}
	if err := checkRange("sfi", int(sfi), sfiMin, sfiMax); err != nil {
		return err
	}
	if err := checkRange("counterNumberToIncDecValueMap", len(counterNumberToValue), counterNumberMin, counterNumberMax); err != nil {
		return err
	}
	for num, value := range counterNumberToValue {
		if err := checkRange("counterNumberToIncDecValueMapKey", int(num), counterNumberMin, counterNumberMax); err != nil {
			return err
		}
		if err := checkRange("counterNumberToIncDecValueMapValue", value, counterValueMin, counterValueMax); err != nil {
			return err
		}
	}

	nbCountersPerApdu := m.img.PayloadCapacity() / 4
	if nbCountersPerApdu == 0 {
		nbCountersPerApdu = 1
	}
	cla := m.img.CardClass()

	if len(counterNumberToValue) <= nbCountersPerApdu {
		m.commands = append(m.commands, command.NewIncreaseDecreaseMultiple(cla, decrease, sfi, counterNumberToValue))
		return nil
	}

	batch := make(map[byte]int, nbCountersPerApdu)
	i := 0
	for num, value := range counterNumberToValue {
		batch[num] = value
		i++
		if i == nbCountersPerApdu {
			m.commands = append(m.commands, command.NewIncreaseDecreaseMultiple(cla, decrease, sfi, batch))
			batch = make(map[byte]int, nbCountersPerApdu)
			i = 0
		}
	}
	if len(batch) > 0 {
		m.commands = append(m.commands, command.NewIncreaseDecreaseMultiple(cla, decrease, sfi, batch))
	}
	return nil
}

// PrepareIncreaseCounters queues one or more INCREASE_MULTIPLE,
// splitting across several APDUs when the map exceeds the card's
// payload capacity.
func (m *CardTransactionManager) PrepareIncreaseCounters(sfi byte, counterNumberToIncValue map[byte]int) error {
	return m.prepareIncreaseOrDecreaseCounters(false, sfi, counterNumberToIncValue)
}

// PrepareDecreaseCounters queues one or more DECREASE_MULTIPLE,
// splitting across several APDUs when the map exceeds the card's
// payload capacity.
func (m *CardTransactionManager) PrepareDecreaseCounters(sfi byte, counterNumberToDecValue map[byte]int) error {
	return m.prepareIncreaseOrDecreaseCounters(true, sfi, counterNumberToDecValue)
}

// PrepareCheckPinStatus queues a counter-only VERIFY_PIN, reading the
// remaining presentation count without attempting a verification.
func (m *CardTransactionManager) PrepareCheckPinStatus() error {
	if !m.img.IsPinFeatureAvailable() {
		return &calypsoerr.IllegalStateError{Reason: "PIN is not available for this card"}
	}
	m.commands = append(m.commands, command.NewVerifyPinReadCounter(m.img.CardClass()))
	return nil
}

// PrepareInvalidate queues INVALIDATE.
func (m *CardTransactionManager) PrepareInvalidate() error {
	if m.img.IsDfInvalidated() {
		return &calypsoerr.IllegalStateError{Reason: "this card is already invalidated"}
	}
	m.commands = append(m.commands, command.NewInvalidate(m.img.CardClass()))
	return nil
}

// PrepareRehabilitate queues REHABILITATE.
func (m *CardTransactionManager) PrepareRehabilitate() error {
	if !m.img.IsDfInvalidated() {
		return &calypsoerr.IllegalStateError{Reason: "this card is not invalidated"}
	}
	m.commands = append(m.commands, command.NewRehabilitate(m.img.CardClass()))
	return nil
}
