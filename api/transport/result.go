package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResultCode classifies the outcome of an API call. The numeric value is the
// wire id and must never change once released.
type ResultCode int8

const (
	Success         ResultCode = 1
	IllegalArgument ResultCode = -1
	Warn            ResultCode = -2
	Fail            ResultCode = -3
)

type resultMeta struct {
	symbol string
	name   string
	note   string
}

var resultCatalog = map[ResultCode]resultMeta{
	Success:         {symbol: "Success", name: "success", note: "operation completed normally"},
	IllegalArgument: {symbol: "IllegalArgument", name: "illegal argument", note: "the request parameters are invalid"},
	Warn:            {symbol: "Warn", name: "warning", note: "the request was understood but refused, caller-side problem"},
	Fail:            {symbol: "Fail", name: "failure", note: "the service failed to complete the request"},
}

// ParseResultCode returns the code for a wire id.
func ParseResultCode(id int8) (ResultCode, bool) {
	rc := ResultCode(id)
	if !rc.Valid() {
		return 0, false
	}
	return rc, true
}

// Valid reports whether rc is one of the four released codes.
func (rc ResultCode) Valid() bool {
	_, ok := resultCatalog[rc]
	return ok
}

func (rc ResultCode) String() string {
	if m, ok := resultCatalog[rc]; ok {
		return m.symbol
	}
	return "ResultCode(" + strconv.Itoa(int(rc)) + ")"
}

// Name is the human-readable display name.
func (rc ResultCode) Name() string {
	return resultCatalog[rc].name
}

// Note describes when the code is used.
func (rc ResultCode) Note() string {
	return resultCatalog[rc].note
}

func (rc ResultCode) MarshalJSON() ([]byte, error) {
	if !rc.Valid() {
		return nil, fmt.Errorf("transport: cannot encode unknown result code %d", int8(rc))
	}
	return []byte(strconv.Itoa(int(rc))), nil
}

func (rc *ResultCode) UnmarshalJSON(data []byte) error {
	var id int8
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("transport: decode result code: %w", err)
	}
	parsed, ok := ParseResultCode(id)
	if !ok {
		return fmt.Errorf("transport: unknown result code id %d", id)
	}
	*rc = parsed
	return nil
}
