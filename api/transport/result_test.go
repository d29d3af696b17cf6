package transport_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/svckit/api/transport"
)

func TestResultCode_wire_ids_are_stable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code transport.ResultCode
		wire string
		name string
	}{
		{code: transport.Success, wire: "1", name: "Success"},
		{code: transport.IllegalArgument, wire: "-1", name: "IllegalArgument"},
		{code: transport.Warn, wire: "-2", name: "Warn"},
		{code: transport.Fail, wire: "-3", name: "Fail"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := json.Marshal(tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.wire, string(out))
			assert.Equal(t, tc.name, tc.code.String())
			assert.NotEmpty(t, tc.code.Name())
			assert.NotEmpty(t, tc.code.Note())

			var back transport.ResultCode
			require.NoError(t, json.Unmarshal(out, &back))
			assert.Equal(t, tc.code, back)
		})
	}
}

func TestResultCode_unknown_id_is_rejected(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"0", "2", "-4", "127", `"Success"`, "1.5"} {
		var rc transport.ResultCode
		assert.Error(t, json.Unmarshal([]byte(raw), &rc), raw)
	}

	_, err := json.Marshal(transport.ResultCode(0))
	assert.Error(t, err)
}

func TestParseResultCode(t *testing.T) {
	t.Parallel()

	rc, ok := transport.ParseResultCode(-2)
	assert.True(t, ok)
	assert.Equal(t, transport.Warn, rc)

	_, ok = transport.ParseResultCode(0)
	assert.False(t, ok)
	assert.False(t, transport.ResultCode(9).Valid())
	assert.Equal(t, "ResultCode(9)", transport.ResultCode(9).String())
}
