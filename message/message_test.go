package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNames(t *testing.T) {
	for _, typ := range []Type{BlockPostcondition, ErrorCondition, ErrorConditionUnreachable, FoundResult, Error, Stale} {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
		assert.True(t, typ.Valid())
	}
	assert.False(t, Type(42).Valid())
	assert.Equal(t, "Type(42)", Type(42).String())
	_, err := ParseType("BOGUS")
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, FoundResult.Terminal())
	assert.True(t, Error.Terminal())
	assert.False(t, Stale.Terminal())
	assert.False(t, BlockPostcondition.Terminal())
}

func TestStalePayload(t *testing.T) {
	stale, consumed, err := StaleDeclaration("B", true, 3).Staleness()
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Equal(t, 3, consumed)

	stale, err = StaleDeclaration("B", false, 0).IsStale()
	require.NoError(t, err)
	assert.False(t, stale)

	_, err = Result("R", Safe).IsStale()
	assert.Error(t, err)

	for _, payload := range []string{"true", "true/", "maybe/1", "true/-1", "false/x"} {
		_, _, err := Message{Type: Stale, Source: "B", Payload: payload}.Staleness()
		assert.Error(t, err, payload)
	}
}

func TestVerdictPayload(t *testing.T) {
	v, err := Result("R", Violated).Verdict()
	require.NoError(t, err)
	assert.Equal(t, Violated, v)

	_, err = Message{Type: FoundResult, Payload: "maybe"}.Verdict()
	assert.Error(t, err)

	_, err = Failure("B", errors.New("boom")).Verdict()
	assert.Error(t, err)
}

func TestCodec(t *testing.T) {
	m := Postcondition("A", 3, "x and not y", true)
	data, err := Encode(m)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = Decode([]byte{0xc1})
	assert.Error(t, err)
}
