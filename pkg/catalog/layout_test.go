package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayoutIsValid(t *testing.T) {
	layout := DefaultLayout()
	require.NoError(t, layout.Validate())
	assert.Equal(t, []Space{1, 2, 3}, layout.Spaces())
	assert.Equal(t, 8, layout.Width())
}

func TestLayoutValidateRejectsOverlap(t *testing.T) {
	layout := DefaultLayout()
	layout.Category = layout.Price
	assert.Error(t, layout.Validate())

	layout = DefaultLayout()
	layout.Stock = nil
	assert.Error(t, layout.Validate())
}

func TestDecodeRejectsMalformedCells(t *testing.T) {
	layout := DefaultLayout()
	_, err := layout.Decode(0, []string{"Empanada", "x", "0", "0", "$1.500"})
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = layout.Decode(0, []string{"Empanada", "1", "0", "0", "gratis"})
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestRowRoundTrip(t *testing.T) {
	layout := DefaultLayout()
	row := []string{"Empanada", "5", "0", "2", "$1.500", "10", "$15.000,00", "Comida"}

	p, err := layout.Decode(4, row)
	require.NoError(t, err)
	assert.Equal(t, row, layout.Row(p))
}

func TestEncodeKeepsUnmappedCells(t *testing.T) {
	layout := DefaultLayout()
	base := []string{"Empanada", "5", "0", "2", "$1.500", "10", "$15.000,00", "Comida", "nota"}
	p, err := layout.Decode(0, base)
	require.NoError(t, err)
	p.StockBySpace[1] = 4

	out := layout.Encode(p, base)
	assert.Equal(t, "4", out[1])
	assert.Equal(t, "nota", out[8])
	assert.Equal(t, "5", base[1], "base is not modified")
}

func TestParseSpace(t *testing.T) {
	for text, want := range map[string]Space{"2": 2, "Espacio 3": 3, "Space 1": 1} {
		got, err := ParseSpace(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got)
	}
	for _, text := range []string{"", "Espacio", "Espacio 0", "Espacio -1"} {
		_, err := ParseSpace(text)
		assert.ErrorIs(t, err, ErrUnknownSpace, text)
	}
}

func TestSpaceJSON(t *testing.T) {
	var body struct {
		Space Space `json:"space"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"space":"Espacio 2"}`), &body))
	assert.Equal(t, Space(2), body.Space)
	require.NoError(t, json.Unmarshal([]byte(`{"space":3}`), &body))
	assert.Equal(t, Space(3), body.Space)
	assert.Error(t, json.Unmarshal([]byte(`{"space":0}`), &body))

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"space":3}`, string(out))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Empanada", NormalizeName("(3) Empanada"))
	assert.Equal(t, "Empanada (grande)", NormalizeName("Empanada (grande)"))
	assert.Equal(t, "(x) Empanada", NormalizeName("(x) Empanada"))
}
