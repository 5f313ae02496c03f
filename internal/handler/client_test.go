package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealValueAcceptsWholeNumbers(t *testing.T) {
	for raw, want := range map[string]int64{
		`{"deal_value": 1200}`:      1200,
		`{"deal_value": "1200"}`:    1200,
		`{"dealValue": " 42 "}`:     42,
		`{"dealValue": null}`:       0,
		`{"deal_value": ""}`:        0,
		`{"deal_value": "-5"}`:      -5,
		`{"name": "no value sent"}`: 0,
	} {
		var req clientReq
		require.NoError(t, json.Unmarshal([]byte(raw), &req), raw)
		assert.Equal(t, want, req.dealValue(), raw)
	}
}

func TestDealValueRejectsFractionsAndNonFinite(t *testing.T) {
	for _, raw := range []string{
		`{"deal_value": 12.7}`,
		`{"deal_value": "12.7"}`,
		`{"deal_value": 1e3}`,
		`{"deal_value": "NaN"}`,
		`{"deal_value": "Inf"}`,
		`{"deal_value": "-Inf"}`,
		`{"deal_value": "99999999999999999999"}`,
		`{"deal_value": "lots"}`,
	} {
		var req clientReq
		assert.Error(t, json.Unmarshal([]byte(raw), &req), raw)
	}
}
