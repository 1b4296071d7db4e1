package checkmate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_RoundTrip(t *testing.T) {
	insp := finalizedInspection(t)

	data, err := EncodeDocument(insp)
	require.NoError(t, err)

	got, err := DecodeDocument(data, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.Version)
	assert.Equal(t, insp.ID, got.ID)
	assert.Equal(t, StateFinalized, got.State)
	assert.Equal(t, insp.FinalizedAt.Unix(), got.FinalizedAt.Unix())
	assert.Equal(t, ComputeProgress(insp), ComputeProgress(got))

	_, it := got.Item("engine:noise")
	require.NotNil(t, it)
	assert.Equal(t, StatusRecommended, it.Status)
	assert.Equal(t, "lifter tick", it.Note)

	again, err := EncodeDocument(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecodeDocument_StoredShape(t *testing.T) {
	data := []byte(`{
		"schema": 1,
		"inspection": {
			"id": "6f1c2c56-3c41-4a5a-9d2c-1b9f8a7c1e01",
			"title": "Legacy",
			"inspectorName": "",
			"inspectorId": "",
			"state": "draft",
			"templateVersion": "v1",
			"createdAt": "2025-11-02T10:00:00Z",
			"updatedAt": "2025-11-02T10:05:00Z",
			"sections": [
				{"id": "tires", "label": "Tires", "items": [
					{"id": "tires:lf", "label": "Left Front", "status": "yellow", "required": true},
					{"id": "tires:spare", "label": "Spare"}
				]}
			]
		}
	}`)

	insp, err := DecodeDocument(data, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusRecommended, insp.Sections[0].Items[0].Status)
	assert.True(t, insp.Sections[0].Items[0].Required)
	assert.Equal(t, StatusUnset, insp.Sections[0].Items[1].Status)
}

func TestDecodeDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown schema", `{"schema": 99, "inspection": {}}`},
		{"unknown state", `{"schema": 1, "inspection": {"state": "archived", "sections": []}}`},
		{"unknown status", `{"schema": 1, "inspection": {"state": "draft", "sections": [{"id": "s", "items": [{"id": "i", "status": "broken"}]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.data), 1)
			assert.Error(t, err)
		})
	}
}
