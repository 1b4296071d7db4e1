package validation

import (
	"bytes"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/dukerupert/checkmate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	SubjectID string `json:"subjectId" validate:"omitempty,vin"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,status"`
}

type tireRequest struct {
	PSIIn      *float64 `json:"psiIn" validate:"omitempty,gte=0,lte=80"`
	PSIOut     *float64 `json:"psiOut" validate:"omitempty,gte=0,lte=80,notbelow=PSIIn"`
	Tread32nds *float64 `json:"tread32nds" validate:"omitempty,gte=0,lte=20"`
	Wear       string   `json:"wear" validate:"omitempty,oneof=even inner outer center cupping"`
}

func ptr(f float64) *float64 { return &f }

type listRequest struct {
	State string `json:"state" validate:"omitempty,state"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		input  any
		fields map[string]string
	}{
		{
			name:  "valid create",
			input: &createRequest{Title: "Accord", SubjectID: "1hgbh41jxmn109186"},
		},
		{
			name:   "missing title",
			input:  &createRequest{},
			fields: map[string]string{"title": "is required"},
		},
		{
			name:   "bad vin",
			input:  &createRequest{Title: "Accord", SubjectID: "1HGBH41JXMN10918O"},
			fields: map[string]string{"subjectId": "must be a 17 character VIN"},
		},
		{
			name:  "legacy status",
			input: &statusRequest{Status: "rec"},
		},
		{
			name:   "unknown status",
			input:  &statusRequest{Status: "maybe"},
			fields: map[string]string{"status": "must be a known status"},
		},
		{
			name:  "tire reading in range",
			input: &tireRequest{PSIIn: ptr(28), PSIOut: ptr(35), Tread32nds: ptr(6), Wear: "even"},
		},
		{
			name:  "tire adjusted pressure without measured",
			input: &tireRequest{PSIOut: ptr(35)},
		},
		{
			name:  "tire reading empty",
			input: &tireRequest{},
		},
		{
			name:  "tire out of range",
			input: &tireRequest{PSIIn: ptr(95), Tread32nds: ptr(21), Wear: "bald"},
			fields: map[string]string{
				"psiIn":      "must be less than or equal to 80",
				"tread32nds": "must be less than or equal to 20",
				"wear":       "must be one of: even inner outer center cupping",
			},
		},
		{
			name:   "tire pressure lowered",
			input:  &tireRequest{PSIIn: ptr(35), PSIOut: ptr(30)},
			fields: map[string]string{"psiOut": "must not be less than PSIIn"},
		},
		{
			name:   "tire negative tread",
			input:  &tireRequest{Tread32nds: ptr(-1)},
			fields: map[string]string{"tread32nds": "must be greater than or equal to 0"},
		},
		{
			name:   "unknown state and limit",
			input:  &listRequest{State: "archived", Limit: 500},
			fields: map[string]string{"state": "must be draft or finalized", "limit": "must be less than or equal to 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, checkmate.EINVALID, checkmate.ErrorCode(err))
			assert.Equal(t, tt.fields, checkmate.ErrorFields(err))
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "scratched\tdoor\nrear", SanitizeInput("  scratched\tdoor\x00\nrear\x07 "))
	assert.Equal(t, "", SanitizeInput("   "))
}

func fileHeader(t *testing.T, content []byte, contentType string) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="photo"; filename="photo"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["photo"][0]
}

func TestValidateFileUpload(t *testing.T) {
	var img bytes.Buffer
	require.NoError(t, jpeg.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))

	t.Run("sniffed jpeg", func(t *testing.T) {
		ct, err := ValidateFileUpload(fileHeader(t, img.Bytes(), "application/octet-stream"))
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", ct)
	})

	t.Run("declared heic", func(t *testing.T) {
		ct, err := ValidateFileUpload(fileHeader(t, []byte{0x00, 0x00, 0x00, 0x18, 0x01, 0x02}, "image/heic"))
		require.NoError(t, err)
		assert.Equal(t, "image/heic", ct)
	})

	t.Run("text rejected", func(t *testing.T) {
		_, err := ValidateFileUpload(fileHeader(t, []byte("hello world"), "image/jpeg"))
		assert.Equal(t, checkmate.EINVALID, checkmate.ErrorCode(err))
	})

	t.Run("too large", func(t *testing.T) {
		h := fileHeader(t, img.Bytes(), "image/jpeg")
		h.Size = checkmate.MaxUploadSize + 1
		_, err := ValidateFileUpload(h)
		assert.Equal(t, checkmate.EINVALID, checkmate.ErrorCode(err))
	})
}
