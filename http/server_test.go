package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/engine"
	"github.com/dukerupert/checkmate/memory"
	"github.com/dukerupert/checkmate/mock"
	"github.com/dukerupert/checkmate/render"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRenderer writes a fixed marker so tests can tell renderers apart.
type stubRenderer struct {
	contentType string
	marker      string
}

func (r *stubRenderer) ContentType() string { return r.contentType }

func (r *stubRenderer) Render(ctx context.Context, w io.Writer, rep *checkmate.Report) error {
	_, err := fmt.Fprintf(w, "%s:%s", r.marker, rep.Title)
	return err
}

func newTestServer(t *testing.T, svc *mock.InspectionService, opts ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		InspectionService: svc,
		Templates: &mock.TemplateProvider{
			Current: "v1",
			Templates: map[string]*checkmate.Template{
				"v1": {Version: "v1", Title: "Vehicle", Sections: []checkmate.SectionTemplate{
					{ID: "brakes", Label: "Brakes", Items: []checkmate.ItemTemplate{{ID: "brakes:pads", Label: "Pads", Required: true}}},
				}},
			},
		},
		HTMLRenderer: &stubRenderer{contentType: "text/html; charset=utf-8", marker: "html"},
		JSONRenderer: &stubRenderer{contentType: "application/json", marker: "json"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := NewServer(cfg)
	t.Cleanup(func() {
		s.rateLimiter.Shutdown()
		s.uploadLimiter.Shutdown()
	})
	return s
}

func do(s *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func doJSON(s *Server, method, target, body string) *httptest.ResponseRecorder {
	return do(s, method, target, strings.NewReader(body), "application/json")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateInspection(t *testing.T) {
	var got checkmate.CreateInspectionParams
	svc := &mock.InspectionService{
		CreateInspectionFn: func(ctx context.Context, params checkmate.CreateInspectionParams) (*checkmate.Inspection, error) {
			got = params
			return &checkmate.Inspection{ID: uuid.New(), Title: params.Title, State: checkmate.StateDraft, TemplateVersion: "v1"}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := doJSON(s, http.MethodPost, "/api/inspections",
		`{"title":"  2019 Accord ","inspectorName":"Sam","subjectId":"1hgbh41jxmn109186"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2019 Accord", got.Title)
	assert.Equal(t, "Sam", got.InspectorName)
	assert.Equal(t, "1HGBH41JXMN109186", got.SubjectID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(s, http.MethodPost, "/api/inspections", `{"subjectId":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, checkmate.EINVALID, resp.Error)
	assert.Equal(t, "is required", resp.Fields["title"])
	assert.Equal(t, "must be a 17 character VIN", resp.Fields["subjectId"])

	rec = doJSON(s, http.MethodPost, "/api/inspections", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{checkmate.NotFound("Inspection not found"), http.StatusNotFound, checkmate.ENOTFOUND},
		{checkmate.InvalidState("finalized"), http.StatusConflict, checkmate.EINVALIDSTATE},
		{checkmate.ValidationFailed("missing", []string{"a"}), http.StatusUnprocessableEntity, checkmate.EVALIDATION},
		{checkmate.Conflict("stale"), http.StatusConflict, checkmate.ECONFLICT},
		{checkmate.LookupFailed("vpic down", errors.New("timeout")), http.StatusBadGateway, checkmate.ELOOKUP},
		{checkmate.Invalid("bad"), http.StatusBadRequest, checkmate.EINVALID},
		{errors.New("disk on fire"), http.StatusInternalServerError, checkmate.EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := &mock.InspectionService{
				FindInspectionByIDFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(t, svc)

			rec := do(s, http.MethodGet, "/api/inspections/"+uuid.NewString(), nil, "")
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error)
			if tt.code == checkmate.EINTERNAL {
				assert.NotContains(t, resp.Message, "disk on fire")
			}
		})
	}
}

func TestGetInspection_InvalidID(t *testing.T) {
	s := newTestServer(t, &mock.InspectionService{})
	rec := do(s, http.MethodGet, "/api/inspections/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, checkmate.ENOTFOUND, decodeError(t, rec).Error)
}

func TestListInspections(t *testing.T) {
	var got checkmate.InspectionFilter
	svc := &mock.InspectionService{
		FindInspectionsFn: func(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
			got = filter
			return []*checkmate.InspectionSummary{{ID: uuid.New(), Title: "one"}}, 7, nil
		},
	}
	s := newTestServer(t, svc)

	rec := do(s, http.MethodGet, "/api/inspections?state=finalized&offset=5&limit=500", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.State)
	assert.Equal(t, checkmate.StateFinalized, *got.State)
	assert.Equal(t, 5, got.Offset)
	assert.Equal(t, maxListLimit, got.Limit)

	var resp ListResponse[checkmate.InspectionSummary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Total)
	assert.Len(t, resp.Data, 1)

	rec = do(s, http.MethodGet, "/api/inspections?offset=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteInspection(t *testing.T) {
	id := uuid.New()
	var deleted uuid.UUID
	svc := &mock.InspectionService{
		DeleteInspectionFn: func(ctx context.Context, got uuid.UUID) error {
			deleted = got
			return nil
		},
	}
	s := newTestServer(t, svc)

	rec := do(s, http.MethodDelete, "/api/inspections/"+id.String(), nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, deleted)
}

func TestSetItemStatus(t *testing.T) {
	var gotItem string
	var gotStatus checkmate.Status
	svc := &mock.InspectionService{
		SetStatusFn: func(ctx context.Context, id uuid.UUID, itemID string, status checkmate.Status) (*checkmate.Item, error) {
			gotItem, gotStatus = itemID, status
			return &checkmate.Item{ID: itemID, Status: status}, nil
		},
	}
	s := newTestServer(t, svc)
	base := "/api/inspections/" + uuid.NewString() + "/items/brakes:pads/status"

	rec := doJSON(s, http.MethodPut, base, `{"status":"rec"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "brakes:pads", gotItem)
	assert.Equal(t, checkmate.StatusRecommended, gotStatus)
	assert.Contains(t, rec.Body.String(), `"status":"recommended"`)

	rec = doJSON(s, http.MethodPut, base, `{"status":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checkmate.StatusUnset, gotStatus)

	rec = doJSON(s, http.MethodPut, base, `{"status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodPut, base, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeError(t, rec).Fields["status"])
}

func TestItemNoteAndPhotoRefs(t *testing.T) {
	var note, added, removed string
	svc := &mock.InspectionService{
		SetNoteFn: func(ctx context.Context, id uuid.UUID, itemID, n string) (*checkmate.Item, error) {
			note = n
			return &checkmate.Item{ID: itemID, Note: n}, nil
		},
		AddPhotoRefFn: func(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error) {
			added = ref
			return &checkmate.Item{ID: itemID, PhotoRefs: []string{ref}}, nil
		},
		RemovePhotoRefFn: func(ctx context.Context, id uuid.UUID, itemID, ref string) (*checkmate.Item, error) {
			removed = ref
			return &checkmate.Item{ID: itemID}, nil
		},
	}
	s := newTestServer(t, svc)
	base := "/api/inspections/" + uuid.NewString() + "/items/brakes:pads"

	rec := doJSON(s, http.MethodPut, base+"/note", `{"note":" worn \u0000inner pad "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "worn inner pad", note)

	rec = doJSON(s, http.MethodPost, base+"/photo-refs", `{"ref":"2026/03/abc.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026/03/abc.jpg", added)

	rec = do(s, http.MethodDelete, base+"/photo-refs?ref=2026%2F03%2Fabc.jpg", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026/03/abc.jpg", removed)

	rec = do(s, http.MethodDelete, base+"/photo-refs", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPhoto(t *testing.T) {
	var gotType string
	var gotBytes int
	svc := &mock.InspectionService{
		AttachPhotoFn: func(ctx context.Context, id uuid.UUID, itemID string, r io.Reader, contentType string) (*checkmate.Item, error) {
			data, err := io.ReadAll(r)
			if err != nil {
				return nil, err
			}
			gotType, gotBytes = contentType, len(data)
			return &checkmate.Item{ID: itemID, PhotoRefs: []string{"2026/03/x.jpg"}}, nil
		},
	}
	s := newTestServer(t, svc)

	var img bytes.Buffer
	require.NoError(t, jpeg.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("photo", "pads.jpg")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	target := "/api/inspections/" + uuid.NewString() + "/items/brakes:pads/photos"
	rec := do(s, http.MethodPost, target, body, w.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, img.Len(), gotBytes)

	rec = do(s, http.MethodPost, target, strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPhoto(t *testing.T) {
	blobs := &mock.BlobStore{
		GetFn: func(ctx context.Context, ref string) (io.ReadCloser, error) {
			if ref != "2026/03/abc.png" {
				return nil, checkmate.NotFound("Photo %s not found", ref)
			}
			return io.NopCloser(strings.NewReader("png-bytes")), nil
		},
	}
	s := newTestServer(t, &mock.InspectionService{}, func(cfg *Config) { cfg.Blobs = blobs })

	rec := do(s, http.MethodGet, "/api/photos/2026/03/abc.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = do(s, http.MethodGet, "/api/photos/2026/03/missing.png", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFinalize(t *testing.T) {
	calls := 0
	svc := &mock.InspectionService{
		FinalizeFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
			calls++
			if calls == 1 {
				return nil, checkmate.ValidationFailed("Required items have no status", []string{"brakes:pads", "engine:start"})
			}
			return &checkmate.Inspection{ID: id, State: checkmate.StateFinalized}, nil
		},
	}
	s := newTestServer(t, svc)
	target := "/api/inspections/" + uuid.NewString() + "/finalize"

	rec := do(s, http.MethodPost, target, nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, checkmate.EVALIDATION, resp.Error)
	assert.Equal(t, []string{"brakes:pads", "engine:start"}, resp.Missing)

	rec = do(s, http.MethodPost, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"finalized"`)

	rec = do(s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkmate_finalize_total{outcome="rejected"} 1`)
	assert.Contains(t, rec.Body.String(), `checkmate_finalize_total{outcome="finalized"} 1`)
}

func TestGetReport(t *testing.T) {
	svc := &mock.InspectionService{
		GetReportFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Report, error) {
			return &checkmate.Report{InspectionID: id, Title: "Accord"}, nil
		},
	}
	s := newTestServer(t, svc)
	target := "/api/inspections/" + uuid.NewString() + "/report"

	rec := do(s, http.MethodGet, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "html:Accord", rec.Body.String())

	rec = do(s, http.MethodGet, target+"?format=json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "json:Accord", rec.Body.String())

	rec = do(s, http.MethodGet, target+"?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.GetReportFn = func(ctx context.Context, id uuid.UUID) (*checkmate.Report, error) {
		return nil, checkmate.InvalidState("Inspection %s is not finalized", id)
	}
	rec = do(s, http.MethodGet, target, nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetProgress(t *testing.T) {
	svc := &mock.InspectionService{
		GetProgressFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Progress, error) {
			return &checkmate.Progress{InspectionID: id.String(), CompletionRatio: 0.5, MissingRequired: []string{"brakes:pads"}}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := do(s, http.MethodGet, "/api/inspections/"+uuid.NewString()+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completionRatio":0.5`)
	assert.Contains(t, rec.Body.String(), `"missingRequired":["brakes:pads"]`)
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, &mock.InspectionService{})

	rec := do(s, http.MethodGet, "/api/templates/current", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"v1"`)

	rec = do(s, http.MethodGet, "/api/templates/v1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/templates/v9", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	ready := errors.New("database unreachable")
	s := newTestServer(t, &mock.InspectionService{}, func(cfg *Config) {
		cfg.Ready = func(ctx context.Context) error { return ready }
	})

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/health/ready", nil, "").Code)

	ready = nil
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health/ready", nil, "").Code)
}

func TestAuditTrail(t *testing.T) {
	id := uuid.New()
	svc := &mock.InspectionService{
		FinalizeFn: func(ctx context.Context, got uuid.UUID) (*checkmate.Inspection, error) {
			return &checkmate.Inspection{ID: got, State: checkmate.StateFinalized}, nil
		},
		DeleteInspectionFn: func(ctx context.Context, got uuid.UUID) error {
			return checkmate.NotFound("Inspection not found")
		},
	}
	var logs bytes.Buffer
	s := newTestServer(t, svc, func(cfg *Config) {
		cfg.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	})

	rec := do(s, http.MethodPost, "/api/inspections/"+id.String()+"/finalize", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(s, http.MethodDelete, "/api/inspections/"+id.String(), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var audits []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["msg"] == "audit" {
			audits = append(audits, record["audit"].(map[string]any))
		}
	}

	require.Len(t, audits, 1, "failed operations are not audited")
	assert.Equal(t, "update", audits[0]["action"])
	assert.Equal(t, id.String(), audits[0]["resource_id"])
	assert.NotEmpty(t, audits[0]["request_id"])
	assert.Equal(t, "finalized", audits[0]["new_values"].(map[string]any)["state"])
}

func TestSetItemStatus_ClearThroughEngine(t *testing.T) {
	templates := &mock.TemplateProvider{
		Current: "v1",
		Templates: map[string]*checkmate.Template{
			"v1": {Version: "v1", Title: "Vehicle", Sections: []checkmate.SectionTemplate{
				{ID: "brakes", Label: "Brakes", Items: []checkmate.ItemTemplate{{ID: "brakes:pads", Label: "Pads", Required: true}}},
			}},
		},
	}
	svc := engine.New(engine.Config{Store: memory.NewStore(), Templates: templates})
	s := newTestServer(t, nil, func(cfg *Config) {
		cfg.InspectionService = svc
		cfg.Templates = templates
	})

	rec := doJSON(s, http.MethodPost, "/api/inspections", `{"title":"Civic"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/api/inspections/" + created.ID.String()

	rec = doJSON(s, http.MethodPut, base+"/items/brakes:pads/status", `{"status":"pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(s, http.MethodPut, base+"/items/brakes:pads/status", `{"status":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	item, err := svc.GetItem(context.Background(), created.ID, "brakes:pads")
	require.NoError(t, err)
	assert.Equal(t, checkmate.StatusUnset, item.Status)

	rec = do(s, http.MethodGet, base+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"missingRequired":["brakes:pads"]`)
}

func TestSetTireReading(t *testing.T) {
	var got checkmate.TireReading
	calls := 0
	svc := &mock.InspectionService{
		SetTireReadingFn: func(ctx context.Context, id uuid.UUID, itemID string, reading checkmate.TireReading) (*checkmate.Item, error) {
			calls++
			got = reading
			return &checkmate.Item{ID: itemID, Kind: checkmate.ItemKindTire, Tire: &reading}, nil
		},
	}
	s := newTestServer(t, svc)
	target := "/api/inspections/" + uuid.NewString() + "/items/tires:lf/tire"

	rec := doJSON(s, http.MethodPut, target, `{"psiIn":28,"psiOut":35,"tread32nds":2.5,"wear":"inner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, got.PSIOut)
	assert.Equal(t, 35.0, *got.PSIOut)
	assert.Equal(t, checkmate.WearInner, got.Wear)
	assert.Contains(t, rec.Body.String(), `"tread32nds":2.5`)

	rec = doJSON(s, http.MethodPut, target, `{"psiIn":90,"tread32nds":25}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeError(t, rec).Fields
	assert.Equal(t, "must be less than or equal to 80", fields["psiIn"])
	assert.Equal(t, "must be less than or equal to 20", fields["tread32nds"])

	rec = doJSON(s, http.MethodPut, target, `{"psiIn":35,"psiOut":30}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must not be less than PSIIn", decodeError(t, rec).Fields["psiOut"])

	rec = doJSON(s, http.MethodPut, target, `{"wear":"bald"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, calls, "invalid readings never reach the service")

	rec = doJSON(s, http.MethodPut, target, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.IsEmpty())

	rec = do(s, http.MethodGet, "/metrics", nil, "")
	assert.Contains(t, rec.Body.String(), `kind="tire_reading"`)
}

func TestGetReport_ETag(t *testing.T) {
	report := &checkmate.Report{InspectionID: uuid.New(), Title: "Accord"}
	svc := &mock.InspectionService{
		GetReportFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Report, error) {
			return report, nil
		},
	}
	s := newTestServer(t, svc)
	target := "/api/inspections/" + report.InspectionID.String() + "/report"

	digest, err := render.Digest(report)
	require.NoError(t, err)
	etag := `"` + digest + `"`

	rec := do(s, http.MethodGet, target+"?format=json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	req := httptest.NewRequest(http.MethodGet, target+"?format=json", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, target+"?format=json", nil)
	req.Header.Set("If-None-Match", `"stale"`)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"), "HTML reports carry no ETag")
}

func TestFinalize_AlreadyFinalized(t *testing.T) {
	earlier := time.Now().Add(-time.Hour).UTC()
	svc := &mock.InspectionService{
		FinalizeFn: func(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
			return &checkmate.Inspection{ID: id, State: checkmate.StateFinalized, FinalizedAt: &earlier}, nil
		},
	}
	var logs bytes.Buffer
	s := newTestServer(t, svc, func(cfg *Config) {
		cfg.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	})
	target := "/api/inspections/" + uuid.NewString() + "/finalize"

	for range 2 {
		rec := do(s, http.MethodPost, target, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"finalized"`)
	}

	rec := do(s, http.MethodGet, "/metrics", nil, "")
	assert.Contains(t, rec.Body.String(), `checkmate_finalize_total{outcome="already_finalized"} 2`)
	assert.NotContains(t, rec.Body.String(), `checkmate_finalize_total{outcome="finalized"}`)
	assert.NotContains(t, logs.String(), `"msg":"audit"`)
}
