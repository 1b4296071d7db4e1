package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
)

// Compile-time interface checks
var (
	_ checkmate.BlobStore        = (*BlobStore)(nil)
	_ checkmate.TemplateProvider = (*TemplateProvider)(nil)
	_ checkmate.VehicleDecoder   = (*VehicleDecoder)(nil)
)

// BlobStore is a mock implementation of checkmate.BlobStore.
type BlobStore struct {
	PutFn    func(ctx context.Context, r io.Reader, contentType string) (string, error)
	GetFn    func(ctx context.Context, ref string) (io.ReadCloser, error)
	DeleteFn func(ctx context.Context, ref string) error
}

func (s *BlobStore) Put(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if s.PutFn != nil {
		return s.PutFn(ctx, r, contentType)
	}
	return "mock/" + uuid.NewString(), nil
}

func (s *BlobStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, ref)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (s *BlobStore) Delete(ctx context.Context, ref string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, ref)
	}
	return nil
}

// TemplateProvider is a mock implementation of checkmate.TemplateProvider.
// Without TemplateFn it serves Templates by version.
type TemplateProvider struct {
	Templates        map[string]*checkmate.Template
	Current          string
	TemplateFn       func(ctx context.Context, version string) (*checkmate.Template, error)
	CurrentVersionFn func(ctx context.Context) (string, error)
}

func (p *TemplateProvider) Template(ctx context.Context, version string) (*checkmate.Template, error) {
	if p.TemplateFn != nil {
		return p.TemplateFn(ctx, version)
	}
	if t, ok := p.Templates[version]; ok {
		return t, nil
	}
	return nil, checkmate.NotFound("Template version %q not found", version)
}

func (p *TemplateProvider) CurrentVersion(ctx context.Context) (string, error) {
	if p.CurrentVersionFn != nil {
		return p.CurrentVersionFn(ctx)
	}
	if p.Current == "" {
		return "", checkmate.NotFound("No current template version")
	}
	return p.Current, nil
}

// VehicleDecoder is a mock implementation of checkmate.VehicleDecoder.
type VehicleDecoder struct {
	DecodeFn func(ctx context.Context, subjectID string) (json.RawMessage, error)
}

func (d *VehicleDecoder) Decode(ctx context.Context, subjectID string) (json.RawMessage, error) {
	if d.DecodeFn != nil {
		return d.DecodeFn(ctx, subjectID)
	}
	return nil, checkmate.NotFound("Subject %q not found", subjectID)
}
