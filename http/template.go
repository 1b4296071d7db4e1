package http

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) handleGetCurrentTemplate(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	version, err := s.templates.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	tmpl, err := s.templates.Template(ctx, version)
	if err != nil {
		return err
	}

	return RespondOK(c, tmpl)
}

func (s *Server) handleGetTemplate(c echo.Context) error {
	ctx, cancel := s.withTimeout(c)
	defer cancel()

	version, err := requireParam(c, "version")
	if err != nil {
		return err
	}

	tmpl, err := s.templates.Template(ctx, version)
	if err != nil {
		return err
	}

	return RespondOK(c, tmpl)
}
