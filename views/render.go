package views

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin/render"
)

// HTMLTemplRenderer implements gin's render.HTMLRender
type HTMLTemplRenderer struct{}

// Instance returns a Render for templ.Component
func (r *HTMLTemplRenderer) Instance(name string, data any) render.Render {
	component, ok := data.(templ.Component)
	if !ok {
		component = templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, "no component for %s", templ.EscapeString(name))
			return err
		})
	}
	return &Renderer{Ctx: context.Background(), Component: component}
}

// Renderer for templ.Component
type Renderer struct {
	Ctx       context.Context
	Component templ.Component
}

// Render outputs the templ.Component
func (r Renderer) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return r.Component.Render(r.Ctx, w)
}

// WriteContentType sets the Content-Type header for the response
func (r Renderer) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}
