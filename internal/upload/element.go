package upload

import (
	"bytes"
	"html/template"

	"github.com/princekumarofficial/plate-console/internal/types/media"
)

// AltText labels rendered images
const AltText = "Processed Image"

// Element is the media element placed in the result container
type Element struct {
	Tag      string `json:"tag"`
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Controls bool   `json:"controls,omitempty"`
}

var (
	imgTmpl   = template.Must(template.New("img").Parse(`<img src="{{.Src}}" alt="{{.Alt}}" />`))
	videoTmpl = template.Must(template.New("video").Parse(`<video controls src="{{.Src}}"></video>`))
)

// ElementFor builds the element that displays a result of the given kind
func ElementFor(kind media.Kind, src string) Element {
	if kind == media.KindImage {
		return Element{Tag: "img", Src: src, Alt: AltText}
	}
	return Element{Tag: "video", Src: src, Controls: true}
}

// HTML renders the element markup with attribute values escaped
func (e Element) HTML() template.HTML {
	tmpl := videoTmpl
	if e.Tag == "img" {
		tmpl = imgTmpl
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
