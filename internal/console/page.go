package console

import (
	"sync"

	"github.com/princekumarofficial/plate-console/internal/types/media"
	"github.com/princekumarofficial/plate-console/internal/upload"
)

// Page is the server-side state of one console page: the file picked for
// the next submission, the result container and pending alerts.
type Page struct {
	mu      sync.Mutex
	pending *media.Upload
	element *upload.Element
	alerts  []string
}

// View is what the page shows on its next render
type View struct {
	Element *upload.Element
	Alerts  []string
}

// Select stages a file for the next submission
func (p *Page) Select(u *media.Upload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = u
}

// File hands the staged file to the handler. A file is submitted at most once.
func (p *Page) File() (*media.Upload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.pending
	p.pending = nil
	return u, u != nil
}

// Replace clears the container and shows el
func (p *Page) Replace(el upload.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.element = &el
}

func (p *Page) Alert(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.alerts = append(p.alerts, message)
}

// Render returns the current view and drains pending alerts so each alert
// is shown once.
func (p *Page) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{Alerts: p.alerts}
	if p.element != nil {
		el := *p.element
		v.Element = &el
	}
	p.alerts = nil
	return v
}

func (p *Page) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = nil
}
