package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "assets/templates/email"

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// EmailTemplates holds the parsed email templates, keyed by name (file name without ext).
	EmailTemplates struct {
		appName         string
		frontendBaseURL string
		cache           map[string]*tmplCacheEntry
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses every `<name>.txt` and `<name>.gohtml` template found under
// assets/templates/email in fsys, each one wrapped by the matching `_base` layout.
func ParseEmailTemplates(fsys fs.FS, conf *Config) (*EmailTemplates, error) {
	templates := &EmailTemplates{
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
		cache:           make(map[string]*tmplCacheEntry),
	}
	strict := conf.Debug || conf.TestMode

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates.cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			templates.cache[name] = entry
		}

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}
	return templates, nil
}

func (m *EmailMessage) getContextData(t *EmailTemplates) ContextData {
	return ContextData{
		AppName:         t.appName,
		FrontendBaseURL: t.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) renderText(t *EmailTemplates) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	entry, ok := t.cache[m.TemplateName]
	if !ok || entry.text == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := entry.text.Execute(&buff, m.getContextData(t)); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(t *EmailTemplates) error {
	if m.TemplateName == "" {
		return nil
	}

	entry, ok := t.cache[m.TemplateName]
	if !ok || entry.html == nil {
		return nil
	}
	var buff bytes.Buffer
	if err := entry.html.Execute(&buff, m.getContextData(t)); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent and HTMLContent from BodyStr or the named templates.
func (m *EmailMessage) Render(t *EmailTemplates) error {
	if t == nil {
		return errors.New("email templates not parsed")
	}
	if m.TemplateName != "" {
		if _, ok := t.cache[m.TemplateName]; !ok {
			return errors.Errorf("unknown email template %q", m.TemplateName)
		}
	}
	if err := m.renderText(t); err != nil {
		return errors.Wrap(err, "rendering text")
	}
	return errors.Wrap(m.renderHTML(t), "rendering html")
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
