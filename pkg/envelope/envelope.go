package envelope

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// SOAP envelope namespaces.
const (
	NamespaceSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
)

// ErrNoRoot indicates a document without a root element.
var ErrNoRoot = errors.New("envelope document has no root element")

// Envelope wraps a SOAP message document. The zero value is not usable;
// construct one with New, Parse, or FromDocument.
type Envelope struct {
	doc *etree.Document
}

// New returns an empty SOAP 1.2 envelope with a Header and Body.
func New() *Envelope {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("env:Envelope")
	root.CreateAttr("xmlns:env", NamespaceSOAP12)
	root.CreateElement("env:Header")
	root.CreateElement("env:Body")

	return &Envelope{doc: doc}
}

// Parse reads a serialized SOAP message.
func Parse(data []byte) (*Envelope, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Envelope{doc: doc}, nil
}

// FromDocument wraps an already parsed document.
func FromDocument(doc *etree.Document) (*Envelope, error) {
	if doc == nil || doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Envelope{doc: doc}, nil
}

// Document exposes the underlying etree document.
func (e *Envelope) Document() *etree.Document {
	return e.doc
}

// Root returns the envelope's root element.
func (e *Envelope) Root() *etree.Element {
	return e.doc.Root()
}

// Header returns the SOAP Header, creating one before the Body when the
// message has none. The created element reuses the root's prefix so it
// stays in the envelope namespace.
func (e *Envelope) Header() *etree.Element {
	root := e.Root()
	if root == nil {
		return nil
	}
	if header := FindChild(root, "Header"); header != nil {
		return header
	}

	tag := "Header"
	if root.Space != "" {
		tag = root.Space + ":Header"
	}
	header := etree.NewElement(tag)
	if body := FindChild(root, "Body"); body != nil {
		root.InsertChildAt(body.Index(), header)
	} else {
		root.AddChild(header)
	}
	return header
}

// Body returns the SOAP Body, or nil when the message has none.
func (e *Envelope) Body() *etree.Element {
	root := e.Root()
	if root == nil {
		return nil
	}
	return FindChild(root, "Body")
}

// Security returns the wsse:Security header block, or nil when the
// message carries none. It never creates elements.
func (e *Envelope) Security() *etree.Element {
	root := e.Root()
	if root == nil {
		return nil
	}
	header := FindChild(root, "Header")
	if header == nil {
		return nil
	}
	return FindChild(header, "Security")
}

// Bytes serializes the envelope.
func (e *Envelope) Bytes() ([]byte, error) {
	return e.doc.WriteToBytes()
}

// String serializes the envelope.
func (e *Envelope) String() (string, error) {
	return e.doc.WriteToString()
}

// FindChild locates a direct child by name, trying the prefixed form
// first and falling back to a local-name match so any prefix works.
func FindChild(parent *etree.Element, name string) *etree.Element {
	child := parent.FindElement("./" + name)
	if child == nil {
		child = parent.FindElement("./*[local-name()='" + name + "']")
	}
	return child
}
