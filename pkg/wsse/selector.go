package wsse

import (
	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wsse/pkg/envelope"
)

// Selector picks the message parts one cryptographic operation covers.
// It may yield nothing, one element, or many; selectors must be pure so
// operand composition stays deterministic.
type Selector func(env *envelope.Envelope) []*etree.Element

// SelectBody selects the SOAP Body.
func SelectBody() Selector {
	return func(env *envelope.Envelope) []*etree.Element {
		if body := env.Body(); body != nil {
			return []*etree.Element{body}
		}
		return nil
	}
}

// SelectTimestamp selects the wsu:Timestamp elements of the security
// header, when present.
func SelectTimestamp() Selector {
	return func(env *envelope.Envelope) []*etree.Element {
		security := env.Security()
		if security == nil {
			return nil
		}
		var out []*etree.Element
		for _, child := range security.ChildElements() {
			if child.Tag == "Timestamp" {
				out = append(out, child)
			}
		}
		return out
	}
}

// SelectPath selects by etree path, evaluated from the envelope root.
func SelectPath(path string) Selector {
	return func(env *envelope.Envelope) []*etree.Element {
		root := env.Root()
		if root == nil {
			return nil
		}
		return root.FindElements(path)
	}
}

// SelectLocalName selects every element with the given local name,
// whatever its namespace prefix.
func SelectLocalName(name string) Selector {
	return func(env *envelope.Envelope) []*etree.Element {
		root := env.Root()
		if root == nil {
			return nil
		}
		return root.FindElements(".//*[local-name()='" + name + "']")
	}
}

// resolveParts composes the selectors into one operand list. Order
// follows selector declaration and first occurrence; an element matched
// twice is kept once.
func resolveParts(env *envelope.Envelope, selectors []Selector) []*etree.Element {
	var parts []*etree.Element
	seen := make(map[*etree.Element]bool)
	for _, sel := range selectors {
		if sel == nil {
			continue
		}
		for _, el := range sel(env) {
			if el == nil || seen[el] {
				continue
			}
			seen[el] = true
			parts = append(parts, el)
		}
	}
	return parts
}
