package xprop

import (
	"fmt"

	"github.com/jacoelho/xprop/errors"
	"github.com/jacoelho/xprop/internal/memo"
	"github.com/jacoelho/xprop/internal/xmltree"
)

type fragment struct {
	element *xmltree.Element
	found   bool
}

// Locator finds the property annotation of document types and memoizes both
// the fragment and the rule set built from it for the process lifetime.
// A Locator is safe for concurrent use.
type Locator struct {
	fragments memo.Cache[fragment]
	ruleSets  memo.Cache[*RuleSet]
	opts      resolvedOptions
}

// NewLocator returns a Locator.
func NewLocator(opts Options) (*Locator, error) {
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Locator{opts: resolved}, nil
}

// Locate returns the Properties element found under
// /xs:schema/xs:element[@name=root]/xs:annotation/xs:appinfo. The second
// result is false when desc has no root element, is of foreign origin or
// declares no annotation.
func (l *Locator) Locate(desc DocumentType) (*xmltree.Element, bool, error) {
	if desc == nil || desc.RootElementName() == "" || desc.Origin() == OriginForeign {
		return nil, false, nil
	}
	f, cached, err := l.fragments.GetOrBuild(desc.Key(), func() (fragment, error) {
		return locateFragment(desc)
	})
	if err != nil {
		return nil, false, err
	}
	if !cached {
		l.opts.logger.Debug("located schema annotation", "documentType", desc.Key(), "found", f.found)
	}
	return f.element, f.found, nil
}

// SchemaRuleSet returns the rule set declared by the annotation of desc, or
// the empty rule set when there is none.
func (l *Locator) SchemaRuleSet(desc DocumentType) (*RuleSet, error) {
	if desc == nil {
		return EmptyRuleSet(), nil
	}
	set, _, err := l.ruleSets.GetOrBuild(desc.Key(), func() (*RuleSet, error) {
		el, found, err := l.Locate(desc)
		if err != nil || !found {
			return EmptyRuleSet(), err
		}
		set, err := ruleSetFromElement(el)
		if err != nil {
			return nil, fmt.Errorf("document type %s: %w", desc.Key(), err)
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func locateFragment(desc DocumentType) (fragment, error) {
	content, err := desc.SchemaContent()
	if err != nil {
		return fragment{}, fmt.Errorf("document type %s: schema content: %w", desc.Key(), err)
	}
	doc, err := xmltree.ParseBytes(content)
	if err != nil {
		return fragment{}, errors.NewConfigf(errors.CodeInvalidDocument, "",
			"schema of document type %s is not well-formed XML", desc.Key()).WithCause(err)
	}

	schema := doc.Root
	if schema.Name.Space != xmltree.XSDNamespace || schema.Name.Local != "schema" {
		return fragment{}, nil
	}
	var found []*xmltree.Element
	for _, decl := range schema.ChildrenNamed(xmltree.XSDNamespace, "element") {
		if name, _ := decl.Attr("name"); name != desc.RootElementName() {
			continue
		}
		for _, annotation := range decl.ChildrenNamed(xmltree.XSDNamespace, "annotation") {
			for _, appinfo := range annotation.ChildrenNamed(xmltree.XSDNamespace, "appinfo") {
				found = append(found, appinfo.ChildrenNamed(AnnotationNamespace, propertiesElement)...)
			}
		}
	}

	switch len(found) {
	case 0:
		return fragment{}, nil
	case 1:
		return fragment{element: found[0], found: true}, nil
	default:
		cfg := errors.NewConfigf(errors.CodeInvalidDocument, found[1].QualifiedName(),
			"document type %s declares %d Properties annotations", desc.Key(), len(found))
		cfg.Line = found[1].Line
		return fragment{}, cfg
	}
}
