// Package xpath compiles the location-path subset of XPath that can be
// evaluated while an XML document streams past: child and descendant steps,
// name tests, a final attribute step, positional predicates and the
// local-name()/namespace-uri() predicates. Matching needs only the stack of
// open elements, so no document tree is ever built.
package xpath
