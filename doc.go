// Package xprop extracts, injects and rewrites message properties while an
// XML document streams through a pipeline.
//
// Properties are described by rule sets. A rule set comes either from the
// annotation embedded in a document's schema or from pipeline configuration;
// the two are merged with [RuleSet.Union] under a [Precedence] policy and the
// effective set drives a [MutatorReader], which matches XPath locations in a
// single forward pass, reads and writes a [Store], and rewrites demoted values
// in the outgoing bytes.
//
// Rule sets have an XML text form:
//
//	<s0:Properties precedence="pipeline" xmlns:s0="urn:schemas.stateless.be:biztalk:annotations:2013:01" xmlns:s1="urn">
//	  <s1:Sender mode="promote" xpath="/letter/*/from" />
//	  <s1:Channel value="mail" />
//	  <s1:Stale mode="clear" />
//	</s0:Properties>
package xprop
