package xmltree

// Common XML namespaces.
const (
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
	XSDNamespace   = "http://www.w3.org/2001/XMLSchema"
)

type nsScope struct {
	prefixes   map[string]string
	defaultNS  string
	defaultSet bool
}

type nsStack struct {
	scopes []nsScope
}

func (s *nsStack) push(scope nsScope) {
	s.scopes = append(s.scopes, scope)
}

func (s *nsStack) pop() {
	if len(s.scopes) == 0 {
		return
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *nsStack) lookup(prefix string) (string, bool) {
	switch prefix {
	case "xml":
		return XMLNamespace, true
	case "xmlns":
		return XMLNSNamespace, true
	}
	for i := len(s.scopes) - 1; i >= 0; i-- {
		scope := s.scopes[i]
		if prefix == "" {
			if scope.defaultSet {
				return scope.defaultNS, true
			}
			continue
		}
		if ns, ok := scope.prefixes[prefix]; ok {
			return ns, true
		}
	}
	if prefix == "" {
		// no default namespace declared; use empty namespace.
		return "", true
	}
	return "", false
}

// inScope returns the bindings visible at the top of the stack, innermost wins.
func (s *nsStack) inScope() map[string]string {
	out := make(map[string]string)
	for _, scope := range s.scopes {
		for prefix, ns := range scope.prefixes {
			out[prefix] = ns
		}
		if scope.defaultSet {
			out[""] = scope.defaultNS
		}
	}
	return out
}
