package xprop

import "fmt"

// Mode selects what a rule does with its property.
type Mode uint8

const (
	// ModeWrite stores the value without indexing it.
	ModeWrite Mode = iota
	// ModePromote stores the value and marks it indexed for routing.
	ModePromote
	// ModeDemote copies the stored value into the document at the match site.
	ModeDemote
	// ModeClear removes the stored value and its indexed flag.
	ModeClear
	// ModeIgnore does nothing; during a merge it suppresses the property.
	ModeIgnore
)

var modeNames = [...]string{
	ModeWrite:   "write",
	ModePromote: "promote",
	ModeDemote:  "demote",
	ModeClear:   "clear",
	ModeIgnore:  "ignore",
}

// String returns the camelCase keyword used in the text form.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// ParseMode parses a mode keyword.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// QNameMode selects how a QName-shaped matched value is used.
type QNameMode uint8

const (
	// QNameDefault uses the matched text as is.
	QNameDefault QNameMode = iota
	// QNameName uses the whole prefixed name, like QNameDefault.
	QNameName
	// QNameLocalName keeps only the local part when extracting and restores
	// the prefix when demoting.
	QNameLocalName
)

var qnameModeNames = [...]string{
	QNameDefault:   "default",
	QNameName:      "name",
	QNameLocalName: "localName",
}

// String returns the camelCase keyword used in the text form.
func (m QNameMode) String() string {
	if int(m) < len(qnameModeNames) {
		return qnameModeNames[m]
	}
	return fmt.Sprintf("QNameMode(%d)", m)
}

// ParseQNameMode parses a qnameValue keyword.
func ParseQNameMode(s string) (QNameMode, error) {
	for i, name := range qnameModeNames {
		if name == s {
			return QNameMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown qnameValue %q", s)
}

// Precedence decides how two rule sets combine in a union.
type Precedence uint8

const (
	// PrecedenceSchema merges per property; schema rules win.
	PrecedenceSchema Precedence = iota
	// PrecedenceSchemaOnly keeps the schema rules when there are any.
	PrecedenceSchemaOnly
	// PrecedencePipeline merges per property; pipeline rules win.
	PrecedencePipeline
	// PrecedencePipelineOnly keeps the pipeline rules when there are any.
	PrecedencePipelineOnly
)

var precedenceNames = [...]string{
	PrecedenceSchema:       "schema",
	PrecedenceSchemaOnly:   "schemaOnly",
	PrecedencePipeline:     "pipeline",
	PrecedencePipelineOnly: "pipelineOnly",
}

// String returns the camelCase keyword used in the text form.
func (p Precedence) String() string {
	if int(p) < len(precedenceNames) {
		return precedenceNames[p]
	}
	return fmt.Sprintf("Precedence(%d)", p)
}

// ParsePrecedence parses a precedence keyword.
func ParsePrecedence(s string) (Precedence, error) {
	for i, name := range precedenceNames {
		if name == s {
			return Precedence(i), nil
		}
	}
	return 0, fmt.Errorf("unknown precedence %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Precedence) MarshalText() ([]byte, error) {
	if int(p) >= len(precedenceNames) {
		return nil, fmt.Errorf("unknown precedence %d", p)
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Precedence) UnmarshalText(text []byte) error {
	parsed, err := ParsePrecedence(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func keywords[S ~string](names []S) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
