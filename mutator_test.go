package xprop

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/xprop/errors"
)

const unqualifiedLetter = "<letter>\n" +
	"\t<body>\n" +
	"\t\t<paragraph>paragraph-one</paragraph>\n" +
	"\t\t<paragraph>paragraph-six</paragraph>\n" +
	"\t\t<paragraph>paragraph-two</paragraph>\n" +
	"\t</body>\n" +
	"\t<footers>\n" +
	"\t\t<salutations>King regards,</salutations>\n" +
	"\t\t<signature>John Doe</signature>\n" +
	"\t</footers>\n" +
	"\t<headers>\n" +
	"\t\t<from>info@world.com</from>\n" +
	"\t\t<subject>inquiry</subject>\n" +
	"\t\t<to>francois.chabot@gmail.com</to>\n" +
	"\t</headers>\n" +
	"</letter>"

const qualifiedLetter = `<s1:letter xmlns:s1='urn-one' xmlns:s2='urn-two' xmlns:s6='urn-six' xmlns:s0='urn-ten'>
  <s2:headers>
    <s6:subject>inquiry</s6:subject>
    <s6:from>info@world.com</s6:from>
    <s6:to>francois.chabot@gmail.com</s6:to>
  </s2:headers>
  <s2:body>
    <s0:paragraph>paragraph-one</s0:paragraph>
    <s0:paragraph>paragraph-two</s0:paragraph>
    <s0:paragraph>paragraph-six</s0:paragraph>
  </s2:body>
  <s2:footers>
    <s6:salutations>King regards,</s6:salutations>
    <s6:signature>John Doe</s6:signature>
  </s2:footers>
</s1:letter>`

var (
	receiverName   = NewQName("urn:props", "ReceiverName")
	contentType    = NewQName("urn:props", "ContentType")
	label          = NewQName("urn:props", "Label")
	operation      = NewQName("urn:props", "Operation")
	environmentTag = NewQName("urn:props", "EnvironmentTag")
)

func pathRule(t *testing.T, name QName, expr string, mode Mode) Rule {
	t.Helper()
	r, err := NewPathRule(name, expr, mode)
	require.NoError(t, err)
	return r
}

func drain(t *testing.T, doc string, rules []Rule, store Store, opts Options) (string, *MutatorReader) {
	t.Helper()
	m, err := NewMutatorReader(strings.NewReader(doc), rules, store, opts)
	require.NoError(t, err)
	out, err := io.ReadAll(m)
	require.NoError(t, err)
	return string(out), m
}

func TestMutatorMatch(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/letter/*/from", ModePromote),
		pathRule(t, receiverName, "/letter/*/to", ModePromote),
		pathRule(t, contentType, "/letter/*/subject", ModeWrite),
		pathRule(t, correlationID, "/letter/*/paragraph", ModeWrite),
		pathRule(t, label, "/letter/*/salutations", ModeWrite),
		pathRule(t, operation, "/letter/*/signature", ModeWrite),
	}

	out, _ := drain(t, unqualifiedLetter, rules, store, Options{})
	assert.Equal(t, unqualifiedLetter, out)
	assert.ElementsMatch(t, []storeCall{
		{op: "promote", name: senderName, value: "info@world.com"},
		{op: "promote", name: receiverName, value: "francois.chabot@gmail.com"},
		{op: "set", name: contentType, value: "inquiry"},
		{op: "set", name: correlationID, value: "paragraph-one"},
		{op: "set", name: label, value: "King regards,"},
		{op: "set", name: operation, value: "John Doe"},
	}, store.calls)
	assert.True(t, store.IsIndexed(senderName))
	assert.False(t, store.IsIndexed(contentType))
}

func TestMutatorMatchAndDemote(t *testing.T) {
	store := newRecordingStore().with(senderName, "same-paragraph")
	rules := []Rule{
		pathRule(t, senderName, "/letter/*/paragraph[1]", ModeDemote),
		pathRule(t, senderName, "/letter/*/paragraph[2]", ModeDemote),
		pathRule(t, senderName, "/letter/*/paragraph[3]", ModeDemote),
	}

	out, _ := drain(t, unqualifiedLetter, rules, store, Options{})
	want := strings.NewReplacer(
		"paragraph-one", "same-paragraph",
		"paragraph-two", "same-paragraph",
		"paragraph-six", "same-paragraph",
	).Replace(unqualifiedLetter)
	assert.Equal(t, want, out)
	assert.Empty(t, store.calls, "demote leaves the store unchanged")
}

func TestMutatorMatchForGroup(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/letter/*/paragraph", ModeWrite),
		pathRule(t, receiverName, "/letter/*/paragraph", ModeWrite),
		pathRule(t, environmentTag, "/letter/*/paragraph", ModeWrite),
	}

	_, m := drain(t, unqualifiedLetter, rules, store, Options{})
	assert.Equal(t, []storeCall{
		{op: "set", name: senderName, value: "paragraph-one"},
		{op: "set", name: receiverName, value: "paragraph-one"},
		{op: "set", name: environmentTag, value: "paragraph-one"},
	}, store.calls)
	assert.Len(t, m.groups, 1)
	assert.Equal(t, 3, m.MatchCount("/letter/*/paragraph"), "later matches are counted but not executed")
	assert.Zero(t, m.MatchCount("/unknown"))
}

func TestMutatorMatchQualified(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/*[local-name()='letter']/*/*[local-name()='subject']", ModeWrite),
		pathRule(t, receiverName, "/*[local-name()='letter']/*/*[local-name()='paragraph']", ModeWrite),
		pathRule(t, environmentTag, "/*[local-name()='letter']/*/*[local-name()='signature']", ModeWrite),
		pathRule(t, label, "/*[local-name()='letter' and namespace-uri()='urn-one']/*/*[namespace-uri()='urn-six'][local-name()='salutations']", ModeWrite),
	}

	out, _ := drain(t, qualifiedLetter, rules, store, Options{})
	assert.Equal(t, qualifiedLetter, out)
	assert.Equal(t, []storeCall{
		{op: "set", name: senderName, value: "inquiry"},
		{op: "set", name: receiverName, value: "paragraph-one"},
		{op: "set", name: label, value: "King regards,"},
		{op: "set", name: environmentTag, value: "John Doe"},
	}, store.calls)
}

func TestMutatorMatchWithPositionWhenQualified(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/*[local-name()='letter']/*/*[local-name()='paragraph'][1]", ModeWrite),
		pathRule(t, receiverName, "/*[local-name()='letter']/*/*[local-name()='paragraph'][2]", ModeWrite),
		pathRule(t, environmentTag, "/*[local-name()='letter']/*/*[local-name()='paragraph'][3]", ModeWrite),
	}

	_, m := drain(t, qualifiedLetter, rules, store, Options{})
	assert.Empty(t, store.calls)
	for _, r := range rules {
		assert.Zero(t, m.MatchCount(r.XPath()))
	}
}

func TestMutatorMatchWithPositionWhenUnqualified(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/letter/*/paragraph[1]", ModeWrite),
		pathRule(t, receiverName, "/letter/*/paragraph[2]", ModeWrite),
		pathRule(t, environmentTag, "/letter/*/paragraph[3]", ModeWrite),
	}

	drain(t, unqualifiedLetter, rules, store, Options{})
	assert.Equal(t, []storeCall{
		{op: "set", name: senderName, value: "paragraph-one"},
		{op: "set", name: receiverName, value: "paragraph-six"},
		{op: "set", name: environmentTag, value: "paragraph-two"},
	}, store.calls)
}

func TestMutatorScenarioPromoteSender(t *testing.T) {
	store := newRecordingStore()
	drain(t, unqualifiedLetter, []Rule{pathRule(t, senderName, "/letter/*/from", ModePromote)}, store, Options{})

	v, ok := store.Get(senderName)
	require.True(t, ok)
	assert.Equal(t, "info@world.com", v)
	assert.True(t, store.IsIndexed(senderName))
}

func TestMutatorSkipsNonPathRules(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		mustRule(t)(NewLiteralRule(correlationID, "abc", ModeWrite)),
		mustRule(t)(NewClearRule(label)),
	}
	out, m := drain(t, unqualifiedLetter, rules, store, Options{})
	assert.Equal(t, unqualifiedLetter, out)
	assert.Empty(t, m.groups)
	assert.Empty(t, store.calls)
}

func TestMutatorPassThrough(t *testing.T) {
	docs := map[string]string{
		"prolog and comments": "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!-- head -->\n<a x='1' y=\"2\"><!--c--><b>t&amp;u</b><![CDATA[<raw>]]></a>\n",
		"doctype":             "<!DOCTYPE a>\n<a><b/><b   /></a>",
		"namespaces":          qualifiedLetter,
		"attributes":          `<a xmlns="urn:d" xmlns:p="urn:p" p:k="v" k = 'w'><p:b/></a>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			store := newRecordingStore()
			rules := []Rule{pathRule(t, senderName, "//b", ModeWrite)}
			m, err := NewMutatorReader(iotest.OneByteReader(strings.NewReader(doc)), rules, store, Options{})
			require.NoError(t, err)
			out, err := io.ReadAll(iotest.OneByteReader(m))
			require.NoError(t, err)
			assert.Equal(t, doc, string(out))
		})
	}
}

func TestMutatorDemoteRewrites(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		xpath  string
		stored string
		want   string
	}{
		{
			name:   "escapes markup",
			doc:    "<letter><from>info@world.com</from></letter>",
			xpath:  "/letter/from",
			stored: "a<b & c>",
			want:   "<letter><from>a&lt;b &amp; c&gt;</from></letter>",
		},
		{
			name:   "expands self closing element",
			doc:    `<letter><from a="1"/></letter>`,
			xpath:  "/letter/from",
			stored: "x",
			want:   `<letter><from a="1">x</from></letter>`,
		},
		{
			name:   "keeps prefixed end tag",
			doc:    `<p:letter xmlns:p="urn"><p:from>old</p:from></p:letter>`,
			xpath:  "//*[local-name()='from']",
			stored: "new",
			want:   `<p:letter xmlns:p="urn"><p:from>new</p:from></p:letter>`,
		},
		{
			name:   "replaces decoded content",
			doc:    "<letter><from>a &amp; <![CDATA[b]]></from></letter>",
			xpath:  "/letter/from",
			stored: "c",
			want:   "<letter><from>c</from></letter>",
		},
		{
			name:   "element with children is not a value",
			doc:    "<letter><from><name>x</name></from></letter>",
			xpath:  "/letter/from",
			stored: "y",
			want:   "<letter><from><name>x</name></from></letter>",
		},
		{
			name:   "attribute value",
			doc:    `<letter id="42" kind='x'><from>a</from></letter>`,
			xpath:  "/letter/@id",
			stored: `9"9`,
			want:   `<letter id="9&#34;9" kind='x'><from>a</from></letter>`,
		},
		{
			name:   "descendant attribute",
			doc:    `<letter><from id = 'a'/><to id="b"/></letter>`,
			xpath:  "//@id",
			stored: "z",
			want:   `<letter><from id = 'z'/><to id="b"/></letter>`,
		},
		{
			name:   "document node anchor",
			doc:    "<letter><from>a</from></letter>",
			xpath:  "./letter/from",
			stored: "b",
			want:   "<letter><from>b</from></letter>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore().with(senderName, tt.stored)
			out, _ := drain(t, tt.doc, []Rule{pathRule(t, senderName, tt.xpath, ModeDemote)}, store, Options{})
			assert.Equal(t, tt.want, out)
			assert.Empty(t, store.calls)
		})
	}
}

func TestMutatorAttributeExtraction(t *testing.T) {
	store := newRecordingStore()
	rules := []Rule{
		pathRule(t, senderName, "/letter/@kind", ModePromote),
		pathRule(t, receiverName, "/letter/headers/to/@addr | /letter/headers/to", ModeWrite),
	}
	doc := `<letter kind="memo"><headers><to addr="a@b">Bob</to></headers></letter>`

	out, m := drain(t, doc, rules, store, Options{})
	assert.Equal(t, doc, out)
	assert.Equal(t, []storeCall{
		{op: "promote", name: senderName, value: "memo"},
		{op: "set", name: receiverName, value: "a@b"},
	}, store.calls)
	assert.Equal(t, 2, m.MatchCount("/letter/headers/to/@addr | /letter/headers/to"))

	_, err := NewPathRule(receiverName, "/letter/headers/to/@p:x", ModeWrite)
	require.Error(t, err, "prefixes need a namespace context")
}

func TestMutatorQNameDemote(t *testing.T) {
	rule, err := NewQNamePathRule(operation, "/msg/op", ModeDemote, QNameLocalName)
	require.NoError(t, err)
	store := newRecordingStore().with(operation, "Cancel")

	out, _ := drain(t, `<msg xmlns:ns0="urn"><op>ns0:Submit</op></msg>`, []Rule{rule}, store, Options{})
	assert.Equal(t, `<msg xmlns:ns0="urn"><op>ns0:Cancel</op></msg>`, out)
}

func TestMutatorThreadsValueThroughGroup(t *testing.T) {
	store := newRecordingStore().with(senderName, "demoted")
	rules := []Rule{
		pathRule(t, receiverName, "/letter/from", ModeWrite),
		pathRule(t, senderName, "/letter/from", ModeDemote),
		pathRule(t, label, "/letter/from", ModePromote),
	}
	out, _ := drain(t, "<letter><from>original</from></letter>", rules, store, Options{})
	assert.Equal(t, "<letter><from>demoted</from></letter>", out)
	assert.Equal(t, []storeCall{
		{op: "set", name: receiverName, value: "original"},
		{op: "promote", name: label, value: "original"},
	}, store.calls)
}

func TestMutatorErrors(t *testing.T) {
	rules := []Rule{pathRule(t, senderName, "/a", ModeWrite)}
	tests := []struct {
		name string
		doc  string
		opts Options
	}{
		{name: "mismatched end tag", doc: "<a><b></a>"},
		{name: "unexpected eof", doc: "<a><b>"},
		{name: "max depth", doc: "<a><b><c/></b></a>", opts: NewOptions().WithMaxDepth(2)},
		{name: "max capture size", doc: "<a>12345</a>", opts: NewOptions().WithMaxCaptureSize(4)},
		{name: "non utf-8 encoding", doc: `<?xml version="1.0" encoding="ISO-8859-1"?><a>x</a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMutatorReader(strings.NewReader(tt.doc), rules, newRecordingStore(), tt.opts)
			require.NoError(t, err)
			_, err = io.ReadAll(m)
			require.ErrorIs(t, err, errors.ErrDocument)

			_, again := m.Read(make([]byte, 8))
			assert.Equal(t, err, again, "errors are sticky")
		})
	}
}

func TestMutatorAcceptsUTF8CompatibleEncodings(t *testing.T) {
	for _, enc := range []string{"UTF-8", "utf8", "US-ASCII"} {
		t.Run(enc, func(t *testing.T) {
			doc := `<?xml version="1.0" encoding="` + enc + `"?>` + "\n<a><b>x</b></a>"
			store := newRecordingStore()
			out, m := drain(t, doc, []Rule{pathRule(t, senderName, "/a/b", ModeWrite)}, store, Options{})
			assert.Equal(t, doc, out)
			assert.Equal(t, 1, m.MatchCount("/a/b"))
			assert.Equal(t, []storeCall{{op: "set", name: senderName, value: "x"}}, store.calls)
		})
	}
}

func TestNewMutatorReaderRejects(t *testing.T) {
	_, err := NewMutatorReader(nil, nil, newRecordingStore(), Options{})
	require.Error(t, err)
	_, err = NewMutatorReader(strings.NewReader("<a/>"), nil, nil, Options{})
	require.Error(t, err)
	_, err = NewMutatorReader(strings.NewReader("<a/>"), nil, newRecordingStore(), NewOptions().WithMaxDepth(-1))
	require.Error(t, err)
}

func TestMutatorObservability(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := prometheus.NewRegistry()
	opts := NewOptions().WithLogger(logger).WithMetrics(reg)
	require.NoError(t, opts.Validate())

	rules := []Rule{
		pathRule(t, senderName, "/letter/*/paragraph", ModeWrite),
		pathRule(t, receiverName, "/letter/*/from", ModePromote),
	}
	drain(t, unqualifiedLetter, rules, newRecordingStore(), opts)

	text := logs.String()
	assert.Contains(t, text, `msg="registering xpath" xpath=/letter/*/paragraph index=0`)
	assert.Contains(t, text, `msg="xpath matched" xpath=/letter/*/paragraph occurrence=3`)
	assert.Contains(t, text, `msg="writing property"`)
	assert.Contains(t, text, `msg="promoting property"`)

	assert.Equal(t, 4.0, counterValue(t, reg, "xprop_xpath_matches_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "xprop_rule_executions_total"))
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
