package xprop

type storeCall struct {
	op    string
	name  QName
	value string
}

type entry struct {
	value   string
	indexed bool
}

// recordingStore is a map-backed Store recording every mutating call.
type recordingStore struct {
	entries map[QName]entry
	calls   []storeCall
}

func newRecordingStore() *recordingStore {
	return &recordingStore{entries: make(map[QName]entry)}
}

func (s *recordingStore) Get(name QName) (string, bool) {
	e, ok := s.entries[name]
	return e.value, ok
}

func (s *recordingStore) Set(name QName, value string) {
	s.calls = append(s.calls, storeCall{op: "set", name: name, value: value})
	e := s.entries[name]
	e.value = value
	s.entries[name] = e
}

func (s *recordingStore) SetIndexed(name QName, value string) {
	s.calls = append(s.calls, storeCall{op: "promote", name: name, value: value})
	s.entries[name] = entry{value: value, indexed: true}
}

func (s *recordingStore) IsIndexed(name QName) bool {
	return s.entries[name].indexed
}

func (s *recordingStore) Clear(name QName) {
	s.calls = append(s.calls, storeCall{op: "clear", name: name})
	delete(s.entries, name)
}

func (s *recordingStore) with(name QName, value string) *recordingStore {
	s.entries[name] = entry{value: value}
	return s
}
