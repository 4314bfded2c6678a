package config

import (
	"testing"
	"time"
)

// fakeSettings is an in-memory Settings backed by plain maps.
type fakeSettings struct {
	strs  map[string]string
	bools map[string]bool
	ints  map[string]int
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{strs: map[string]string{}, bools: map[string]bool{}, ints: map[string]int{}}
}

func (f *fakeSettings) GetString(key string) (string, bool) { v, ok := f.strs[key]; return v, ok }
func (f *fakeSettings) GetBool(key string) (bool, bool)     { v, ok := f.bools[key]; return v, ok }
func (f *fakeSettings) GetInt(key string) (int, bool)       { v, ok := f.ints[key]; return v, ok }

func TestResolveSocketTimeoutFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		set  func(*fakeSettings)
		want time.Duration
	}{
		{"none set", func(s *fakeSettings) {}, DefaultSocketTimeout},
		{"only outermost fallback", func(s *fakeSettings) {
			s.ints["pas_global_socket_data_timeout"] = 45
		}, 45 * time.Second},
		{"middle overrides outermost", func(s *fakeSettings) {
			s.ints["pas_global_socket_data_timeout"] = 45
			s.ints["pas_global_client_socket_data_timeout"] = 20
		}, 20 * time.Second},
		{"most specific wins", func(s *fakeSettings) {
			s.ints["pas_global_socket_data_timeout"] = 45
			s.ints["pas_global_client_socket_data_timeout"] = 20
			s.ints["mp_tvheadend_client_socket_data_timeout"] = 10
		}, 10 * time.Second},
		{"non-positive value falls through", func(s *fakeSettings) {
			s.ints["mp_tvheadend_client_socket_data_timeout"] = 0
			s.ints["pas_global_client_socket_data_timeout"] = 15
		}, 15 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newFakeSettings()
			tc.set(s)
			if got := ResolveSocketTimeout(s); got != tc.want {
				t.Errorf("ResolveSocketTimeout = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveChunkSize(t *testing.T) {
	s := newFakeSettings()
	if got := ResolveChunkSize(s, false); got != DefaultChunkSize {
		t.Errorf("default chunk size = %d, want %d", got, DefaultChunkSize)
	}

	s.ints["pas_global_io_chunk_size_remote"] = 65536
	if got := ResolveChunkSize(s, false); got != 65536 {
		t.Errorf("remote chunk size = %d, want 65536", got)
	}

	s.ints["pas_global_io_chunk_size_local_network"] = 262144
	if got := ResolveChunkSize(s, true); got != 262144 {
		t.Errorf("local chunk size should prefer local_network key, got %d", got)
	}
	if got := ResolveChunkSize(s, false); got != 65536 {
		t.Errorf("remote lookup must not be affected by local_network key, got %d", got)
	}
}

func TestListenerAddressDefault(t *testing.T) {
	s := newFakeSettings()
	if got := ListenerAddress(s); got != "localhost:9982" {
		t.Errorf("default listener address = %q, want localhost:9982", got)
	}
	s.strs["mp_tvheadend_listener_address"] = "tvbox.local:9982"
	if got := ListenerAddress(s); got != "tvbox.local:9982" {
		t.Errorf("configured listener address not honored: %q", got)
	}
}

func TestEnabledDefaultsFalse(t *testing.T) {
	s := newFakeSettings()
	if Enabled(s) {
		t.Errorf("Enabled() should default to false when unset")
	}
	s.bools["mp_tvheadend_enabled"] = true
	if !Enabled(s) {
		t.Errorf("Enabled() should reflect the configured value")
	}
}
