// Package config resolves the host settings keys this module reads
// (mp_tvheadend_*/pas_global_*) and holds the flags+env configuration for
// the standalone demo binary.
package config

import "time"

// DefaultSocketTimeout is used when none of the fallback keys are set.
const DefaultSocketTimeout = 30 * time.Second

// DefaultChunkSize is used when neither chunk-size fallback key is set.
const DefaultChunkSize = 1048576

// Settings abstracts the host's settings store so internal/config never
// depends on its concrete storage.
type Settings interface {
	GetString(key string) (string, bool)
	GetBool(key string) (bool, bool)
	GetInt(key string) (int, bool)
}

// ResolveSocketTimeout implements spec.md §6/§5's four-key fallback chain
// for the per-call RPC timeout: mp_tvheadend_client_socket_data_timeout,
// then pas_global_client_socket_data_timeout, then
// pas_global_socket_data_timeout, then DefaultSocketTimeout. Values are
// seconds; non-positive values are ignored and fall through to the next key.
func ResolveSocketTimeout(s Settings) time.Duration {
	keys := []string{
		"mp_tvheadend_client_socket_data_timeout",
		"pas_global_client_socket_data_timeout",
		"pas_global_socket_data_timeout",
	}
	for _, k := range keys {
		if n, ok := s.GetInt(k); ok && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return DefaultSocketTimeout
}

// ResolveChunkSize implements the pas_global_io_chunk_size_remote /
// pas_global_io_chunk_size_local_network fallback used for default file
// read sizes. local selects which of the two keys is tried first.
func ResolveChunkSize(s Settings, local bool) int {
	keys := []string{"pas_global_io_chunk_size_remote"}
	if local {
		keys = []string{"pas_global_io_chunk_size_local_network", "pas_global_io_chunk_size_remote"}
	}
	for _, k := range keys {
		if n, ok := s.GetInt(k); ok && n > 0 {
			return n
		}
	}
	return DefaultChunkSize
}

// ListenerAddress resolves mp_tvheadend_listener_address, defaulting to
// Tvheadend's standard HTSP endpoint.
func ListenerAddress(s Settings) string {
	if v, ok := s.GetString("mp_tvheadend_listener_address"); ok && v != "" {
		return v
	}
	return "localhost:9982"
}

// Enabled resolves the mp_tvheadend_enabled master switch, defaulting to
// false when unset (the host must opt in explicitly).
func Enabled(s Settings) bool {
	v, ok := s.GetBool("mp_tvheadend_enabled")
	return ok && v
}

// Credentials resolves mp_tvheadend_user/mp_tvheadend_password.
func Credentials(s Settings) (user, password string) {
	user, _ = s.GetString("mp_tvheadend_user")
	password, _ = s.GetString("mp_tvheadend_password")
	return user, password
}

// DetailsCustomProcessing resolves
// mp_tvheadend_recording_details_custom_processing.
func DetailsCustomProcessing(s Settings) bool {
	v, ok := s.GetBool("mp_tvheadend_recording_details_custom_processing")
	return ok && v
}
