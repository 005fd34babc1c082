package session

import (
	"encoding/json"
	"testing"
	"time"
)

// FuzzRecordDecode exercises the record decoder with arbitrary inputs.
// Goal: no panics, and every accepted record satisfies Validate.
func FuzzRecordDecode(f *testing.F) {
	rec := &Record{
		SubjectID:     "contact-fuzz",
		Email:         "fuzz@example.com",
		AccessToken:   "at",
		RefreshToken:  "rt",
		ExpiresAt:     time.Unix(1700003600, 0).UTC(),
		Roles:         []string{"a", "b"},
		Relationships: []json.RawMessage{json.RawMessage(`{"id":1}`)},
	}
	encoded, err := EncodeRecord(rec)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte("{}"))
	f.Add([]byte(`{"v":1}`))
	f.Add([]byte(`{"v":1,"record":null}`))
	f.Add([]byte(`{"v":2,"record":{}}`))
	f.Add([]byte(`{"v":1,"record":{"accessToken":"x"}}`))
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := DecodeRecord(data)
		if err != nil {
			return
		}
		if got == nil {
			t.Fatal("nil record without error")
		}
		if vErr := got.Validate(); vErr != nil {
			t.Fatalf("decoded record fails validation: %v", vErr)
		}
	})
}
