package multipart

import (
	"encoding/json"

	"github.com/mwantia/vgate/driver"
	"github.com/mwantia/vgate/ledger"
)

// SessionStatus is an open session annotated with what the ledger has
// durably recorded, presented to a reconnecting client choosing
// whether to resume or restart. Matching is purely informational; two
// independently initiated sessions for the same path are never merged.
type SessionStatus struct {
	Session *ledger.Session `json:"session"`

	// PartsUploaded counts parts durably recorded as uploaded.
	PartsUploaded int `json:"parts_uploaded"`

	// PartsFailed counts parts recorded with an error status.
	PartsFailed int `json:"parts_failed"`

	// PartNumbers lists the recorded uploaded part numbers.
	PartNumbers []int `json:"part_numbers"`
}

// driverState rebuilds the driver-facing multipart state from the
// persisted session row.
func driverState(session *ledger.Session) (*driver.MultipartState, error) {
	state := &driver.MultipartState{
		ProviderUploadID: session.ProviderUploadID,
		Strategy:         driver.MultipartStrategy(session.Strategy),
	}

	if session.ProviderMeta != "" {
		if err := json.Unmarshal([]byte(session.ProviderMeta), &state.ProviderMeta); err != nil {
			return nil, err
		}
	}

	return state, nil
}

// encodeMeta serializes driver provider metadata for the session row.
func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}

	bytes, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
