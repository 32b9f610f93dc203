package datastore

import (
	"encoding/json"
	"fmt"

	"github.com/soarclient/soarsocket/pkg/model"
)

// diskRecord is the per-identity value written by the key-value backends and
// the JSON file. Its shape matches the historical usersDb.json format:
// {"<identity>": {"name": "...", "role": "Premium"}}.
type diskRecord struct {
	Name string     `json:"name,omitempty"`
	Role model.Role `json:"role,omitempty"`
}

func toDisk(rec model.UserRecord) diskRecord {
	return diskRecord{Name: rec.DisplayName, Role: rec.Role}
}

func fromDisk(identity string, d diskRecord) model.UserRecord {
	return model.UserRecord{Identity: identity, DisplayName: d.Name, Role: d.Role}
}

func marshalRecord(rec model.UserRecord) ([]byte, error) {
	data, err := json.Marshal(toDisk(rec))
	if err != nil {
		return nil, fmt.Errorf("datastore: marshal %q: %w", rec.Identity, err)
	}
	return data, nil
}

func unmarshalRecord(identity string, data []byte) (model.UserRecord, error) {
	var d diskRecord
	if err := json.Unmarshal(data, &d); err != nil {
		return model.UserRecord{}, fmt.Errorf("datastore: decode %q: %w", identity, err)
	}
	return fromDisk(identity, d), nil
}
