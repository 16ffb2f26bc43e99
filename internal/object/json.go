package object

import (
	"encoding/json"
	"fmt"

	apperrors "minigit/internal/errors"
)

// StoreJSON serializes v and stores the encoding as one object.
func StoreJSON(s Interface, v any) (Hash, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling object: %w", err)
	}
	return s.Store(data)
}

// RetrieveJSON loads h and decodes it into v. A payload that does not decode
// is reported as a malformed object.
func RetrieveJSON(s Interface, h Hash, v any) error {
	data, err := s.Retrieve(h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.MalformedObject(string(h), err.Error())
	}
	return nil
}
