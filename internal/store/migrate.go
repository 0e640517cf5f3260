// SPDX-License-Identifier: MIT

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aircheckd/aircheck/internal/recorder"
)

// ImportLegacy performs a one-time import of the flat-file JSON collections
// an earlier deployment kept under dataDir. A collection is only imported
// when its document does not exist yet, so the import never clobbers data
// written through the store.
func (s *Store) ImportLegacy(dataDir string) error {
	if err := s.importLegacyDoc(filepath.Join(dataDir, "reservations.json"), keyReservations, func(raw []byte) (any, error) {
		var rs []recorder.Reservation
		err := json.Unmarshal(raw, &rs)
		return rs, err
	}); err != nil {
		return err
	}
	return s.importLegacyDoc(filepath.Join(dataDir, "recordings.json"), keyRecordings, func(raw []byte) (any, error) {
		var rs []recorder.Recording
		err := json.Unmarshal(raw, &rs)
		return rs, err
	})
}

func (s *Store) importLegacyDoc(path, key string, decode func([]byte) (any, error)) error {
	var probe json.RawMessage
	found, err := s.getDoc(key, &probe)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy file %s: %w", path, err)
	}

	doc, err := decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("legacy file is not decodable, skipping import")
		return nil
	}
	if err := s.putDoc(key, doc); err != nil {
		return err
	}
	s.logger.Info().Str("path", path).Str("key", key).Msg("imported legacy collection")
	return nil
}
