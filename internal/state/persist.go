// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// Persisted is the slice of state written across restarts: enough to
// seed the next run and keep history continuous.
type Persisted struct {
	Backlight float64   `json:"backlight"`
	Ambient   float64   `json:"ambient"`
	SavedAt   time.Time `json:"saved_at"`
}

// SaveFile atomically writes the persisted state to path. The file is
// replaced in one rename so a crash never leaves a torn snapshot.
func SaveFile(path string, p Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer f.Cleanup() //nolint:errcheck // cleanup of already-failed write

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// LoadFile reads a persisted state snapshot. A missing file is not an
// error; the zero value is returned.
func LoadFile(path string) (Persisted, error) {
	var p Persisted
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode state file: %w", err)
	}
	return p, nil
}
