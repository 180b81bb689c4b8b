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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/lumen/internal/bus"
)

func TestEffectiveBucket(t *testing.T) {
	s := NewStore()

	s.SetDaytime(bus.BucketNight)
	assert.Equal(t, bus.BucketNight, s.EffectiveBucket())

	s.SetInEvent(true)
	assert.Equal(t, bus.BucketEvent, s.EffectiveBucket(),
		"event window takes precedence over the natural bucket")

	s.SetInEvent(false)
	assert.Equal(t, bus.BucketNight, s.EffectiveBucket())
}

func TestSnapshotReflectsWrites(t *testing.T) {
	s := NewStore()

	s.SetPowerSource(bus.PowerBattery)
	s.SetDaytime(bus.BucketNight)
	s.SetInEvent(true)
	s.SetLidClosed(true)
	s.SetDisplayDimmed(true)
	s.SetSensor(true, "als0")
	s.SetAmbient(0.33)
	s.SetBacklight(0.55)
	s.SetEffectiveTimeout(90 * time.Second)
	s.SetCurveCoeffs(bus.PowerBattery, [3]float64{0.1, 0.8, 0.1})

	snap := s.Snapshot()
	assert.Equal(t, "battery", snap.PowerSource)
	assert.Equal(t, "night", snap.Daytime)
	assert.True(t, snap.InEventWindow)
	assert.True(t, snap.LidClosed)
	assert.True(t, snap.DisplayDimmed)
	assert.True(t, snap.SensorAvailable)
	assert.Equal(t, "als0", snap.SensorName)
	assert.Equal(t, 0.33, snap.Ambient)
	assert.Equal(t, 0.55, snap.Backlight)
	assert.Nil(t, snap.NextCapture)
	assert.Equal(t, "1m30s", snap.EffectiveTimeout)
	assert.Equal(t, []float64{0.1, 0.8, 0.1}, snap.CurveCoefficients["battery"])
	assert.Equal(t, []float64{0, 0, 0}, snap.CurveCoefficients["ac"])

	due := time.Now().Add(10 * time.Minute)
	s.SetNextCapture(due)
	snap = s.Snapshot()
	if assert.NotNil(t, snap.NextCapture) {
		assert.Equal(t, due, *snap.NextCapture)
	}

	s.SetNextCapture(time.Time{})
	assert.Nil(t, s.Snapshot().NextCapture)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				s.SetBacklight(float64(i%100) / 100)
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = s.Snapshot()
					_ = s.Backlight()
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	saved := Persisted{
		Backlight: 0.72,
		Ambient:   0.41,
		SavedAt:   time.Date(2025, 11, 3, 22, 15, 0, 0, time.UTC),
	}
	require.NoError(t, SaveFile(path, saved))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, saved.Backlight, loaded.Backlight)
	assert.Equal(t, saved.Ambient, loaded.Ambient)
	assert.True(t, saved.SavedAt.Equal(loaded.SavedAt))
}

func TestLoadFileMissingIsZero(t *testing.T) {
	loaded, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, loaded.Backlight)
	assert.Zero(t, loaded.Ambient)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, SaveFile(path, Persisted{}))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
