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

package sysbus

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/tombee/lumen/internal/bus"
)

func propsEvent(iface string, changed map[string]dbus.Variant, invalidated []string) bus.SignalEvent {
	return bus.SignalEvent{
		Name: PropertiesInterface + "." + PropertiesChanged,
		Body: []interface{}{iface, changed, invalidated},
	}
}

func TestPropertyFromSignalChanged(t *testing.T) {
	ev := propsEvent("org.freedesktop.UPower",
		map[string]dbus.Variant{"OnBattery": dbus.MakeVariant(true)}, nil)

	v, upd := PropertyFromSignal(ev, "org.freedesktop.UPower", "OnBattery")
	if upd != PropertyChanged {
		t.Fatalf("update = %v, want changed", upd)
	}
	if got, ok := v.Value().(bool); !ok || !got {
		t.Errorf("value = %v, want true", v.Value())
	}
}

func TestPropertyFromSignalInvalidated(t *testing.T) {
	ev := propsEvent("org.freedesktop.UPower", nil, []string{"OnBattery"})

	_, upd := PropertyFromSignal(ev, "org.freedesktop.UPower", "OnBattery")
	if upd != PropertyInvalidated {
		t.Errorf("update = %v, want invalidated", upd)
	}
}

func TestPropertyFromSignalUntouched(t *testing.T) {
	tests := []struct {
		name string
		ev   bus.SignalEvent
	}{
		{"other interface", propsEvent("org.freedesktop.login1.Manager",
			map[string]dbus.Variant{"OnBattery": dbus.MakeVariant(true)}, nil)},
		{"other property", propsEvent("org.freedesktop.UPower",
			map[string]dbus.Variant{"LidIsClosed": dbus.MakeVariant(true)}, nil)},
		{"empty body", bus.SignalEvent{Name: PropertiesInterface + "." + PropertiesChanged}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, upd := PropertyFromSignal(tt.ev, "org.freedesktop.UPower", "OnBattery"); upd != PropertyUntouched {
				t.Errorf("update = %v, want untouched", upd)
			}
		})
	}
}
