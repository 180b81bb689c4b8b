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
	"github.com/godbus/dbus/v5"

	"github.com/tombee/lumen/internal/bus"
)

// Standard D-Bus properties interface, used by UPower and logind.
const (
	PropertiesInterface = "org.freedesktop.DBus.Properties"
	PropertiesChanged   = "PropertiesChanged"
)

// WatchProperties opens a watch for PropertiesChanged signals emitted by
// one object.
func (r *Router) WatchProperties(path dbus.ObjectPath) (*Watch, error) {
	return r.Watch(PropertiesInterface, PropertiesChanged, path)
}

// PropertyUpdate describes how one property appeared in a
// PropertiesChanged signal.
type PropertyUpdate int

const (
	// PropertyUntouched means the signal concerns another interface or
	// does not mention the property.
	PropertyUntouched PropertyUpdate = iota
	// PropertyChanged means the signal carries the property's new value.
	PropertyChanged
	// PropertyInvalidated means the property changed but the value was
	// not included; the caller must re-read it.
	PropertyInvalidated
)

// PropertyFromSignal extracts one property from a PropertiesChanged
// event body: interface name, changed values, invalidated names.
func PropertyFromSignal(ev bus.SignalEvent, iface, prop string) (dbus.Variant, PropertyUpdate) {
	if len(ev.Body) < 1 {
		return dbus.Variant{}, PropertyUntouched
	}
	name, ok := ev.Body[0].(string)
	if !ok || name != iface {
		return dbus.Variant{}, PropertyUntouched
	}
	if len(ev.Body) >= 2 {
		if changed, ok := ev.Body[1].(map[string]dbus.Variant); ok {
			if v, ok := changed[prop]; ok {
				return v, PropertyChanged
			}
		}
	}
	if len(ev.Body) >= 3 {
		if invalidated, ok := ev.Body[2].([]string); ok {
			for _, p := range invalidated {
				if p == prop {
					return dbus.Variant{}, PropertyInvalidated
				}
			}
		}
	}
	return dbus.Variant{}, PropertyUntouched
}
